package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderPending        OrderStatus = "pending"
	OrderConfirmed      OrderStatus = "confirmed"
	OrderProcessing     OrderStatus = "processing"
	OrderShipped        OrderStatus = "shipped"
	OrderOutForDelivery OrderStatus = "out_for_delivery"
	OrderDelivered      OrderStatus = "delivered"
	OrderCancelled      OrderStatus = "cancelled"
	OrderReturned       OrderStatus = "returned"
	OrderRefunded       OrderStatus = "refunded"
)

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderPending,
	OrderConfirmed,
	OrderProcessing,
	OrderShipped,
	OrderOutForDelivery,
	OrderDelivered,
	OrderCancelled,
	OrderReturned,
	OrderRefunded,
}

func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentCard           PaymentMethod = "card"
	PaymentUPI            PaymentMethod = "upi"
	PaymentNetBanking     PaymentMethod = "net_banking"
	PaymentWallet         PaymentMethod = "wallet"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCashOnDelivery, PaymentCard, PaymentUPI, PaymentNetBanking, PaymentWallet:
		return true
	}
	return false
}

// RecordState tags an order as live or soft-deleted.
type RecordState string

const (
	RecordActive  RecordState = "active"
	RecordDeleted RecordState = "deleted"
)

// OrderItem is an immutable snapshot of one purchased variant.
type OrderItem struct {
	ItemID        primitive.ObjectID `bson:"itemId" json:"itemId"`
	Name          string             `bson:"name" json:"name"`
	SKU           string             `bson:"sku,omitempty" json:"sku,omitempty"`
	Image         string             `bson:"image,omitempty" json:"image,omitempty"`
	Quantity      int                `bson:"quantity" json:"quantity"`
	Size          string             `bson:"size" json:"size"`
	Color         SelectedColor      `bson:"color" json:"color"`
	Price         float64            `bson:"price" json:"price"`
	DiscountPrice float64            `bson:"discountPrice" json:"discountPrice"`
	FinalPrice    float64            `bson:"finalPrice" json:"finalPrice"`
}

type PaymentDetails struct {
	TransactionID string     `bson:"transactionId,omitempty" json:"transactionId,omitempty"`
	Gateway       string     `bson:"gateway,omitempty" json:"gateway,omitempty"`
	PaymentDate   *time.Time `bson:"paymentDate,omitempty" json:"paymentDate,omitempty"`
	FailureReason string     `bson:"failureReason,omitempty" json:"failureReason,omitempty"`
}

// Merge overlays the non-empty fields of update.
func (d PaymentDetails) Merge(update PaymentDetails) PaymentDetails {
	if update.TransactionID != "" {
		d.TransactionID = update.TransactionID
	}
	if update.Gateway != "" {
		d.Gateway = update.Gateway
	}
	if update.PaymentDate != nil {
		d.PaymentDate = update.PaymentDate
	}
	if update.FailureReason != "" {
		d.FailureReason = update.FailureReason
	}
	return d
}

// StatusEvent is one entry of an order's status history.
type StatusEvent struct {
	Status OrderStatus `bson:"status" json:"status"`
	Note   string      `bson:"note,omitempty" json:"note,omitempty"`
	Actor  string      `bson:"actor" json:"actor"`
	At     time.Time   `bson:"at" json:"at"`
}

type Order struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderNumber       string             `bson:"orderNumber" json:"orderNumber"`
	UserID            primitive.ObjectID `bson:"userId" json:"userId"`
	Items             []OrderItem        `bson:"items" json:"items"`
	ShippingAddressID primitive.ObjectID `bson:"shippingAddressId" json:"shippingAddressId"`
	BillingAddressID  primitive.ObjectID `bson:"billingAddressId" json:"billingAddressId"`
	Status            OrderStatus        `bson:"status" json:"status"`
	PaymentStatus     PaymentStatus      `bson:"paymentStatus" json:"paymentStatus"`
	PaymentMethod     PaymentMethod      `bson:"paymentMethod" json:"paymentMethod"`
	PaymentDetails    PaymentDetails     `bson:"paymentDetails" json:"paymentDetails"`
	Subtotal          float64            `bson:"subtotal" json:"subtotal"`
	Tax               float64            `bson:"tax" json:"tax"`
	ShippingCharges   float64            `bson:"shippingCharges" json:"shippingCharges"`
	Discount          float64            `bson:"discount" json:"discount"`
	TotalAmount       float64            `bson:"totalAmount" json:"totalAmount"`
	TrackingNumber    string             `bson:"trackingNumber,omitempty" json:"trackingNumber,omitempty"`
	Courier           string             `bson:"courier,omitempty" json:"courier,omitempty"`
	EstimatedDelivery *time.Time         `bson:"estimatedDelivery,omitempty" json:"estimatedDelivery,omitempty"`
	ActualDelivery    *time.Time         `bson:"actualDelivery,omitempty" json:"actualDelivery,omitempty"`
	Notes             string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CancelReason      string             `bson:"cancelReason,omitempty" json:"cancelReason,omitempty"`
	ReturnReason      string             `bson:"returnReason,omitempty" json:"returnReason,omitempty"`
	StatusHistory     []StatusEvent      `bson:"statusHistory" json:"statusHistory"`
	RecordState       RecordState        `bson:"recordState" json:"-"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (o Order) Deleted() bool {
	return o.RecordState == RecordDeleted
}
