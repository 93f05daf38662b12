package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AddressType string

const (
	AddressShipping AddressType = "shipping"
	AddressBilling  AddressType = "billing"
	AddressBoth     AddressType = "both"
)

func (t AddressType) Valid() bool {
	switch t {
	case AddressShipping, AddressBilling, AddressBoth:
		return true
	}
	return false
}

// Address is a per-user shipping/billing profile. At most one address per
// user carries IsDefault.
type Address struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID `bson:"userId" json:"userId"`
	FullName   string             `bson:"fullName" json:"fullName"`
	Phone      string             `bson:"phone" json:"phone"`
	Line1      string             `bson:"line1" json:"line1"`
	Line2      string             `bson:"line2,omitempty" json:"line2,omitempty"`
	Landmark   string             `bson:"landmark,omitempty" json:"landmark,omitempty"`
	City       string             `bson:"city" json:"city"`
	State      string             `bson:"state" json:"state"`
	PostalCode string             `bson:"postalCode" json:"postalCode"`
	Country    string             `bson:"country" json:"country"`
	Type       AddressType        `bson:"type" json:"type"`
	IsDefault  bool               `bson:"isDefault" json:"isDefault"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}
