// Package events publishes order domain events.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"storefront/internal/models"
)

const (
	TypeOrderCreated        = "order.created"
	TypeOrderStatusChanged  = "order.status_changed"
	TypeOrderPaymentUpdated = "order.payment_updated"
)

// OrderEvent is the payload written for every order event.
type OrderEvent struct {
	Type          string               `json:"type"`
	OrderID       string               `json:"orderId"`
	OrderNumber   string               `json:"orderNumber"`
	UserID        string               `json:"userId"`
	Status        models.OrderStatus   `json:"status"`
	PreviousState models.OrderStatus   `json:"previousStatus,omitempty"`
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
	TotalAmount   float64              `json:"totalAmount"`
	OccurredAt    time.Time            `json:"occurredAt"`
}

// NewOrderEvent captures the current state of order.
func NewOrderEvent(eventType string, order models.Order, previous models.OrderStatus, at time.Time) OrderEvent {
	return OrderEvent{
		Type:          eventType,
		OrderID:       order.ID.Hex(),
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID.Hex(),
		Status:        order.Status,
		PreviousState: previous,
		PaymentStatus: order.PaymentStatus,
		TotalAmount:   order.TotalAmount,
		OccurredAt:    at,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
	Close() error
}

// KafkaPublisher keys messages by order id so one order's events stay ordered.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			BatchTimeout:           100 * time.Millisecond,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, OrderEvent) error { return nil }
func (NopPublisher) Close() error { return nil }

// Recorder keeps published events in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []OrderEvent
	err    error
}

// FailWith makes every later Publish return err.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Recorder) Publish(_ context.Context, event OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of what has been published so far.
func (r *Recorder) Events() []OrderEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]OrderEvent(nil), r.events...)
}

func (r *Recorder) Types() []string {
	events := r.Events()
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}
