// Package events publishes domain events after authoritative writes.
// Publication is best-effort: a failed publish never undoes a write.
package events

import (
	"context"
	"time"
)

const (
	OrderCreated   = "order.created"
	OrderPaid      = "order.paid"
	OrderDelivered = "order.delivered"
	ProductRated   = "product.rated"
	ProductDeleted = "product.deleted"
)

type Event struct {
	Type string `json:"type"`
	// Key is the entity id; brokers partition by it.
	Key     string    `json:"key"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
