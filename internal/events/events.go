// Package events publishes shipment-state changes to downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TypeShipmentStateChanged is the type of every shipment-state event.
const TypeShipmentStateChanged = "shipment.state_changed"

// ShipmentStateChanged reports a successful merge onto an order.
type ShipmentStateChanged struct {
	EventID    string         `json:"event_id"`
	Type       string         `json:"type"`
	OrderID    string         `json:"order_id"`
	Operation  string         `json:"operation"`
	Fields     map[string]any `json:"fields"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NewShipmentStateChanged builds an event with a fresh id.
func NewShipmentStateChanged(orderID, operation string, fields map[string]any) ShipmentStateChanged {
	return ShipmentStateChanged{
		EventID:    uuid.NewString(),
		Type:       TypeShipmentStateChanged,
		OrderID:    orderID,
		Operation:  operation,
		Fields:     fields,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events. Delivery is best-effort.
type Publisher interface {
	Publish(ctx context.Context, evt ShipmentStateChanged) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, ShipmentStateChanged) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }
