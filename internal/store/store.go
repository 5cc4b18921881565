// Package store persists the shipment state attached to an order record.
// Writes are field-level merges under the order's shipment namespace.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AlekSi/pointer"
)

// Sentinel errors returned by every backend.
var (
	// ErrPersistence wraps any failure of the underlying store.
	ErrPersistence = errors.New("persistence failure")

	// ErrOrderNotFound indicates no order matches the id or lookup.
	ErrOrderNotFound = errors.New("order not found")

	// ErrShipmentConflict indicates a merge tried to replace the order's
	// shipment id with a different one.
	ErrShipmentConflict = errors.New("order already linked to another shipment")
)

// Key is a shipment-state field that identifies its order.
type Key string

// Lookup keys.
const (
	KeyShipmentID     Key = "shipment_id"
	KeyAWBCode        Key = "awb_code"
	KeyCarrierOrderID Key = "carrier_order_id"
)

// Valid reports whether k is a lookup key.
func (k Key) Valid() bool {
	switch k {
	case KeyShipmentID, KeyAWBCode, KeyCarrierOrderID:
		return true
	}
	return false
}

// Store merges and reads shipment state.
type Store interface {
	// Merge writes the non-nil fields onto the order's shipment state and
	// stamps last_synced. An empty Fields performs no write at all. Once
	// set, shipment_id is never reassigned: a merge carrying a different
	// shipment id writes nothing and returns ErrShipmentConflict.
	Merge(ctx context.Context, orderID string, fields Fields) error

	// FindOrderID returns the order whose shipment state has key = value.
	FindOrderID(ctx context.Context, key Key, value string) (string, error)

	// Get returns the shipment state of an order.
	Get(ctx context.Context, orderID string) (*ShipmentState, error)

	// Close releases the backend's connections.
	Close(ctx context.Context) error
}

// ShipmentState is the carrier-side lifecycle mirrored onto an order.
type ShipmentState struct {
	CarrierOrderID string         `json:"carrier_order_id,omitempty" bson:"carrier_order_id,omitempty"`
	ShipmentID     string         `json:"shipment_id,omitempty" bson:"shipment_id,omitempty"`
	CourierID      string         `json:"courier_id,omitempty" bson:"courier_id,omitempty"`
	AWBCode        string         `json:"awb_code,omitempty" bson:"awb_code,omitempty"`
	CourierName    string         `json:"courier_name,omitempty" bson:"courier_name,omitempty"`
	Status         string         `json:"status,omitempty" bson:"status,omitempty"`
	LabelURL       string         `json:"label_url,omitempty" bson:"label_url,omitempty"`
	InvoiceURL     string         `json:"invoice_url,omitempty" bson:"invoice_url,omitempty"`
	PickupStatus   string         `json:"pickup_status,omitempty" bson:"pickup_status,omitempty"`
	TrackingData   map[string]any `json:"tracking_data,omitempty" bson:"tracking_data,omitempty"`
	LastSynced     *time.Time     `json:"last_synced,omitempty" bson:"last_synced,omitempty"`
}

// Fields is a partial shipment state. A nil field is omitted from the
// merge and never clears a stored value.
type Fields struct {
	CarrierOrderID *string
	ShipmentID     *string
	CourierID      *string
	AWBCode        *string
	CourierName    *string
	Status         *string
	LabelURL       *string
	InvoiceURL     *string
	PickupStatus   *string
	TrackingData   map[string]any
}

// Patch returns the fields to write keyed by their stored name, or nil
// when every field is omitted.
func (f Fields) Patch() map[string]any {
	patch := map[string]any{}
	set := func(key string, v *string) {
		if v != nil {
			patch[key] = pointer.Get(v)
		}
	}

	set("carrier_order_id", f.CarrierOrderID)
	set("shipment_id", f.ShipmentID)
	set("courier_id", f.CourierID)
	set("awb_code", f.AWBCode)
	set("courier_name", f.CourierName)
	set("status", f.Status)
	set("label_url", f.LabelURL)
	set("invoice_url", f.InvoiceURL)
	set("pickup_status", f.PickupStatus)
	if f.TrackingData != nil {
		patch["tracking_data"] = f.TrackingData
	}

	if len(patch) == 0 {
		return nil
	}
	return patch
}

// IsEmpty reports whether the merge would write nothing.
func (f Fields) IsEmpty() bool {
	return f.Patch() == nil
}

// Apply merges f onto s, stamping LastSynced with at when anything changed.
func (s *ShipmentState) Apply(f Fields, at time.Time) {
	if f.IsEmpty() {
		return
	}

	assign := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	assign(&s.CarrierOrderID, f.CarrierOrderID)
	assign(&s.ShipmentID, f.ShipmentID)
	assign(&s.CourierID, f.CourierID)
	assign(&s.AWBCode, f.AWBCode)
	assign(&s.CourierName, f.CourierName)
	assign(&s.Status, f.Status)
	assign(&s.LabelURL, f.LabelURL)
	assign(&s.InvoiceURL, f.InvoiceURL)
	assign(&s.PickupStatus, f.PickupStatus)
	if f.TrackingData != nil {
		s.TrackingData = f.TrackingData
	}
	s.LastSynced = pointer.To(at.UTC())
}

// Conflicts reports whether f would reassign the shipment id.
func (s *ShipmentState) Conflicts(f Fields) bool {
	return f.ShipmentID != nil && s.ShipmentID != "" && *f.ShipmentID != s.ShipmentID
}

// Lookup returns the value of a lookup key.
func (s *ShipmentState) Lookup(key Key) string {
	switch key {
	case KeyShipmentID:
		return s.ShipmentID
	case KeyAWBCode:
		return s.AWBCode
	case KeyCarrierOrderID:
		return s.CarrierOrderID
	}
	return ""
}

func persistenceErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

func shipmentConflict(orderID string) error {
	return fmt.Errorf("merging shipment state of %q: %w", orderID, ErrShipmentConflict)
}

func invalidKey(key Key) error {
	return fmt.Errorf("lookup by %q: %w: unsupported key", key, ErrPersistence)
}
