// Package carrier provides the abstraction over a shipping carrier's
// order lifecycle API, plus the carrier-independent pieces built on it.
package carrier

import (
	"context"
)

// Carrier defines the lifecycle operations a shipping carrier exposes.
type Carrier interface {
	// Name returns the carrier identifier (e.g., "shiprocket").
	Name() string

	// CreateOrder completes the raw order description into the carrier's
	// wire shape and creates the order.
	CreateOrder(ctx context.Context, raw map[string]any) (*OrderResult, error)

	// CheckServiceability lists the couriers able to serve a lane.
	CheckServiceability(ctx context.Context, q ServiceabilityQuery) ([]CourierOption, error)

	// AssignAWB assigns a courier and waybill to a shipment.
	AssignAWB(ctx context.Context, shipmentID, courierID string) (*AWBAssignment, error)

	// GenerateLabel produces the shipping label for a shipment.
	GenerateLabel(ctx context.Context, shipmentID string) (*LabelResult, error)

	// RequestPickup schedules the physical collection of a shipment.
	RequestPickup(ctx context.Context, shipmentID string) (*PickupResult, error)

	// Track returns the tracking state for an AWB code.
	Track(ctx context.Context, awbCode string) (*TrackingResult, error)

	// Cancel cancels a shipment at the carrier.
	Cancel(ctx context.Context, shipmentID, reason string) (*CancelResult, error)

	// PrintInvoice produces the invoice document for a carrier order.
	PrintInvoice(ctx context.Context, orderID string) (*InvoiceResult, error)
}
