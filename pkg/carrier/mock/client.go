// Package mock provides a mock carrier implementation for testing.
package mock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tournevent/fulfillment/pkg/carrier"
)

// Client is a mock carrier for testing. Each operation returns canned
// data unless its OnXxx hook is set.
type Client struct {
	name string

	OnCreateOrder         func(ctx context.Context, raw map[string]any) (*carrier.OrderResult, error)
	OnCheckServiceability func(ctx context.Context, q carrier.ServiceabilityQuery) ([]carrier.CourierOption, error)
	OnAssignAWB           func(ctx context.Context, shipmentID, courierID string) (*carrier.AWBAssignment, error)
	OnGenerateLabel       func(ctx context.Context, shipmentID string) (*carrier.LabelResult, error)
	OnRequestPickup       func(ctx context.Context, shipmentID string) (*carrier.PickupResult, error)
	OnTrack               func(ctx context.Context, awbCode string) (*carrier.TrackingResult, error)
	OnCancel              func(ctx context.Context, shipmentID, reason string) (*carrier.CancelResult, error)
	OnPrintInvoice        func(ctx context.Context, orderID string) (*carrier.InvoiceResult, error)

	seq   atomic.Int64
	mu    sync.Mutex
	calls map[string]int
}

// New creates a new mock carrier.
func New(name string) *Client {
	return &Client{name: name, calls: map[string]int{}}
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return c.name
}

// Calls returns how many times op was invoked.
func (c *Client) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

func (c *Client) record(op string) {
	c.mu.Lock()
	c.calls[op]++
	c.mu.Unlock()
}

// CreateOrder creates a mock order.
func (c *Client) CreateOrder(ctx context.Context, raw map[string]any) (*carrier.OrderResult, error) {
	c.record("CreateOrder")
	if c.OnCreateOrder != nil {
		return c.OnCreateOrder(ctx, raw)
	}

	n := c.seq.Add(1)
	pincode, _ := carrier.Stringify(raw["billing_pincode"])
	return &carrier.OrderResult{
		CarrierOrderID: fmt.Sprintf("%s-order-%d", c.name, n),
		ShipmentID:     fmt.Sprintf("%s-shipment-%d", c.name, n),
		Status:         "NEW",
		Summary: carrier.OrderSummary{
			BillingPincode:  pincode,
			DeliveryPincode: pincode,
			Weight:          0.5,
		},
	}, nil
}

// CheckServiceability returns two mock courier options.
func (c *Client) CheckServiceability(ctx context.Context, q carrier.ServiceabilityQuery) ([]carrier.CourierOption, error) {
	c.record("CheckServiceability")
	if c.OnCheckServiceability != nil {
		return c.OnCheckServiceability(ctx, q)
	}

	return []carrier.CourierOption{
		{CourierID: "standard", CourierName: fmt.Sprintf("%s Standard", c.name), EstimatedDeliveryDays: 5, Rate: 60},
		{CourierID: "express", CourierName: fmt.Sprintf("%s Express", c.name), EstimatedDeliveryDays: 2, Rate: 120},
	}, nil
}

// AssignAWB assigns a mock AWB.
func (c *Client) AssignAWB(ctx context.Context, shipmentID, courierID string) (*carrier.AWBAssignment, error) {
	c.record("AssignAWB")
	if c.OnAssignAWB != nil {
		return c.OnAssignAWB(ctx, shipmentID, courierID)
	}

	return &carrier.AWBAssignment{
		ShipmentID:  shipmentID,
		CourierID:   courierID,
		AWBCode:     fmt.Sprintf("AWB-%s", shipmentID),
		CourierName: fmt.Sprintf("%s %s", c.name, courierID),
		Status:      carrier.StatusAWBAssigned,
	}, nil
}

// GenerateLabel returns a mock label.
func (c *Client) GenerateLabel(ctx context.Context, shipmentID string) (*carrier.LabelResult, error) {
	c.record("GenerateLabel")
	if c.OnGenerateLabel != nil {
		return c.OnGenerateLabel(ctx, shipmentID)
	}

	return &carrier.LabelResult{
		ShipmentID: shipmentID,
		LabelURL:   fmt.Sprintf("https://labels.%s.local/%s.pdf", c.name, shipmentID),
	}, nil
}

// RequestPickup returns a mock pickup.
func (c *Client) RequestPickup(ctx context.Context, shipmentID string) (*carrier.PickupResult, error) {
	c.record("RequestPickup")
	if c.OnRequestPickup != nil {
		return c.OnRequestPickup(ctx, shipmentID)
	}

	return &carrier.PickupResult{ShipmentID: shipmentID, PickupStatus: "SCHEDULED"}, nil
}

// Track returns mock tracking data.
func (c *Client) Track(ctx context.Context, awbCode string) (*carrier.TrackingResult, error) {
	c.record("Track")
	if c.OnTrack != nil {
		return c.OnTrack(ctx, awbCode)
	}

	return &carrier.TrackingResult{
		AWBCode:      awbCode,
		Status:       "In Transit",
		TrackingData: map[string]any{"current_status": "In Transit"},
	}, nil
}

// Cancel returns a mock cancellation.
func (c *Client) Cancel(ctx context.Context, shipmentID, reason string) (*carrier.CancelResult, error) {
	c.record("Cancel")
	if c.OnCancel != nil {
		return c.OnCancel(ctx, shipmentID, reason)
	}

	return &carrier.CancelResult{ShipmentID: shipmentID, Status: carrier.StatusCancelled}, nil
}

// PrintInvoice returns a mock invoice.
func (c *Client) PrintInvoice(ctx context.Context, orderID string) (*carrier.InvoiceResult, error) {
	c.record("PrintInvoice")
	if c.OnPrintInvoice != nil {
		return c.OnPrintInvoice(ctx, orderID)
	}

	return &carrier.InvoiceResult{
		OrderID:    orderID,
		InvoiceURL: fmt.Sprintf("https://invoices.%s.local/%s.pdf", c.name, orderID),
	}, nil
}

// Ensure Client implements carrier.Carrier interface
var _ carrier.Carrier = (*Client)(nil)
