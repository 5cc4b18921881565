// Package shiprocket provides integration with the Shiprocket shipping API.
package shiprocket

import (
	"context"

	"github.com/tournevent/fulfillment/pkg/carrier"
)

// APIClient defines the raw Shiprocket REST surface. Implementations
// include the real HTTP client and a mock for testing.
type APIClient interface {
	// CreateOrder creates an adhoc order.
	// POST /orders/create/adhoc
	CreateOrder(ctx context.Context, req *OrderPayload) (*CreateOrderResponse, error)

	// Serviceability lists couriers for a lane.
	// GET /courier/serviceability/
	Serviceability(ctx context.Context, req *ServiceabilityRequest) (*ServiceabilityResponse, error)

	// AssignAWB assigns a courier to a shipment.
	// POST /courier/assign/awb
	AssignAWB(ctx context.Context, req *AssignAWBRequest) (carrier.Document, error)

	// GenerateLabel generates labels for shipments.
	// POST /courier/generate/label
	GenerateLabel(ctx context.Context, req *LabelRequest) (carrier.Document, error)

	// GeneratePickup requests pickup for shipments.
	// POST /courier/generate/pickup
	GeneratePickup(ctx context.Context, req *PickupRequest) (carrier.Document, error)

	// TrackAWB returns tracking data for an AWB code.
	// GET /courier/track/awb/{awb}
	TrackAWB(ctx context.Context, awbCode string) (carrier.Document, error)

	// CancelOrders cancels shipments.
	// POST /orders/cancel
	CancelOrders(ctx context.Context, req *CancelRequest) (carrier.Document, error)

	// PrintInvoice generates invoices for orders.
	// POST /orders/print/invoice
	PrintInvoice(ctx context.Context, req *InvoiceRequest) (carrier.Document, error)
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the answer to a login.
type LoginResponse struct {
	Token   string `json:"token"`
	Message string `json:"message,omitempty"`
}

// CreateOrderResponse is the answer to adhoc order creation.
type CreateOrderResponse struct {
	OrderID     FlexString `json:"order_id"`
	ShipmentID  FlexString `json:"shipment_id"`
	Status      FlexString `json:"status"`
	StatusCode  FlexString `json:"status_code"`
	AWBCode     FlexString `json:"awb_code"`
	CourierID   FlexString `json:"courier_company_id"`
	CourierName FlexString `json:"courier_name"`
}

// ServiceabilityRequest carries the serviceability query parameters.
type ServiceabilityRequest struct {
	PickupPostcode   string
	DeliveryPostcode string
	Weight           float64
	COD              bool
}

// ServiceabilityResponse is the answer to a serviceability query.
type ServiceabilityResponse struct {
	Status FlexString `json:"status"`
	Data   struct {
		AvailableCourierCompanies []CourierCompany `json:"available_courier_companies"`
	} `json:"data"`
}

// CourierCompany is one entry of a serviceability answer.
type CourierCompany struct {
	CourierCompanyID      FlexString `json:"courier_company_id"`
	CourierName           string     `json:"courier_name"`
	EstimatedDeliveryDays FlexString `json:"estimated_delivery_days"`
	Rate                  FlexFloat  `json:"rate"`
}

// AssignAWBRequest is the body of POST /courier/assign/awb.
type AssignAWBRequest struct {
	ShipmentID any `json:"shipment_id"`
	CourierID  any `json:"courier_id"`
}

// LabelRequest is the body of POST /courier/generate/label.
type LabelRequest struct {
	ShipmentID []any  `json:"shipment_id"`
	Format     string `json:"format"`
	PrintType  string `json:"print_type"`
}

// PickupRequest is the body of POST /courier/generate/pickup.
type PickupRequest struct {
	ShipmentID []any `json:"shipment_id"`
}

// CancelRequest is the body of POST /orders/cancel.
type CancelRequest struct {
	IDs    []any  `json:"ids"`
	Reason string `json:"reason,omitempty"`
}

// InvoiceRequest is the body of POST /orders/print/invoice.
type InvoiceRequest struct {
	IDs []any `json:"ids"`
}

// ErrorResponse is the error body Shiprocket returns.
type ErrorResponse struct {
	Message    string         `json:"message"`
	StatusCode FlexString     `json:"status_code"`
	Errors     map[string]any `json:"errors,omitempty"`
}
