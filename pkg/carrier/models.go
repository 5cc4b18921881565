package carrier

import (
	"strings"
)

// Status values written locally regardless of the carrier's vocabulary.
const (
	StatusCancelled   = "CANCELLED"
	StatusAWBAssigned = "AWB_ASSIGNED"
)

// UnknownDeliveryDays marks an option whose carrier quoted no estimate.
const UnknownDeliveryDays = -1

// ServiceabilityQuery describes a lane to check.
type ServiceabilityQuery struct {
	PickupPincode   string
	DeliveryPincode string
	Weight          float64
	COD             bool
}

// CourierOption is one courier able to serve a lane.
type CourierOption struct {
	CourierID             string  `json:"courier_id"`
	CourierName           string  `json:"courier_name"`
	EstimatedDeliveryDays int     `json:"estimated_delivery_days"`
	Rate                  float64 `json:"rate"`
}

// OrderSummary carries the fields of a built order payload that later
// steps of the lifecycle need.
type OrderSummary struct {
	BillingPincode  string  `json:"billing_pincode"`
	DeliveryPincode string  `json:"delivery_pincode"`
	Weight          float64 `json:"weight"`
	PaymentMethod   string  `json:"payment_method"`
}

// IsCOD reports whether the order is cash on delivery.
func (s OrderSummary) IsCOD() bool {
	return strings.EqualFold(s.PaymentMethod, "COD")
}

// OrderResult is the outcome of order creation.
type OrderResult struct {
	CarrierOrderID string       `json:"carrier_order_id"`
	ShipmentID     string       `json:"shipment_id"`
	Status         string       `json:"status"`
	AWBCode        string       `json:"awb_code,omitempty"`
	CourierName    string       `json:"courier_name,omitempty"`
	Summary        OrderSummary `json:"-"`
	Raw            Document     `json:"raw,omitempty"`
}

// AWBAssignment is the outcome of courier assignment.
type AWBAssignment struct {
	ShipmentID  string   `json:"shipment_id"`
	CourierID   string   `json:"courier_id"`
	AWBCode     string   `json:"awb_code"`
	CourierName string   `json:"courier_name"`
	Status      string   `json:"status"`
	Raw         Document `json:"raw,omitempty"`
}

// LabelResult is the outcome of label generation.
type LabelResult struct {
	ShipmentID string   `json:"shipment_id"`
	LabelURL   string   `json:"label_url"`
	Raw        Document `json:"raw,omitempty"`
}

// PickupResult is the outcome of a pickup request.
type PickupResult struct {
	ShipmentID   string   `json:"shipment_id"`
	PickupStatus string   `json:"pickup_status"`
	Raw          Document `json:"raw,omitempty"`
}

// TrackingResult is the tracking state of an AWB.
type TrackingResult struct {
	AWBCode      string         `json:"awb_code"`
	Status       string         `json:"status"`
	TrackingData map[string]any `json:"tracking_data"`
}

// CancelResult is the carrier's answer to a cancellation.
type CancelResult struct {
	ShipmentID string   `json:"shipment_id"`
	Status     string   `json:"status"`
	Raw        Document `json:"raw,omitempty"`
}

// InvoiceResult is the outcome of invoice printing.
type InvoiceResult struct {
	OrderID    string   `json:"order_id"`
	InvoiceURL string   `json:"invoice_url"`
	Raw        Document `json:"raw,omitempty"`
}
