package shiprocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tournevent/fulfillment/pkg/carrier"
)

// MockAPIClient is a mock implementation of APIClient for testing and for
// running the service without carrier credentials.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnCreateOrder    func(ctx context.Context, req *OrderPayload) (*CreateOrderResponse, error)
	OnServiceability func(ctx context.Context, req *ServiceabilityRequest) (*ServiceabilityResponse, error)
	OnAssignAWB      func(ctx context.Context, req *AssignAWBRequest) (carrier.Document, error)
	OnGenerateLabel  func(ctx context.Context, req *LabelRequest) (carrier.Document, error)
	OnGeneratePickup func(ctx context.Context, req *PickupRequest) (carrier.Document, error)
	OnTrackAWB       func(ctx context.Context, awbCode string) (carrier.Document, error)
	OnCancelOrders   func(ctx context.Context, req *CancelRequest) (carrier.Document, error)
	OnPrintInvoice   func(ctx context.Context, req *InvoiceRequest) (carrier.Document, error)

	seq atomic.Int64
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	m := &MockAPIClient{}
	m.seq.Store(100000)
	return m
}

func (m *MockAPIClient) simulate() error {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}
	if m.SimulateErrors {
		return carrier.NewAPIError(carrierName, "MOCK_ERROR", "Simulated API error")
	}
	return nil
}

// CreateOrder returns a mock created order.
func (m *MockAPIClient) CreateOrder(ctx context.Context, req *OrderPayload) (*CreateOrderResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCreateOrder != nil {
		return m.OnCreateOrder(ctx, req)
	}

	id := m.seq.Add(1)
	return &CreateOrderResponse{
		OrderID:    FlexString(fmt.Sprintf("%d", id)),
		ShipmentID: FlexString(fmt.Sprintf("%d", id+500000)),
		Status:     "NEW",
		StatusCode: "1",
	}, nil
}

// Serviceability returns mock courier options.
func (m *MockAPIClient) Serviceability(ctx context.Context, req *ServiceabilityRequest) (*ServiceabilityResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnServiceability != nil {
		return m.OnServiceability(ctx, req)
	}

	resp := &ServiceabilityResponse{Status: "200"}
	resp.Data.AvailableCourierCompanies = []CourierCompany{
		{CourierCompanyID: "10", CourierName: "Delhivery Surface", EstimatedDeliveryDays: "5", Rate: 92.5},
		{CourierCompanyID: "24", CourierName: "Xpressbees Air", EstimatedDeliveryDays: "2", Rate: 148},
		{CourierCompanyID: "51", CourierName: "Ekart Logistics", EstimatedDeliveryDays: "2", Rate: 131.2},
	}
	return resp, nil
}

// AssignAWB returns a mock AWB assignment.
func (m *MockAPIClient) AssignAWB(ctx context.Context, req *AssignAWBRequest) (carrier.Document, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnAssignAWB != nil {
		return m.OnAssignAWB(ctx, req)
	}

	return carrier.Document{
		"awb_assign_status": json.Number("1"),
		"response": map[string]any{
			"data": map[string]any{
				"awb_code":           fmt.Sprintf("SR%d", m.seq.Add(1)),
				"courier_company_id": req.CourierID,
				"courier_name":       "Mock Courier",
				"shipment_id":        req.ShipmentID,
			},
		},
	}, nil
}

// GenerateLabel returns a mock label.
func (m *MockAPIClient) GenerateLabel(ctx context.Context, req *LabelRequest) (carrier.Document, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGenerateLabel != nil {
		return m.OnGenerateLabel(ctx, req)
	}

	return carrier.Document{
		"label_created": json.Number("1"),
		"label_url":     fmt.Sprintf("https://mock.shiprocket.local/labels/%v.pdf", req.ShipmentID[0]),
	}, nil
}

// GeneratePickup returns a mock pickup confirmation.
func (m *MockAPIClient) GeneratePickup(ctx context.Context, req *PickupRequest) (carrier.Document, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGeneratePickup != nil {
		return m.OnGeneratePickup(ctx, req)
	}

	return carrier.Document{
		"pickup_status": json.Number("1"),
		"response": map[string]any{
			"pickup_scheduled_date": time.Now().Add(24 * time.Hour).Format("2006-01-02 15:04:05"),
			"status":                json.Number("3"),
		},
	}, nil
}

// TrackAWB returns mock tracking data.
func (m *MockAPIClient) TrackAWB(ctx context.Context, awbCode string) (carrier.Document, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnTrackAWB != nil {
		return m.OnTrackAWB(ctx, awbCode)
	}

	return carrier.Document{
		"tracking_data": map[string]any{
			"track_status":    json.Number("1"),
			"shipment_status": json.Number("6"),
			"shipment_track": []any{
				map[string]any{"awb_code": awbCode, "current_status": "In Transit"},
			},
		},
	}, nil
}

// CancelOrders returns a mock cancellation.
func (m *MockAPIClient) CancelOrders(ctx context.Context, req *CancelRequest) (carrier.Document, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCancelOrders != nil {
		return m.OnCancelOrders(ctx, req)
	}

	return carrier.Document{
		"status_code": json.Number("200"),
		"message":     "Order cancelled successfully.",
	}, nil
}

// PrintInvoice returns a mock invoice.
func (m *MockAPIClient) PrintInvoice(ctx context.Context, req *InvoiceRequest) (carrier.Document, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnPrintInvoice != nil {
		return m.OnPrintInvoice(ctx, req)
	}

	return carrier.Document{
		"is_invoice_created": true,
		"invoice_url":        fmt.Sprintf("https://mock.shiprocket.local/invoices/%v.pdf", req.IDs[0]),
		"not_created":        []any{},
	}, nil
}

// Ensure MockAPIClient implements APIClient interface
var _ APIClient = (*MockAPIClient)(nil)
