package shiprocket_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fulfillment/pkg/carrier"
	"github.com/tournevent/fulfillment/pkg/carrier/shiprocket"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func newTestClient(mockClient *shiprocket.MockAPIClient) *shiprocket.Client {
	logger := otelzap.New(zap.NewNop())
	return shiprocket.NewWithAPIClient(
		shiprocket.Config{},
		mockClient,
		logger,
		nil,
	)
}

func TestClient_Name(t *testing.T) {
	assert.Equal(t, "shiprocket", newTestClient(shiprocket.NewMockAPIClient()).Name())
}

func TestClient_CreateOrder(t *testing.T) {
	mockAPI := shiprocket.NewMockAPIClient()
	var sent *shiprocket.OrderPayload
	mockAPI.OnCreateOrder = func(ctx context.Context, req *shiprocket.OrderPayload) (*shiprocket.CreateOrderResponse, error) {
		sent = req
		return &shiprocket.CreateOrderResponse{OrderID: "9001", ShipmentID: "7001", Status: "NEW"}, nil
	}
	client := newTestClient(mockAPI)

	result, err := client.CreateOrder(context.Background(), map[string]any{
		"order_id":              "ORD-1",
		"billing_customer_name": "Asha",
		"billing_pincode":       json.Number("560001"),
		"payment_method":        "COD",
		"weight":                json.Number("0.5"),
		"order_items":           []any{},
	})
	require.NoError(t, err)

	require.NotNil(t, sent)
	assert.Equal(t, "ORD-1", sent.OrderID)
	assert.Equal(t, "560001", sent.ShippingPincode)

	assert.Equal(t, "9001", result.CarrierOrderID)
	assert.Equal(t, "7001", result.ShipmentID)
	assert.Equal(t, "NEW", result.Status)
	assert.Equal(t, "560001", result.Summary.BillingPincode)
	assert.Equal(t, "560001", result.Summary.DeliveryPincode)
	assert.True(t, result.Summary.IsCOD())
}

func TestClient_CreateOrder_APIError(t *testing.T) {
	mockAPI := shiprocket.NewMockAPIClient()
	mockAPI.SimulateErrors = true

	_, err := newTestClient(mockAPI).CreateOrder(context.Background(), map[string]any{})

	var apiErr *carrier.APIError
	assert.ErrorAs(t, err, &apiErr)
}

func TestClient_CheckServiceability(t *testing.T) {
	mockAPI := shiprocket.NewMockAPIClient()
	mockAPI.OnServiceability = func(ctx context.Context, req *shiprocket.ServiceabilityRequest) (*shiprocket.ServiceabilityResponse, error) {
		assert.Equal(t, "110001", req.PickupPostcode)
		assert.True(t, req.COD)
		resp := &shiprocket.ServiceabilityResponse{}
		resp.Data.AvailableCourierCompanies = []shiprocket.CourierCompany{
			{CourierCompanyID: "1", CourierName: "A", EstimatedDeliveryDays: "3", Rate: 50},
			{CourierCompanyID: "2", CourierName: "B", EstimatedDeliveryDays: "", Rate: 20},
			{CourierCompanyID: "3", CourierName: "C", EstimatedDeliveryDays: "4.0", Rate: 10},
		}
		return resp, nil
	}

	options, err := newTestClient(mockAPI).CheckServiceability(context.Background(), carrier.ServiceabilityQuery{
		PickupPincode:   "110001",
		DeliveryPincode: "560001",
		Weight:          1,
		COD:             true,
	})
	require.NoError(t, err)
	assert.Equal(t, []carrier.CourierOption{
		{CourierID: "1", CourierName: "A", EstimatedDeliveryDays: 3, Rate: 50},
		{CourierID: "2", CourierName: "B", EstimatedDeliveryDays: carrier.UnknownDeliveryDays, Rate: 20},
		{CourierID: "3", CourierName: "C", EstimatedDeliveryDays: 4, Rate: 10},
	}, options)
}

func TestClient_AssignAWB(t *testing.T) {
	mockAPI := shiprocket.NewMockAPIClient()
	mockAPI.OnAssignAWB = func(ctx context.Context, req *shiprocket.AssignAWBRequest) (carrier.Document, error) {
		assert.Equal(t, json.Number("7001"), req.ShipmentID)
		assert.Equal(t, json.Number("24"), req.CourierID)
		return carrier.Document{
			"awb_assign_status": json.Number("1"),
			"response": map[string]any{"data": map[string]any{
				"awb_code":     "1419110005",
				"courier_name": "Xpressbees",
			}},
		}, nil
	}

	result, err := newTestClient(mockAPI).AssignAWB(context.Background(), "7001", "24")
	require.NoError(t, err)
	assert.Equal(t, "1419110005", result.AWBCode)
	assert.Equal(t, "Xpressbees", result.CourierName)
	assert.Equal(t, carrier.StatusAWBAssigned, result.Status)
}

func TestClient_AssignAWB_NoCode(t *testing.T) {
	mockAPI := shiprocket.NewMockAPIClient()
	mockAPI.OnAssignAWB = func(ctx context.Context, req *shiprocket.AssignAWBRequest) (carrier.Document, error) {
		return carrier.Document{
			"awb_assign_status": json.Number("0"),
			"response": map[string]any{"data": map[string]any{
				"awb_assign_error": "Courier not serviceable",
			}},
		}, nil
	}

	_, err := newTestClient(mockAPI).AssignAWB(context.Background(), "7001", "24")
	require.Error(t, err)
	assert.ErrorIs(t, err, carrier.ErrAWBNotAssigned)
	assert.Contains(t, err.Error(), "Courier not serviceable")
}

func TestClient_GenerateLabel_ProbesCandidates(t *testing.T) {
	tests := []struct {
		name string
		doc  carrier.Document
		want string
	}{
		{"top level", carrier.Document{"label_url": "https://l/top.pdf"}, "https://l/top.pdf"},
		{"under response", carrier.Document{"label_url": nil, "response": map[string]any{"label_url": "https://l/resp.pdf"}}, "https://l/resp.pdf"},
		{"under data", carrier.Document{"data": map[string]any{"label_url": "https://l/data.pdf"}}, "https://l/data.pdf"},
		{"absent", carrier.Document{"label_created": json.Number("0")}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockAPI := shiprocket.NewMockAPIClient()
			mockAPI.OnGenerateLabel = func(ctx context.Context, req *shiprocket.LabelRequest) (carrier.Document, error) {
				assert.Equal(t, []any{json.Number("7001")}, req.ShipmentID)
				assert.Equal(t, "pdf", req.Format)
				assert.Equal(t, "thermal", req.PrintType)
				return tt.doc, nil
			}

			result, err := newTestClient(mockAPI).GenerateLabel(context.Background(), "7001")
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.LabelURL)
		})
	}
}

func TestClient_RequestPickup(t *testing.T) {
	result, err := newTestClient(shiprocket.NewMockAPIClient()).RequestPickup(context.Background(), "7001")
	require.NoError(t, err)
	assert.Equal(t, "1", result.PickupStatus)
}

func TestClient_Track_NormalizesStatus(t *testing.T) {
	tests := []struct {
		name string
		doc  carrier.Document
		want string
	}{
		{
			name: "status id only",
			doc:  carrier.Document{"current_status_id": "7"},
			want: "7",
		},
		{
			name: "status name preferred",
			doc: carrier.Document{"tracking_data": map[string]any{
				"current_status":    "Delivered",
				"shipment_status":   json.Number("7"),
				"current_status_id": json.Number("7"),
			}},
			want: "Delivered",
		},
		{
			name: "code before id",
			doc: carrier.Document{"tracking_data": map[string]any{
				"shipment_status":   json.Number("6"),
				"current_status_id": json.Number("18"),
			}},
			want: "6",
		},
		{
			name: "track list",
			doc: carrier.Document{"tracking_data": map[string]any{
				"shipment_track": []any{map[string]any{"current_status": "Out For Delivery"}},
			}},
			want: "Out For Delivery",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockAPI := shiprocket.NewMockAPIClient()
			mockAPI.OnTrackAWB = func(ctx context.Context, awbCode string) (carrier.Document, error) {
				return tt.doc, nil
			}

			result, err := newTestClient(mockAPI).Track(context.Background(), "AWB1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Status)
			assert.NotNil(t, result.TrackingData)
		})
	}
}

func TestClient_Cancel(t *testing.T) {
	mockAPI := shiprocket.NewMockAPIClient()
	mockAPI.OnCancelOrders = func(ctx context.Context, req *shiprocket.CancelRequest) (carrier.Document, error) {
		assert.Equal(t, []any{json.Number("7001")}, req.IDs)
		assert.Equal(t, "customer request", req.Reason)
		return carrier.Document{"status": "IN_PROGRESS"}, nil
	}

	result, err := newTestClient(mockAPI).Cancel(context.Background(), "7001", "customer request")
	require.NoError(t, err)
	assert.Equal(t, "IN_PROGRESS", result.Status)
}

func TestClient_PrintInvoice(t *testing.T) {
	mockAPI := shiprocket.NewMockAPIClient()
	mockAPI.OnPrintInvoice = func(ctx context.Context, req *shiprocket.InvoiceRequest) (carrier.Document, error) {
		assert.Equal(t, []any{json.Number("9001")}, req.IDs)
		return carrier.Document{"is_invoice_created": true, "response": map[string]any{"invoice_url": "https://i/9001.pdf"}}, nil
	}

	result, err := newTestClient(mockAPI).PrintInvoice(context.Background(), "9001")
	require.NoError(t, err)
	assert.Equal(t, "https://i/9001.pdf", result.InvoiceURL)
}
