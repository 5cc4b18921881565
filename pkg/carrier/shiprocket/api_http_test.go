package shiprocket_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fulfillment/pkg/carrier"
	"github.com/tournevent/fulfillment/pkg/carrier/shiprocket"
)

type fakeShiprocket struct {
	logins   atomic.Int32
	handlers map[string]http.HandlerFunc
}

func newFakeShiprocket(t *testing.T) (*fakeShiprocket, *httptest.Server) {
	t.Helper()

	f := &fakeShiprocket{handlers: map[string]http.HandlerFunc{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/login" {
			f.logins.Add(1)
			var req shiprocket.LoginRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.Password != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"message":"Invalid email and password combination","status_code":401}`))
				return
			}
			_, _ = w.Write([]byte(`{"token":"tkn-1"}`))
			return
		}
		if r.Header.Get("Authorization") != "Bearer tkn-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		h, ok := f.handlers[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not found"}`))
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func newHTTPClient(srv *httptest.Server, password string) *shiprocket.HTTPAPIClient {
	return shiprocket.NewHTTPAPIClient(shiprocket.HTTPAPIClientConfig{
		BaseURL:  srv.URL,
		Email:    "ops@example.com",
		Password: password,
	})
}

func TestHTTPAPIClient_AttachesBearerAndReusesToken(t *testing.T) {
	fake, srv := newFakeShiprocket(t)
	fake.handlers["GET /courier/track/awb/AWB1"] = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tracking_data":{"shipment_status":7}}`))
	}

	client := newHTTPClient(srv, "secret")
	for i := 0; i < 3; i++ {
		doc, err := client.TrackAWB(context.Background(), "AWB1")
		require.NoError(t, err)
		status, ok := doc.FirstString("tracking_data.shipment_status")
		require.True(t, ok)
		assert.Equal(t, "7", status)
	}
	assert.Equal(t, int32(1), fake.logins.Load())
}

func TestHTTPAPIClient_ServiceabilityQuery(t *testing.T) {
	fake, srv := newFakeShiprocket(t)
	fake.handlers["GET /courier/serviceability/"] = func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Empty(t, body)
		q := r.URL.Query()
		assert.Equal(t, "110001", q.Get("pickup_postcode"))
		assert.Equal(t, "560001", q.Get("delivery_postcode"))
		assert.Equal(t, "0.5", q.Get("weight"))
		assert.Equal(t, "1", q.Get("cod"))
		_, _ = w.Write([]byte(`{"status":200,"data":{"available_courier_companies":[
			{"courier_company_id":10,"courier_name":"Delhivery","estimated_delivery_days":"3","rate":"95.5"}
		]}}`))
	}

	client := newHTTPClient(srv, "secret")
	resp, err := client.Serviceability(context.Background(), &shiprocket.ServiceabilityRequest{
		PickupPostcode:   "110001",
		DeliveryPostcode: "560001",
		Weight:           0.5,
		COD:              true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Data.AvailableCourierCompanies, 1)
	cc := resp.Data.AvailableCourierCompanies[0]
	assert.Equal(t, "10", cc.CourierCompanyID.String())
	assert.Equal(t, shiprocket.FlexFloat(95.5), cc.Rate)
}

func TestHTTPAPIClient_SendsBodyOnPost(t *testing.T) {
	fake, srv := newFakeShiprocket(t)
	fake.handlers["POST /courier/generate/label"] = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []any{float64(42)}, body["shipment_id"])
		assert.Equal(t, "pdf", body["format"])
		assert.Equal(t, "thermal", body["print_type"])
		_, _ = w.Write([]byte(`{"label_created":1,"response":{"label_url":"https://l/42.pdf"}}`))
	}

	client := newHTTPClient(srv, "secret")
	doc, err := client.GenerateLabel(context.Background(), &shiprocket.LabelRequest{
		ShipmentID: []any{json.Number("42")},
		Format:     "pdf",
		PrintType:  "thermal",
	})
	require.NoError(t, err)
	url, ok := doc.FirstString("label_url", "response.label_url")
	require.True(t, ok)
	assert.Equal(t, "https://l/42.pdf", url)
}

func TestHTTPAPIClient_NonSuccessMapsToAPIError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantMsg   string
		retryable bool
		sentinel  error
	}{
		{"validation", http.StatusUnprocessableEntity, `{"message":"Invalid courier","status_code":422}`, "Invalid courier", false, nil},
		{"rate limited", http.StatusTooManyRequests, `{"message":"Too Many Attempts."}`, "Too Many Attempts.", true, carrier.ErrRateLimitExceeded},
		{"server error", http.StatusBadGateway, `upstream down`, "upstream down", true, carrier.ErrServiceUnavailable},
		{"not found", http.StatusNotFound, ``, "Not Found", false, carrier.ErrShipmentNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake, srv := newFakeShiprocket(t)
			fake.handlers["POST /courier/assign/awb"] = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}

			client := newHTTPClient(srv, "secret")
			_, err := client.AssignAWB(context.Background(), &shiprocket.AssignAWBRequest{ShipmentID: 1, CourierID: 2})
			require.Error(t, err)

			var apiErr *carrier.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
			assert.Equal(t, tt.retryable, apiErr.Retryable)
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			}
		})
	}
}

func TestHTTPAPIClient_LoginFailure(t *testing.T) {
	fake, srv := newFakeShiprocket(t)

	client := newHTTPClient(srv, "wrong")
	_, err := client.TrackAWB(context.Background(), "AWB1")
	require.Error(t, err)

	var apiErr *carrier.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, carrier.CodeAuth, apiErr.Code)
	assert.Equal(t, "Invalid email and password combination", apiErr.Message)
	assert.True(t, carrier.IsAuthError(err))
	assert.Equal(t, int32(1), fake.logins.Load())
}
