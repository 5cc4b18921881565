package shiprocket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tournevent/fulfillment/pkg/carrier"
)

// HTTPAPIClient is the production implementation of APIClient using HTTP.
type HTTPAPIClient struct {
	baseURL    string
	email      string
	password   string
	httpClient *http.Client
	tokens     *TokenCache
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL            string
	Email              string
	Password           string
	Timeout            time.Duration
	TokenTTL           time.Duration    // Lifetime of an issued token
	TokenRefreshMargin time.Duration    // Refresh this long before expiry
	Now                func() time.Time // Clock for the token cache
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	c := &HTTPAPIClient{
		baseURL:  cfg.BaseURL,
		email:    cfg.Email,
		password: cfg.Password,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	c.tokens = NewTokenCache(c.login, TokenCacheConfig{
		TTL:           cfg.TokenTTL,
		RefreshMargin: cfg.TokenRefreshMargin,
		Now:           cfg.Now,
	})
	return c
}

// CreateOrder creates an adhoc order.
func (c *HTTPAPIClient) CreateOrder(ctx context.Context, req *OrderPayload) (*CreateOrderResponse, error) {
	var result CreateOrderResponse
	if err := c.Do(ctx, http.MethodPost, "/orders/create/adhoc", nil, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Serviceability lists couriers able to serve a lane.
func (c *HTTPAPIClient) Serviceability(ctx context.Context, req *ServiceabilityRequest) (*ServiceabilityResponse, error) {
	cod := "0"
	if req.COD {
		cod = "1"
	}
	query := url.Values{}
	query.Set("pickup_postcode", req.PickupPostcode)
	query.Set("delivery_postcode", req.DeliveryPostcode)
	query.Set("weight", strconv.FormatFloat(req.Weight, 'f', -1, 64))
	query.Set("cod", cod)

	var result ServiceabilityResponse
	if err := c.Do(ctx, http.MethodGet, "/courier/serviceability/", query, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AssignAWB assigns a courier to a shipment.
func (c *HTTPAPIClient) AssignAWB(ctx context.Context, req *AssignAWBRequest) (carrier.Document, error) {
	return c.document(ctx, http.MethodPost, "/courier/assign/awb", nil, req)
}

// GenerateLabel generates labels for shipments.
func (c *HTTPAPIClient) GenerateLabel(ctx context.Context, req *LabelRequest) (carrier.Document, error) {
	return c.document(ctx, http.MethodPost, "/courier/generate/label", nil, req)
}

// GeneratePickup requests pickup for shipments.
func (c *HTTPAPIClient) GeneratePickup(ctx context.Context, req *PickupRequest) (carrier.Document, error) {
	return c.document(ctx, http.MethodPost, "/courier/generate/pickup", nil, req)
}

// TrackAWB returns tracking data for an AWB code.
func (c *HTTPAPIClient) TrackAWB(ctx context.Context, awbCode string) (carrier.Document, error) {
	path := fmt.Sprintf("/courier/track/awb/%s", url.PathEscape(awbCode))
	return c.document(ctx, http.MethodGet, path, nil, nil)
}

// CancelOrders cancels shipments.
func (c *HTTPAPIClient) CancelOrders(ctx context.Context, req *CancelRequest) (carrier.Document, error) {
	return c.document(ctx, http.MethodPost, "/orders/cancel", nil, req)
}

// PrintInvoice generates invoices for orders.
func (c *HTTPAPIClient) PrintInvoice(ctx context.Context, req *InvoiceRequest) (carrier.Document, error) {
	return c.document(ctx, http.MethodPost, "/orders/print/invoice", nil, req)
}

func (c *HTTPAPIClient) document(ctx context.Context, method, path string, query url.Values, body interface{}) (carrier.Document, error) {
	doc := carrier.Document{}
	if err := c.Do(ctx, method, path, query, body, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Do performs an authenticated request and decodes a successful response
// into out. The body is sent only for mutating methods. Any non-2xx
// outcome is returned as a *carrier.APIError; nothing is retried.
func (c *HTTPAPIClient) Do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	if !sendsBody(method) {
		body = nil
	}

	resp, err := c.doRequest(ctx, method, path, query, body, token)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.parseError(resp)
	}

	return decodeBody(resp.Body, out)
}

// login exchanges the configured credentials for a bearer token.
// POST /auth/login is the only unauthenticated call.
func (c *HTTPAPIClient) login(ctx context.Context) (string, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/login", nil, &LoginRequest{
		Email:    c.email,
		Password: c.password,
	}, "")
	if err != nil {
		return "", carrier.NewAuthError(carrierName, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr *carrier.APIError
		if errors.As(c.parseError(resp), &apiErr) {
			return "", carrier.NewAuthError(carrierName, apiErr.Message, nil).WithStatusCode(resp.StatusCode)
		}
		return "", carrier.NewAuthError(carrierName, "", nil).WithStatusCode(resp.StatusCode)
	}

	var result LoginResponse
	if err := decodeBody(resp.Body, &result); err != nil {
		return "", carrier.NewAuthError(carrierName, "", err)
	}
	if result.Token == "" {
		return "", carrier.NewAuthError(carrierName, "login response carried no token", nil)
	}
	return result.Token, nil
}

// doRequest performs an HTTP request with proper headers and authentication.
func (c *HTTPAPIClient) doRequest(ctx context.Context, method, path string, query url.Values, body interface{}, token string) (*http.Response, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "tournevent-fulfillment/1.0")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, carrier.NewAPIError(carrierName, "TRANSPORT_ERROR", fmt.Sprintf("%s %s failed", method, path)).
			WithCause(err).
			WithRetryable(true)
	}
	return resp, nil
}

// parseError extracts error information from an HTTP response.
func (c *HTTPAPIClient) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	msg := string(bytes.TrimSpace(body))
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		msg = errResp.Message
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	apiErr := carrier.NewAPIError(carrierName, fmt.Sprintf("HTTP_%d", resp.StatusCode), msg).
		WithStatusCode(resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		apiErr.WithCause(carrier.ErrShipmentNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		apiErr.WithCause(carrier.ErrRateLimitExceeded).WithRetryable(true)
	case resp.StatusCode >= 500:
		apiErr.WithCause(carrier.ErrServiceUnavailable).WithRetryable(true)
	}
	return apiErr
}

func decodeBody(r io.Reader, out interface{}) error {
	if out == nil {
		return nil
	}
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return carrier.NewAPIError(carrierName, "DECODE_ERROR", "failed to decode response").WithCause(err)
	}
	return nil
}

func sendsBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)
