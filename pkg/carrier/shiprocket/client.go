package shiprocket

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/tournevent/fulfillment/pkg/carrier"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const carrierName = "shiprocket"

// Label generation parameters fixed for every request.
const (
	labelFormat    = "pdf"
	labelPrintType = "thermal"
)

// Candidate locations of fields whose position varies between response
// versions. The first non-empty value wins.
var (
	labelURLPaths       = []string{"label_url", "response.label_url", "data.label_url"}
	invoiceURLPaths     = []string{"invoice_url", "response.invoice_url", "data.invoice_url"}
	pickupStatusPaths   = []string{"pickup_status", "response.pickup_status", "response.status"}
	awbCodePaths        = []string{"response.data.awb_code", "awb_code", "data.awb_code"}
	courierNamePaths    = []string{"response.data.courier_name", "courier_name", "data.courier_name"}
	awbErrorPaths       = []string{"response.data.awb_assign_error", "message"}
	trackingStatusPaths = []string{"current_status", "shipment_track.0.current_status", "shipment_status", "current_status_id"}
	cancelStatusPaths   = []string{"status", "message"}
)

// Config holds Shiprocket configuration.
type Config struct {
	Email              string
	Password           string
	BaseURL            string
	Timeout            time.Duration
	TokenTTL           time.Duration
	TokenRefreshMargin time.Duration
	UseMock            bool // When true, uses mock API client
}

// Client is the Shiprocket carrier client.
// It implements the carrier.Carrier interface and delegates
// API calls to the underlying APIClient (mock or HTTP).
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new Shiprocket client.
// If cfg.UseMock is true, it uses a mock API client.
// Otherwise, it uses the real HTTP API client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL:            cfg.BaseURL,
			Email:              cfg.Email,
			Password:           cfg.Password,
			Timeout:            cfg.Timeout,
			TokenTTL:           cfg.TokenTTL,
			TokenRefreshMargin: cfg.TokenRefreshMargin,
		})
	}

	return NewWithAPIClient(cfg, apiClient, logger, tracer)
}

// NewWithAPIClient creates a new Shiprocket client with a custom API client.
// This is useful for injecting mock clients in tests.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(carrierName)
	}
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
	}
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return carrierName
}

// CreateOrder builds the complete payload from raw and creates the order.
func (c *Client) CreateOrder(ctx context.Context, raw map[string]any) (*carrier.OrderResult, error) {
	ctx, span := c.tracer.Start(ctx, "shiprocket.CreateOrder")
	defer span.End()

	payload := BuildOrderPayload(raw)
	span.SetAttributes(attribute.String("order.id", payload.OrderID))

	c.logger.Ctx(ctx).Info("Creating Shiprocket order",
		zap.String("order_id", payload.OrderID),
		zap.Int("item_count", len(payload.OrderItems)),
		zap.String("payment_method", payload.PaymentMethod),
	)

	resp, err := c.apiClient.CreateOrder(ctx, &payload)
	if err != nil {
		return nil, c.fail(ctx, span, "Shiprocket create order failed", err)
	}

	return &carrier.OrderResult{
		CarrierOrderID: resp.OrderID.String(),
		ShipmentID:     resp.ShipmentID.String(),
		Status:         resp.Status.String(),
		AWBCode:        resp.AWBCode.String(),
		CourierName:    resp.CourierName.String(),
		Summary:        payload.Summary(),
	}, nil
}

// CheckServiceability lists the couriers able to serve a lane.
func (c *Client) CheckServiceability(ctx context.Context, q carrier.ServiceabilityQuery) ([]carrier.CourierOption, error) {
	ctx, span := c.tracer.Start(ctx, "shiprocket.CheckServiceability")
	defer span.End()

	c.logger.Ctx(ctx).Debug("Checking Shiprocket serviceability",
		zap.String("pickup_pincode", q.PickupPincode),
		zap.String("delivery_pincode", q.DeliveryPincode),
		zap.Float64("weight", q.Weight),
		zap.Bool("cod", q.COD),
	)

	resp, err := c.apiClient.Serviceability(ctx, &ServiceabilityRequest{
		PickupPostcode:   q.PickupPincode,
		DeliveryPostcode: q.DeliveryPincode,
		Weight:           q.Weight,
		COD:              q.COD,
	})
	if err != nil {
		return nil, c.fail(ctx, span, "Shiprocket serviceability failed", err)
	}

	options := couriersToOptions(resp.Data.AvailableCourierCompanies)
	span.SetAttributes(attribute.Int("courier.options", len(options)))
	return options, nil
}

// AssignAWB assigns a courier to a shipment. A response without an AWB
// code is an error even when the HTTP call succeeded.
func (c *Client) AssignAWB(ctx context.Context, shipmentID, courierID string) (*carrier.AWBAssignment, error) {
	ctx, span := c.tracer.Start(ctx, "shiprocket.AssignAWB", trace.WithAttributes(
		attribute.String("shipment.id", shipmentID),
		attribute.String("courier.id", courierID),
	))
	defer span.End()

	doc, err := c.apiClient.AssignAWB(ctx, &AssignAWBRequest{
		ShipmentID: idValue(shipmentID),
		CourierID:  idValue(courierID),
	})
	if err != nil {
		return nil, c.fail(ctx, span, "Shiprocket AWB assignment failed", err)
	}

	awb, ok := doc.FirstString(awbCodePaths...)
	if !ok {
		msg, _ := doc.FirstString(awbErrorPaths...)
		if msg == "" {
			msg = "carrier returned no awb code"
		}
		return nil, c.fail(ctx, span, "Shiprocket AWB assignment returned no AWB",
			carrier.NewAPIError(carrierName, "AWB_NOT_ASSIGNED", msg).WithCause(carrier.ErrAWBNotAssigned))
	}
	courierName, _ := doc.FirstString(courierNamePaths...)

	c.logger.Ctx(ctx).Info("Shiprocket AWB assigned",
		zap.String("shipment_id", shipmentID),
		zap.String("awb_code", awb),
		zap.String("courier_name", courierName),
	)

	return &carrier.AWBAssignment{
		ShipmentID:  shipmentID,
		CourierID:   courierID,
		AWBCode:     awb,
		CourierName: courierName,
		Status:      carrier.StatusAWBAssigned,
		Raw:         doc,
	}, nil
}

// GenerateLabel generates the label for a single shipment.
func (c *Client) GenerateLabel(ctx context.Context, shipmentID string) (*carrier.LabelResult, error) {
	ctx, span := c.tracer.Start(ctx, "shiprocket.GenerateLabel", trace.WithAttributes(
		attribute.String("shipment.id", shipmentID),
	))
	defer span.End()

	doc, err := c.apiClient.GenerateLabel(ctx, &LabelRequest{
		ShipmentID: []any{idValue(shipmentID)},
		Format:     labelFormat,
		PrintType:  labelPrintType,
	})
	if err != nil {
		return nil, c.fail(ctx, span, "Shiprocket label generation failed", err)
	}

	labelURL, _ := doc.FirstString(labelURLPaths...)
	if labelURL == "" {
		c.logger.Ctx(ctx).Warn("Shiprocket label response carried no URL", zap.String("shipment_id", shipmentID))
	}

	return &carrier.LabelResult{ShipmentID: shipmentID, LabelURL: labelURL, Raw: doc}, nil
}

// RequestPickup requests pickup for a single shipment.
func (c *Client) RequestPickup(ctx context.Context, shipmentID string) (*carrier.PickupResult, error) {
	ctx, span := c.tracer.Start(ctx, "shiprocket.RequestPickup", trace.WithAttributes(
		attribute.String("shipment.id", shipmentID),
	))
	defer span.End()

	doc, err := c.apiClient.GeneratePickup(ctx, &PickupRequest{
		ShipmentID: []any{idValue(shipmentID)},
	})
	if err != nil {
		return nil, c.fail(ctx, span, "Shiprocket pickup request failed", err)
	}

	status, _ := doc.FirstString(pickupStatusPaths...)
	return &carrier.PickupResult{ShipmentID: shipmentID, PickupStatus: status, Raw: doc}, nil
}

// Track returns the tracking blob for an AWB and its normalized status.
func (c *Client) Track(ctx context.Context, awbCode string) (*carrier.TrackingResult, error) {
	ctx, span := c.tracer.Start(ctx, "shiprocket.Track", trace.WithAttributes(
		attribute.String("awb.code", awbCode),
	))
	defer span.End()

	doc, err := c.apiClient.TrackAWB(ctx, awbCode)
	if err != nil {
		return nil, c.fail(ctx, span, "Shiprocket tracking failed", err)
	}

	blob, ok := doc.Object("tracking_data")
	if !ok {
		blob = doc
	}
	status, _ := carrier.Document(blob).FirstString(trackingStatusPaths...)

	return &carrier.TrackingResult{AWBCode: awbCode, Status: status, TrackingData: blob}, nil
}

// Cancel cancels a single shipment.
func (c *Client) Cancel(ctx context.Context, shipmentID, reason string) (*carrier.CancelResult, error) {
	ctx, span := c.tracer.Start(ctx, "shiprocket.Cancel", trace.WithAttributes(
		attribute.String("shipment.id", shipmentID),
	))
	defer span.End()

	c.logger.Ctx(ctx).Info("Cancelling Shiprocket shipment",
		zap.String("shipment_id", shipmentID),
		zap.String("reason", reason),
	)

	doc, err := c.apiClient.CancelOrders(ctx, &CancelRequest{
		IDs:    []any{idValue(shipmentID)},
		Reason: reason,
	})
	if err != nil {
		return nil, c.fail(ctx, span, "Shiprocket cancellation failed", err)
	}

	status, _ := doc.FirstString(cancelStatusPaths...)
	return &carrier.CancelResult{ShipmentID: shipmentID, Status: status, Raw: doc}, nil
}

// PrintInvoice generates the invoice for a single carrier order.
func (c *Client) PrintInvoice(ctx context.Context, orderID string) (*carrier.InvoiceResult, error) {
	ctx, span := c.tracer.Start(ctx, "shiprocket.PrintInvoice", trace.WithAttributes(
		attribute.String("order.id", orderID),
	))
	defer span.End()

	doc, err := c.apiClient.PrintInvoice(ctx, &InvoiceRequest{
		IDs: []any{idValue(orderID)},
	})
	if err != nil {
		return nil, c.fail(ctx, span, "Shiprocket invoice generation failed", err)
	}

	invoiceURL, _ := doc.FirstString(invoiceURLPaths...)
	return &carrier.InvoiceResult{OrderID: orderID, InvoiceURL: invoiceURL, Raw: doc}, nil
}

func (c *Client) fail(ctx context.Context, span trace.Span, msg string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.logger.Ctx(ctx).Error(msg, zap.Error(err))
	return err
}

// =============================================================================
// Conversion helpers
// =============================================================================

func couriersToOptions(companies []CourierCompany) []carrier.CourierOption {
	options := make([]carrier.CourierOption, 0, len(companies))
	for _, cc := range companies {
		options = append(options, carrier.CourierOption{
			CourierID:             cc.CourierCompanyID.String(),
			CourierName:           cc.CourierName,
			EstimatedDeliveryDays: parseDays(cc.EstimatedDeliveryDays.String()),
			Rate:                  float64(cc.Rate),
		})
	}
	return options
}

// parseDays reads estimates such as "3" or "3.0"; anything else is unknown.
func parseDays(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return carrier.UnknownDeliveryDays
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return int(f)
	}
	return carrier.UnknownDeliveryDays
}

// Ensure Client implements carrier.Carrier interface
var _ carrier.Carrier = (*Client)(nil)
