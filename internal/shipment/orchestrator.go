// Package shipment drives an order through the carrier's shipment
// lifecycle and keeps the order's shipment state in sync.
package shipment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AlekSi/pointer"
	"github.com/tournevent/fulfillment/internal/events"
	"github.com/tournevent/fulfillment/internal/store"
	"github.com/tournevent/fulfillment/internal/telemetry"
	"github.com/tournevent/fulfillment/pkg/carrier"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Operation names used in logs, metrics, spans and events.
const (
	OpCreateOrder         = "create_order"
	OpCheckServiceability = "check_serviceability"
	OpAssignCourier       = "assign_courier"
	OpAutoAssign          = "auto_assign"
	OpGenerateLabel       = "generate_label"
	OpRequestPickup       = "request_pickup"
	OpTrackShipment       = "track_shipment"
	OpCancelShipment      = "cancel_shipment"
	OpLinkShipment        = "link_shipment"
	OpGenerateInvoice     = "generate_invoice"
)

// requiredOrderFields must be present and non-null in a create request.
var requiredOrderFields = []string{"order_id", "billing_customer_name", "order_items"}

// Config holds orchestrator configuration.
type Config struct {
	PickupPincode     string        // Default pickup pincode for serviceability
	AutoAssign        bool          // Assign the best courier after order creation
	AutoAssignTimeout time.Duration // Budget for one background assignment
}

// Orchestrator exposes the shipment operations callers invoke.
type Orchestrator struct {
	cfg       Config
	carrier   carrier.Carrier
	store     store.Store
	publisher events.Publisher
	logger    *otelzap.Logger
	metrics   *telemetry.Metrics
	tracer    trace.Tracer

	background sync.WaitGroup
}

// New creates an orchestrator. publisher, metrics and tracer may be nil.
func New(cfg Config, c carrier.Carrier, st store.Store, publisher events.Publisher, logger *otelzap.Logger, metrics *telemetry.Metrics, tracer trace.Tracer) *Orchestrator {
	if cfg.AutoAssignTimeout == 0 {
		cfg.AutoAssignTimeout = 60 * time.Second
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("shipment")
	}

	return &Orchestrator{
		cfg:       cfg,
		carrier:   c,
		store:     st,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		tracer:    tracer,
	}
}

// Wait blocks until every background assignment has finished.
func (o *Orchestrator) Wait() {
	o.background.Wait()
}

// CreateOrder validates raw, creates the order at the carrier and records
// the carrier identifiers. When a shipment id, billing pincode and pickup
// pincode are known, courier assignment continues in the background; its
// outcome never affects the returned result.
func (o *Orchestrator) CreateOrder(ctx context.Context, raw map[string]any) (result *carrier.OrderResult, err error) {
	ctx, done := o.begin(ctx, OpCreateOrder)
	defer func() { done(err) }()

	var absent []string
	for _, f := range requiredOrderFields {
		if v, ok := raw[f]; !ok || v == nil {
			absent = append(absent, f)
		}
	}
	if len(absent) > 0 {
		return nil, &ValidationError{Fields: absent}
	}
	orderID, _ := carrier.Stringify(raw["order_id"])
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("order.id", orderID))

	result, err = o.carrier.CreateOrder(ctx, raw)
	if err != nil {
		return nil, err
	}

	_ = o.merge(ctx, OpCreateOrder, orderID, store.Fields{
		CarrierOrderID: pointer.ToOrNil(result.CarrierOrderID),
		ShipmentID:     pointer.ToOrNil(result.ShipmentID),
		Status:         pointer.ToOrNil(result.Status),
	})

	o.logger.Ctx(ctx).Info("Order created at carrier",
		zap.String("order_id", orderID),
		zap.String("carrier_order_id", result.CarrierOrderID),
		zap.String("shipment_id", result.ShipmentID),
	)

	if o.cfg.AutoAssign && result.ShipmentID != "" && result.Summary.BillingPincode != "" {
		pickup, _ := carrier.Stringify(raw["pickup_pincode"])
		if pickup == "" {
			pickup = o.cfg.PickupPincode
		}
		if pickup == "" {
			o.metrics.RecordAutoAssign(outcomeNoPickup)
			o.logger.Ctx(ctx).Warn("Auto-assign skipped; no pickup pincode",
				zap.String("order_id", orderID),
				zap.String("shipment_id", result.ShipmentID),
			)
			return result, nil
		}
		o.launchAutoAssign(ctx, orderID, AutoAssignRequest{
			ShipmentID:      result.ShipmentID,
			PickupPincode:   pickup,
			DeliveryPincode: result.Summary.DeliveryPincode,
			Weight:          result.Summary.Weight,
			COD:             result.Summary.IsCOD(),
		})
	}

	return result, nil
}

// CheckServiceability lists couriers for a lane. An empty pickup pincode
// falls back to the configured one. Nothing is persisted.
func (o *Orchestrator) CheckServiceability(ctx context.Context, q carrier.ServiceabilityQuery) (options []carrier.CourierOption, err error) {
	ctx, done := o.begin(ctx, OpCheckServiceability)
	defer func() { done(err) }()

	if q.PickupPincode == "" {
		q.PickupPincode = o.cfg.PickupPincode
	}
	if err := missing("pickup_pincode", q.PickupPincode, "delivery_pincode", q.DeliveryPincode); err != nil {
		return nil, err
	}

	return o.carrier.CheckServiceability(ctx, q)
}

// AssignCourier assigns courierID to a shipment and records the AWB.
func (o *Orchestrator) AssignCourier(ctx context.Context, shipmentID, courierID string) (awb *carrier.AWBAssignment, err error) {
	ctx, done := o.begin(ctx, OpAssignCourier)
	defer func() { done(err) }()

	if err := missing("shipment_id", shipmentID, "courier_id", courierID); err != nil {
		return nil, err
	}

	awb, err = o.carrier.AssignAWB(ctx, shipmentID, courierID)
	if err != nil {
		return nil, err
	}

	o.mergeBy(ctx, OpAssignCourier, store.KeyShipmentID, shipmentID, assignmentFields(awb))
	return awb, nil
}

// GenerateLabel generates the shipment's label and records its URL.
func (o *Orchestrator) GenerateLabel(ctx context.Context, shipmentID string) (label *carrier.LabelResult, err error) {
	ctx, done := o.begin(ctx, OpGenerateLabel)
	defer func() { done(err) }()

	if err := missing("shipment_id", shipmentID); err != nil {
		return nil, err
	}

	label, err = o.carrier.GenerateLabel(ctx, shipmentID)
	if err != nil {
		return nil, err
	}

	o.mergeBy(ctx, OpGenerateLabel, store.KeyShipmentID, shipmentID, store.Fields{
		LabelURL: pointer.ToOrNil(label.LabelURL),
	})
	return label, nil
}

// RequestPickup requests pickup and records the pickup status.
func (o *Orchestrator) RequestPickup(ctx context.Context, shipmentID string) (pickup *carrier.PickupResult, err error) {
	ctx, done := o.begin(ctx, OpRequestPickup)
	defer func() { done(err) }()

	if err := missing("shipment_id", shipmentID); err != nil {
		return nil, err
	}

	pickup, err = o.carrier.RequestPickup(ctx, shipmentID)
	if err != nil {
		return nil, err
	}

	o.mergeBy(ctx, OpRequestPickup, store.KeyShipmentID, shipmentID, store.Fields{
		PickupStatus: pointer.ToOrNil(pickup.PickupStatus),
	})
	return pickup, nil
}

// TrackShipment fetches tracking for an AWB and records the tracking blob
// with its normalized status.
func (o *Orchestrator) TrackShipment(ctx context.Context, awbCode string) (tracking *carrier.TrackingResult, err error) {
	ctx, done := o.begin(ctx, OpTrackShipment)
	defer func() { done(err) }()

	if err := missing("awb_code", awbCode); err != nil {
		return nil, err
	}

	tracking, err = o.carrier.Track(ctx, awbCode)
	if err != nil {
		return nil, err
	}

	o.mergeBy(ctx, OpTrackShipment, store.KeyAWBCode, awbCode, store.Fields{
		TrackingData: tracking.TrackingData,
		Status:       pointer.ToOrNil(tracking.Status),
	})
	return tracking, nil
}

// CancelShipment cancels at the carrier, then marks the shipment and its
// pickup CANCELLED locally whatever status the carrier reported.
func (o *Orchestrator) CancelShipment(ctx context.Context, shipmentID, reason string) (cancelled *carrier.CancelResult, err error) {
	ctx, done := o.begin(ctx, OpCancelShipment)
	defer func() { done(err) }()

	if err := missing("shipment_id", shipmentID); err != nil {
		return nil, err
	}

	cancelled, err = o.carrier.Cancel(ctx, shipmentID, reason)
	if err != nil {
		return nil, err
	}

	o.mergeBy(ctx, OpCancelShipment, store.KeyShipmentID, shipmentID, store.Fields{
		Status:       pointer.To(carrier.StatusCancelled),
		PickupStatus: pointer.To(carrier.StatusCancelled),
	})
	return cancelled, nil
}

// LinkShipment attaches a shipment to an order without calling the
// carrier. It reconciles shipments created out of band and earlier merges
// that failed. Unlike the other operations, a failed write is returned.
func (o *Orchestrator) LinkShipment(ctx context.Context, orderID, shipmentID string) (err error) {
	ctx, done := o.begin(ctx, OpLinkShipment)
	defer func() { done(err) }()

	if err := missing("order_id", orderID, "shipment_id", shipmentID); err != nil {
		return err
	}

	err = o.merge(ctx, OpLinkShipment, orderID, store.Fields{ShipmentID: pointer.To(shipmentID)})
	switch {
	case errors.Is(err, store.ErrShipmentConflict):
		return fmt.Errorf("linking %s to order %s: %w", shipmentID, orderID, err)
	case err != nil:
		return &PersistenceError{Op: OpLinkShipment, OrderID: orderID, Err: err}
	}
	return nil
}

// GenerateInvoice prints the invoice of a carrier order and records its URL.
func (o *Orchestrator) GenerateInvoice(ctx context.Context, carrierOrderID string) (invoice *carrier.InvoiceResult, err error) {
	ctx, done := o.begin(ctx, OpGenerateInvoice)
	defer func() { done(err) }()

	if err := missing("order_id", carrierOrderID); err != nil {
		return nil, err
	}

	invoice, err = o.carrier.PrintInvoice(ctx, carrierOrderID)
	if err != nil {
		return nil, err
	}

	o.mergeBy(ctx, OpGenerateInvoice, store.KeyCarrierOrderID, carrierOrderID, store.Fields{
		InvoiceURL: pointer.ToOrNil(invoice.InvoiceURL),
	})
	return invoice, nil
}

// ShipmentState returns the recorded shipment state of an order.
func (o *Orchestrator) ShipmentState(ctx context.Context, orderID string) (*store.ShipmentState, error) {
	if err := missing("order_id", orderID); err != nil {
		return nil, err
	}

	state, err := o.store.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			return nil, err
		}
		return nil, &PersistenceError{Op: "get_shipment_state", OrderID: orderID, Err: err}
	}
	return state, nil
}

// merge writes fields onto orderID and publishes the change. Failures are
// logged and counted; only LinkShipment acts on the returned error.
func (o *Orchestrator) merge(ctx context.Context, op, orderID string, fields store.Fields) error {
	if fields.IsEmpty() {
		return nil
	}

	if err := o.store.Merge(ctx, orderID, fields); err != nil {
		o.metrics.RecordMergeFailure(op)
		if errors.Is(err, store.ErrShipmentConflict) {
			o.logger.Ctx(ctx).Warn("Shipment state merge rejected; order has another shipment",
				zap.String("operation", op),
				zap.String("order_id", orderID),
				zap.Stringp("shipment_id", fields.ShipmentID),
			)
			return err
		}
		o.logger.Ctx(ctx).Error("Shipment state merge failed; reconcile with link",
			zap.String("operation", op),
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		return err
	}

	evt := events.NewShipmentStateChanged(orderID, op, fields.Patch())
	if err := o.publisher.Publish(ctx, evt); err != nil {
		o.logger.Ctx(ctx).Warn("Publishing shipment state event failed",
			zap.String("event_id", evt.EventID),
			zap.String("order_id", orderID),
			zap.Error(err),
		)
	}
	return nil
}

// mergeBy resolves the order owning key = value, then merges onto it.
func (o *Orchestrator) mergeBy(ctx context.Context, op string, key store.Key, value string, fields store.Fields) {
	if fields.IsEmpty() {
		return
	}

	orderID, err := o.store.FindOrderID(ctx, key, value)
	if err != nil {
		o.metrics.RecordMergeFailure(op)
		o.logger.Ctx(ctx).Warn("No order linked to shipment; state not recorded",
			zap.String("operation", op),
			zap.String("key", string(key)),
			zap.String("value", value),
			zap.Error(err),
		)
		return
	}

	_ = o.merge(ctx, op, orderID, fields)
}

// begin opens the span of an operation. The returned func ends it and
// records the outcome.
func (o *Orchestrator) begin(ctx context.Context, op string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "shipment."+op, trace.WithAttributes(
		attribute.String("carrier", o.carrier.Name()),
	))

	return ctx, func(err error) {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())

			var apiErr *carrier.APIError
			if errors.As(err, &apiErr) {
				o.metrics.RecordError(o.carrier.Name(), apiErr.Code)
			}
		}
		o.metrics.RecordRequest(op, o.carrier.Name(), status, time.Since(start).Seconds())
		span.End()
	}
}

func assignmentFields(awb *carrier.AWBAssignment) store.Fields {
	return store.Fields{
		ShipmentID:  pointer.ToOrNil(awb.ShipmentID),
		CourierID:   pointer.ToOrNil(awb.CourierID),
		AWBCode:     pointer.ToOrNil(awb.AWBCode),
		CourierName: pointer.ToOrNil(awb.CourierName),
		Status:      pointer.ToOrNil(awb.Status),
	}
}
