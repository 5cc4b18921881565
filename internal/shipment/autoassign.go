package shipment

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/tournevent/fulfillment/pkg/carrier"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Auto-assign outcomes, as recorded in metrics.
const (
	outcomeAssigned   = "assigned"
	outcomeNoCourier  = "no_courier"
	outcomeFailed     = "failed"
	outcomeUnrecorded = "unrecorded"
	outcomePanicked   = "panicked"
	outcomeNoPickup   = "no_pickup"
)

// AutoAssignRequest describes the lane of a freshly created shipment.
type AutoAssignRequest struct {
	ShipmentID      string
	PickupPincode   string
	DeliveryPincode string
	Weight          float64
	COD             bool
}

// AutoAssign checks serviceability, picks the best courier and assigns it
// to the shipment, recording the AWB on orderID. It runs synchronously and
// returns every failure; a failed final merge returns the assignment too.
func (o *Orchestrator) AutoAssign(ctx context.Context, orderID string, req AutoAssignRequest) (*carrier.AWBAssignment, error) {
	options, err := o.carrier.CheckServiceability(ctx, carrier.ServiceabilityQuery{
		PickupPincode:   req.PickupPincode,
		DeliveryPincode: req.DeliveryPincode,
		Weight:          req.Weight,
		COD:             req.COD,
	})
	if err != nil {
		return nil, fmt.Errorf("checking serviceability: %w", err)
	}

	best, err := carrier.SelectBest(options)
	if err != nil {
		return nil, err
	}

	awb, err := o.carrier.AssignAWB(ctx, req.ShipmentID, best.CourierID)
	if err != nil {
		return nil, fmt.Errorf("assigning courier %s: %w", best.CourierID, err)
	}

	if err := o.merge(ctx, OpAutoAssign, orderID, assignmentFields(awb)); err != nil {
		return awb, &PersistenceError{Op: OpAutoAssign, OrderID: orderID, Err: err}
	}

	o.logger.Ctx(ctx).Info("Courier auto-assigned",
		zap.String("order_id", orderID),
		zap.String("shipment_id", req.ShipmentID),
		zap.String("courier_id", best.CourierID),
		zap.Int("estimated_delivery_days", best.EstimatedDeliveryDays),
		zap.Float64("rate", best.Rate),
		zap.String("awb_code", awb.AWBCode),
	)
	return awb, nil
}

// launchAutoAssign runs AutoAssign detached from the caller. It outlives
// the caller's cancellation, is bounded by AutoAssignTimeout, and contains
// every error and panic; the outcome is only visible in logs, metrics and
// the stored shipment state.
func (o *Orchestrator) launchAutoAssign(parent context.Context, orderID string, req AutoAssignRequest) {
	o.background.Add(1)

	go func() {
		defer o.background.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), o.cfg.AutoAssignTimeout)
		defer cancel()

		ctx, span := o.tracer.Start(ctx, "shipment."+OpAutoAssign,
			trace.WithNewRoot(),
			trace.WithLinks(trace.LinkFromContext(parent)),
			trace.WithAttributes(
				attribute.String("order.id", orderID),
				attribute.String("shipment.id", req.ShipmentID),
			),
		)
		defer span.End()

		defer func() {
			if r := recover(); r != nil {
				o.metrics.RecordAutoAssign(outcomePanicked)
				span.SetStatus(codes.Error, "panic")
				o.logger.Ctx(ctx).Error("Courier auto-assign panicked",
					zap.String("order_id", orderID),
					zap.String("shipment_id", req.ShipmentID),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
			}
		}()

		_, err := o.AutoAssign(ctx, orderID, req)
		outcome := autoAssignOutcome(err)
		o.metrics.RecordAutoAssign(outcome)
		if err == nil {
			return
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Ctx(ctx).Warn("Courier auto-assign failed",
			zap.String("order_id", orderID),
			zap.String("shipment_id", req.ShipmentID),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
	}()
}

func autoAssignOutcome(err error) string {
	var persistErr *PersistenceError
	switch {
	case err == nil:
		return outcomeAssigned
	case errors.Is(err, carrier.ErrNoCourierAvailable):
		return outcomeNoCourier
	case errors.As(err, &persistErr):
		return outcomeUnrecorded
	}
	return outcomeFailed
}
