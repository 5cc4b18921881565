package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tournevent/fulfillment/internal/shipment"
	"github.com/tournevent/fulfillment/pkg/carrier"
)

type assignCourierRequest struct {
	CourierID any `json:"courier_id"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type linkRequest struct {
	ShipmentID any `json:"shipment_id"`
}

type invoiceRequest struct {
	OrderID any `json:"order_id"`
}

type linkResponse struct {
	OrderID    string `json:"order_id"`
	ShipmentID string `json:"shipment_id"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := decode(r, &raw, false); err != nil {
		s.invalidJSON(w, err)
		return
	}

	result, err := s.orch.CreateOrder(r.Context(), raw)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusCreated, result)
}

func (s *Server) handleServiceability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := carrier.ServiceabilityQuery{
		PickupPincode:   q.Get("pickup_pincode"),
		DeliveryPincode: q.Get("delivery_pincode"),
	}

	var invalid []string
	if v := q.Get("weight"); v != "" {
		weight, err := strconv.ParseFloat(v, 64)
		if err != nil || weight < 0 {
			invalid = append(invalid, "weight")
		}
		query.Weight = weight
	}
	if v := q.Get("cod"); v != "" {
		cod, err := strconv.ParseBool(v)
		if err != nil {
			invalid = append(invalid, "cod")
		}
		query.COD = cod
	}
	if len(invalid) > 0 {
		s.fail(w, r, &shipment.ValidationError{Fields: invalid})
		return
	}

	options, err := s.orch.CheckServiceability(r.Context(), query)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if options == nil {
		options = []carrier.CourierOption{}
	}
	s.respond(w, http.StatusOK, options)
}

func (s *Server) handleAssignCourier(w http.ResponseWriter, r *http.Request) {
	var req assignCourierRequest
	if err := decode(r, &req, false); err != nil {
		s.invalidJSON(w, err)
		return
	}
	courierID, _ := carrier.Stringify(req.CourierID)

	awb, err := s.orch.AssignCourier(r.Context(), chi.URLParam(r, "shipmentID"), courierID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, awb)
}

func (s *Server) handleGenerateLabel(w http.ResponseWriter, r *http.Request) {
	label, err := s.orch.GenerateLabel(r.Context(), chi.URLParam(r, "shipmentID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, label)
}

func (s *Server) handleRequestPickup(w http.ResponseWriter, r *http.Request) {
	pickup, err := s.orch.RequestPickup(r.Context(), chi.URLParam(r, "shipmentID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, pickup)
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	tracking, err := s.orch.TrackShipment(r.Context(), chi.URLParam(r, "awb"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, tracking)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decode(r, &req, true); err != nil {
		s.invalidJSON(w, err)
		return
	}

	cancelled, err := s.orch.CancelShipment(r.Context(), chi.URLParam(r, "shipmentID"), req.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, cancelled)
}

func (s *Server) handleLinkShipment(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := decode(r, &req, false); err != nil {
		s.invalidJSON(w, err)
		return
	}
	orderID := chi.URLParam(r, "orderID")
	shipmentID, _ := carrier.Stringify(req.ShipmentID)

	if err := s.orch.LinkShipment(r.Context(), orderID, shipmentID); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, linkResponse{OrderID: orderID, ShipmentID: shipmentID})
}

func (s *Server) handleGenerateInvoice(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if err := decode(r, &req, false); err != nil {
		s.invalidJSON(w, err)
		return
	}
	orderID, _ := carrier.Stringify(req.OrderID)

	invoice, err := s.orch.GenerateInvoice(r.Context(), orderID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, invoice)
}

func (s *Server) handleShipmentState(w http.ResponseWriter, r *http.Request) {
	state, err := s.orch.ShipmentState(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, state)
}
