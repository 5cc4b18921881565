package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/tournevent/fulfillment/internal/shipment"
	"github.com/tournevent/fulfillment/internal/store"
	"github.com/tournevent/fulfillment/pkg/carrier"
	"go.uber.org/zap"
)

// Error codes of the response envelope that are not carrier codes.
const (
	CodeInvalidJSON = "INVALID_JSON"
	CodeValidation  = "VALIDATION_ERROR"
	CodeNotFound    = "NOT_FOUND"
	CodeConflict    = "CONFLICT"
	CodePersistence = "PERSISTENCE_ERROR"
	CodeInternal    = "INTERNAL_ERROR"
)

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) respond(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, envelope{Success: true, Data: data})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Ctx(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.String("code", code),
			zap.Error(err),
		)
	}
	writeJSON(w, status, envelope{Error: &errorBody{Code: code, Message: err.Error()}})
}

func classify(err error) (int, string) {
	var apiErr *carrier.APIError
	var persistErr *shipment.PersistenceError

	switch {
	case errors.Is(err, shipment.ErrValidation):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, shipment.ErrShipmentConflict):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, store.ErrOrderNotFound), errors.Is(err, carrier.ErrShipmentNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, apiErr.Code
	case errors.As(err, &persistErr), errors.Is(err, store.ErrPersistence):
		return http.StatusInternalServerError, CodePersistence
	}
	return http.StatusInternalServerError, CodeInternal
}

// decode reads a JSON body into v, keeping numbers as json.Number. An
// empty body leaves v untouched when optional is set.
func decode(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func (s *Server) invalidJSON(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, envelope{Error: &errorBody{
		Code:    CodeInvalidJSON,
		Message: "invalid JSON body: " + err.Error(),
	}})
}
