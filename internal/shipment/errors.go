package shipment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tournevent/fulfillment/internal/store"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrShipmentConflict indicates the order is already linked to a
	// different shipment. Stores return it from Merge.
	ErrShipmentConflict = store.ErrShipmentConflict
)

// ValidationError reports required inputs that were missing. No carrier
// call is made when it is returned.
type ValidationError struct {
	Fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
}

// Is makes errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// PersistenceError reports a failed shipment state write or read.
type PersistenceError struct {
	Op      string
	OrderID string
	Err     error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: persisting shipment state of order %q: %v", e.Op, e.OrderID, e.Err)
}

// Unwrap returns the underlying store error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func missing(pairs ...string) error {
	var fields []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			fields = append(fields, pairs[i])
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}
