/*
errors.go - Centralized error types for the settlement engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The calculation core itself never returns errors: malformed input defaults
  to zero. These errors belong to the layers around it (loading inputs,
  importing meter readings, rendering documents, the HTTP API).

ERROR CATEGORIES:
  1. Lookup errors - Settlement, tenant or house does not exist
  2. Validation errors - Client input that cannot be processed
  3. Store errors - Database-level failures

USAGE:
  if errors.Is(err, generic.ErrSettlementNotFound) {
      // 404
  }

SEE ALSO:
  - settlement/service.go: Returns lookup errors
  - api/handlers.go: Maps errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrSettlementNotFound is returned when a referenced settlement doesn't exist.
	ErrSettlementNotFound = errors.New("settlement not found")

	// ErrTenantNotFound is returned when a referenced tenant doesn't exist or
	// doesn't live in the settlement's house.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrHouseNotFound is returned when a referenced house doesn't exist.
	ErrHouseNotFound = errors.New("house not found")

	// ErrApartmentNotFound is returned when a referenced apartment doesn't exist.
	ErrApartmentNotFound = errors.New("apartment not found")

	// ErrInvalidMode is returned for a computation mode other than single/all.
	ErrInvalidMode = errors.New("invalid computation mode")

	// ErrInvalidYear is returned when a billing year is outside the supported range.
	ErrInvalidYear = errors.New("invalid billing year")

	// ErrUnsupportedFormat is returned for unknown export or import formats.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrDuplicate is returned when a record with the same key already exists.
	ErrDuplicate = errors.New("duplicate record")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ErrValidation is the sentinel all FieldErrors unwrap to.
var ErrValidation = errors.New("validation failed")

func (e *FieldError) Unwrap() error {
	return ErrValidation
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidMode) ||
		errors.Is(err, ErrInvalidYear) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrDuplicate)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSettlementNotFound) ||
		errors.Is(err, ErrTenantNotFound) ||
		errors.Is(err, ErrHouseNotFound) ||
		errors.Is(err, ErrApartmentNotFound)
}
