/*
errors.go - Centralized error types for the funding engine

PURPOSE:
  All business-rule error types in one place. The API boundary translates
  every error defined here into the uniform {success:false, message, errors?}
  envelope; anything else surfaces as a 500 and is logged server-side.

ERROR CATEGORIES:
  1. Not-found errors  - referenced entity does not exist (HTTP 404)
  2. Validation errors - malformed or rule-breaking input (HTTP 422)
  3. Capacity errors   - grant item position slots exhausted (HTTP 422)
  4. Conflict errors   - stacking a second active allocation set (HTTP 422)

USAGE:
  Callers classify with the helpers:

    if hr.IsNotFound(err) { ... 404 ... }
    var capErr *hr.CapacityError
    if errors.As(err, &capErr) { ... name the item and remaining slots ... }

SEE ALSO:
  - api/handlers.go: Boundary translation to HTTP
  - funding/validator.go: Produces ValidationErrors
*/
package hr

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrGrantNotFound is returned when a referenced grant doesn't exist.
	ErrGrantNotFound = errors.New("grant not found")

	// ErrGrantItemNotFound is returned when a referenced grant item doesn't exist.
	ErrGrantItemNotFound = errors.New("grant item not found")

	// ErrEmployeeNotFound is returned when a referenced employee doesn't exist.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrEmploymentNotFound is returned when a referenced employment doesn't exist.
	ErrEmploymentNotFound = errors.New("employment not found")

	// ErrAllocationNotFound is returned when a referenced allocation doesn't exist.
	ErrAllocationNotFound = errors.New("funding allocation not found")

	// ErrProbationRecordNotFound is returned when an employment has no active
	// probation record and one is required for the operation.
	ErrProbationRecordNotFound = errors.New("active probation record not found")

	// ErrDuplicateCode is returned when a grant code or staff code collides
	// with an existing row.
	ErrDuplicateCode = errors.New("duplicate code")

	// ErrInsufficientCapacity is the sentinel behind CapacityError.
	ErrInsufficientCapacity = errors.New("insufficient grant position capacity")

	// ErrActiveAllocationSet is the sentinel behind ActiveSetError.
	ErrActiveAllocationSet = errors.New("employment already has an active allocation set")

	// ErrInvalidTransition is returned for a probation event that the state
	// machine does not allow from the current active record.
	ErrInvalidTransition = errors.New("invalid probation transition")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError is a single field-level rule violation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates every rule violation found in one request so
// the caller can fix them all in a single resubmit.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("%d validation errors (first: %s)", len(e), e[0].Error())
}

// CapacityError reports that accepting an allocation would exceed a grant
// item's position slots. Remaining is how many slots are still open.
type CapacityError struct {
	GrantItemID GrantItemID
	Position    string
	Capacity    int
	Active      int
	Requested   int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("grant item %s (%s) has %d of %d position slots filled; cannot add %d more",
		e.GrantItemID, e.Position, e.Active, e.Capacity, e.Requested)
}

func (e *CapacityError) Unwrap() error { return ErrInsufficientCapacity }

// Remaining returns the number of open slots.
func (e *CapacityError) Remaining() int {
	if e.Capacity < e.Active {
		return 0
	}
	return e.Capacity - e.Active
}

// ActiveSetError reports an attempt to create a fresh allocation set for an
// employment that already has an active one. The caller must use the replace
// operation instead, so conflicting sets can never stack silently.
type ActiveSetError struct {
	EmploymentID EmploymentID
	ActiveRows   int
}

func (e *ActiveSetError) Error() string {
	return fmt.Sprintf("employment %s already has %d active allocation rows; use replace instead of create",
		e.EmploymentID, e.ActiveRows)
}

func (e *ActiveSetError) Unwrap() error { return ErrActiveAllocationSet }

// TransitionError reports a probation event the state machine rejects.
type TransitionError struct {
	EmploymentID EmploymentID
	From         ProbationEvent
	To           ProbationEvent
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("employment %s: cannot transition probation from %q to %q",
		e.EmploymentID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrGrantNotFound) ||
		errors.Is(err, ErrGrantItemNotFound) ||
		errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrEmploymentNotFound) ||
		errors.Is(err, ErrAllocationNotFound) ||
		errors.Is(err, ErrProbationRecordNotFound)
}

// IsClientError returns true if the error is the caller's to fix: the
// request should be corrected and resubmitted, never retried as-is.
func IsClientError(err error) bool {
	var vErrs ValidationErrors
	var vErr *ValidationError
	return errors.As(err, &vErrs) ||
		errors.As(err, &vErr) ||
		errors.Is(err, ErrInsufficientCapacity) ||
		errors.Is(err, ErrActiveAllocationSet) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrDuplicateCode)
}
