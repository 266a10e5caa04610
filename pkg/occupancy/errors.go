package occupancy

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"studyspace/pkg/models"
)

var (
	// ErrNotFound is returned when a referenced subscription, resource or branch does not exist.
	ErrNotFound = errors.New("occupancy: not found")
	// ErrUnauthorized is returned when the principal's scope does not include the target.
	ErrUnauthorized = errors.New("occupancy: unauthorized")
	// ErrInvalidInterval is returned when an interval ends before it starts.
	ErrInvalidInterval = errors.New("occupancy: end date is before start date")
	// ErrResourceInactive is returned when assigning a disabled seat or locker.
	ErrResourceInactive = errors.New("occupancy: resource is inactive")
	// ErrInvalidTransition is returned for a status change the subscription cannot make.
	ErrInvalidTransition = errors.New("occupancy: invalid status transition")
	// ErrLocked is returned when another request is assigning the same resource.
	ErrLocked = errors.New("occupancy: resource is being assigned by another request")
)

const exclusionViolation = "23P01"

// ConflictError reports that a resource is held by another subscription over
// an overlapping window.
type ConflictError struct {
	Kind       models.ResourceKind
	ConflictID string
}

func (e *ConflictError) Error() string {
	return e.Kind.Label() + " is already occupied"
}

// ValidationError captures field level issues callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for f := range v.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v.FieldErrors[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// ErrorKind maps errors to a stable logging and metrics label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var conflict *ConflictError
	var vErr *ValidationError
	switch {
	case errors.As(err, &conflict):
		return "conflict"
	case errors.As(err, &vErr):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidInterval):
		return "invalid_interval"
	case errors.Is(err, ErrResourceInactive):
		return "resource_inactive"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrLocked):
		return "locked"
	}
	return "unexpected"
}

// mapStoreError translates persistence errors into the package's taxonomy.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
		kind := models.KindSeat
		if strings.Contains(pgErr.ConstraintName, "locker") {
			kind = models.KindLocker
		}
		return &ConflictError{Kind: kind}
	}
	return err
}

// Result is the discriminated outcome returned across the service boundary.
type Result struct {
	Success    bool              `json:"success"`
	Data       interface{}       `json:"data,omitempty"`
	Error      string            `json:"error,omitempty"`
	ConflictID string            `json:"conflictId,omitempty"`
	Errors     map[string]string `json:"errors,omitempty"`
}

// NewResult builds a Result from an operation's return values. Errors outside the
// taxonomy are reported as a generic failure so no internal detail leaks.
func NewResult(data interface{}, err error) Result {
	if err == nil {
		return Result{Success: true, Data: data}
	}
	res := Result{Success: false, Error: PublicMessage(err)}
	var conflict *ConflictError
	var vErr *ValidationError
	switch {
	case errors.As(err, &conflict):
		res.ConflictID = conflict.ConflictID
	case errors.As(err, &vErr):
		res.Errors = vErr.FieldErrors
	}
	return res
}

// PublicMessage is the caller-safe message for err.
func PublicMessage(err error) string {
	var conflict *ConflictError
	var vErr *ValidationError
	switch {
	case errors.As(err, &conflict):
		return conflict.Error()
	case errors.As(err, &vErr):
		return vErr.Error()
	case errors.Is(err, ErrNotFound):
		return "not found"
	case errors.Is(err, ErrUnauthorized):
		return "not allowed for this library or branch"
	case errors.Is(err, ErrInvalidInterval):
		return "end date must not be before start date"
	case errors.Is(err, ErrResourceInactive):
		return "resource is inactive"
	case errors.Is(err, ErrInvalidTransition):
		return "subscription cannot change to the requested status"
	case errors.Is(err, ErrLocked):
		return "resource is being assigned by another request, try again"
	}
	return "internal error"
}

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, ErrNotFound)
}
