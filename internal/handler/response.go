package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/innovators/mlms/mlms-backend/internal/domain"
	"github.com/labstack/echo/v4"
)

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error types
const (
	ErrorTypeValidation  = "https://mlms.app/errors/validation"
	ErrorTypeNotFound    = "https://mlms.app/errors/not-found"
	ErrorTypeConflict    = "https://mlms.app/errors/conflict"
	ErrorTypeInternal    = "https://mlms.app/errors/internal"
	ErrorTypeUnavailable = "https://mlms.app/errors/unavailable"
)

// NewValidationError creates a validation error response
func NewValidationError(c echo.Context, detail string, errors []ValidationError) error {
	return c.JSON(http.StatusBadRequest, ProblemDetails{
		Type:     ErrorTypeValidation,
		Title:    "Validation Error",
		Status:   http.StatusBadRequest,
		Detail:   detail,
		Instance: c.Request().URL.Path,
		Errors:   errors,
	})
}

// NewNotFoundError creates a not found error response
func NewNotFoundError(c echo.Context, detail string) error {
	return c.JSON(http.StatusNotFound, ProblemDetails{
		Type:     ErrorTypeNotFound,
		Title:    "Not Found",
		Status:   http.StatusNotFound,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// NewConflictError creates a conflict error response
func NewConflictError(c echo.Context, detail string) error {
	return c.JSON(http.StatusConflict, ProblemDetails{
		Type:     ErrorTypeConflict,
		Title:    "Conflict",
		Status:   http.StatusConflict,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// NewInternalError creates an internal error response
func NewInternalError(c echo.Context, detail string) error {
	return c.JSON(http.StatusInternalServerError, ProblemDetails{
		Type:     ErrorTypeInternal,
		Title:    "Internal Server Error",
		Status:   http.StatusInternalServerError,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// NewServiceUnavailableError creates a service unavailable error response
func NewServiceUnavailableError(c echo.Context, detail string) error {
	return c.JSON(http.StatusServiceUnavailable, ProblemDetails{
		Type:     ErrorTypeUnavailable,
		Title:    "Service Unavailable",
		Status:   http.StatusServiceUnavailable,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// fieldErrors maps domain validation errors to the form field they concern
var fieldErrors = []struct {
	err   error
	field string
}{
	{domain.ErrClientNameEmpty, "name"},
	{domain.ErrClientNameTooLong, "name"},
	{domain.ErrClientHistoryNegative, "previousLoans"},
	{domain.ErrLoanClientRequired, "clientId"},
	{domain.ErrInvalidClientID, "clientId"},
	{domain.ErrInvalidLoanStatus, "status"},
	{domain.ErrInvalidAccount, "account"},
	{domain.ErrLoanTypeTooLong, "loanType"},
	{domain.ErrLoanScheduleEmpty, "terms"},
	{domain.ErrTooManyFees, "fees"},
	{domain.ErrPrincipalInvalid, "amount"},
	{domain.ErrInvalidAmount, "amount"},
	{domain.ErrDurationInvalid, "duration"},
	{domain.ErrInvalidDuration, "duration"},
	{domain.ErrInvalidDurationUnit, "durationPeriod"},
	{domain.ErrInterestRateNegative, "interestRate"},
	{domain.ErrInvalidInterestMethod, "interestMethod"},
	{domain.ErrInvalidInterestCycle, "interestCycle"},
	{domain.ErrInvalidRepaymentCycle, "repaymentCycle"},
	{domain.ErrStartDateRequired, "releaseDate"},
	{domain.ErrInvalidReleaseDate, "releaseDate"},
	{domain.ErrFeeNameEmpty, "name"},
	{domain.ErrFeeNameTooLong, "name"},
	{domain.ErrFeeValueNegative, "value"},
	{domain.ErrInvalidFeeKind, "type"},
	{domain.ErrInvalidView, "view"},
	{domain.ErrUnknownField, "field"},
}

// validationField returns the field a validation error belongs to, or false
// when err is not a known validation error
func validationField(err error) (string, bool) {
	for _, fe := range fieldErrors {
		if errors.Is(err, fe.err) {
			return fe.field, true
		}
	}
	return "", false
}

// newDomainValidationError renders a known validation error, reporting whether it was one
func newDomainValidationError(c echo.Context, err error) (bool, error) {
	field, ok := validationField(err)
	if !ok {
		return false, nil
	}
	return true, NewValidationError(c, "Validation failed", []ValidationError{
		{Field: field, Message: err.Error()},
	})
}

// parseIDParam reads a positive int32 path parameter
func parseIDParam(c echo.Context, name string) (int32, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 32)
	if err != nil || id <= 0 {
		return 0, false
	}
	return int32(id), true
}

// NewInvalidIDError creates the validation error for a malformed path ID
func NewInvalidIDError(c echo.Context, name string) error {
	return NewValidationError(c, "Invalid ID", []ValidationError{
		{Field: name, Message: "Must be a positive integer"},
	})
}
