package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fitdesk/fitdesk/internal/authorization"
	commissiondomain "github.com/fitdesk/fitdesk/internal/commission/domain"
	"github.com/fitdesk/fitdesk/internal/observability/logger"
	paymentdomain "github.com/fitdesk/fitdesk/internal/payment/domain"
	sessiondomain "github.com/fitdesk/fitdesk/internal/session/domain"
	packagedomain "github.com/fitdesk/fitdesk/internal/trainingpackage/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *apiError) Error() string { return e.Code }

var (
	ErrUnauthorized       = &apiError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "authentication required"}
	ErrForbidden          = &apiError{Status: http.StatusForbidden, Code: "forbidden", Message: "insufficient permissions"}
	ErrNotFound           = &apiError{Status: http.StatusNotFound, Code: "not_found", Message: "resource not found"}
	ErrTooManyRequests    = &apiError{Status: http.StatusTooManyRequests, Code: "rate_limited", Message: "too many requests"}
	ErrServiceUnavailable = &apiError{Status: http.StatusServiceUnavailable, Code: "service_unavailable", Message: "service unavailable"}
)

func newValidationError(field, code, message string) *apiError {
	return &apiError{
		Status:  http.StatusBadRequest,
		Code:    code,
		Field:   field,
		Message: message,
	}
}

func invalidRequestError() *apiError {
	return &apiError{
		Status:  http.StatusBadRequest,
		Code:    "invalid_request",
		Message: "request body could not be parsed",
	}
}

// AbortWithError resolves any error into the JSON error envelope and stops
// the handler chain. Server faults are logged with request context.
func AbortWithError(c *gin.Context, err error) {
	resolved := resolveError(err)
	if resolved.Status >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(resolved.Status, gin.H{"error": resolved})
}

func resolveError(err error) *apiError {
	var api *apiError
	if errors.As(err, &api) {
		return api
	}

	// The lock rejection carries both counts in its message.
	var locked *paymentdomain.LockedSessionsError
	if errors.As(err, &locked) {
		return &apiError{
			Status:  http.StatusConflict,
			Code:    "would_lock_used_sessions",
			Message: locked.Error(),
		}
	}

	switch {
	case errors.Is(err, paymentdomain.ErrBalanceExceeded),
		errors.Is(err, sessiondomain.ErrNoSessionsUnlocked),
		errors.Is(err, sessiondomain.ErrAlreadyCancelled):
		return &apiError{Status: http.StatusConflict, Code: err.Error(), Message: err.Error()}

	case errors.Is(err, packagedomain.ErrNotFound),
		errors.Is(err, paymentdomain.ErrPackageNotFound),
		errors.Is(err, paymentdomain.ErrPaymentNotFound),
		errors.Is(err, sessiondomain.ErrNotFound),
		errors.Is(err, commissiondomain.ErrConfigNotFound):
		return &apiError{Status: http.StatusNotFound, Code: err.Error(), Message: err.Error()}

	case errors.Is(err, paymentdomain.ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return ErrForbidden
	}

	if isPackageValidationError(err) ||
		isPaymentValidationError(err) ||
		isSessionValidationError(err) ||
		isCommissionValidationError(err) {
		return &apiError{Status: http.StatusBadRequest, Code: err.Error(), Message: err.Error()}
	}

	return &apiError{
		Status:  http.StatusInternalServerError,
		Code:    "internal_error",
		Message: "internal server error",
	}
}

// parseOptionalTime accepts RFC3339 timestamps or plain dates; plain dates
// resolve to end of day when used as a range upper bound.
func parseOptionalTime(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if value, err := time.Parse(time.RFC3339, raw); err == nil {
		utc := value.UTC()
		return &utc, nil
	}
	value, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		value = value.Add(24*time.Hour - time.Nanosecond)
	}
	utc := value.UTC()
	return &utc, nil
}
