package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/studiokit/kassza/internal/audit/domain"
	catalogdomain "github.com/studiokit/kassza/internal/catalog/domain"
	memberdomain "github.com/studiokit/kassza/internal/member/domain"
	passdomain "github.com/studiokit/kassza/internal/pass/domain"
	pricingdomain "github.com/studiokit/kassza/internal/pricing/domain"
	settlementdomain "github.com/studiokit/kassza/internal/settlement/domain"
	"github.com/studiokit/kassza/internal/settlement/guard"
	trainerdomain "github.com/studiokit/kassza/internal/trainer/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, pricingdomain.ErrMissingPricing):
		// The structured detail names the member, occurrence and instant
		// so the operator can see which rule is missing.
		return http.StatusNotFound, errorPayload{
			Type:    "missing_pricing",
			Message: err.Error(),
		}
	case errors.Is(err, passdomain.ErrPolicyViolation):
		return http.StatusConflict, errorPayload{
			Type:    "policy_violation",
			Message: err.Error(),
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictErrorMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	case errors.Is(err, ErrInternal):
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger; it mirrors mapError
// without building the response payload.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	if vErr := asValidationErrors(err); vErr != nil {
		if len(vErr.Errors) > 0 {
			return "validation_error", vErr.Errors[0].Code
		}
		return "validation_error", "invalid_request"
	}
	if isValidationError(err) {
		return "validation_error", validationErrorCode(err)
	}
	switch {
	case errors.Is(err, pricingdomain.ErrMissingPricing):
		return "missing_pricing", "missing_pricing"
	case errors.Is(err, passdomain.ErrPolicyViolation):
		return "policy_violation", "policy_violation"
	case isConflictError(err):
		return "conflict", conflictErrorMessage(err)
	case isNotFoundError(err):
		return "not_found", "not_found"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited", "rate_limited"
	case errors.Is(err, ErrServiceUnavailable):
		return "service_unavailable", "service_unavailable"
	default:
		return "internal_error", "internal_error"
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isMemberValidationError(err),
		isTrainerValidationError(err),
		isCatalogValidationError(err),
		isPricingValidationError(err),
		isPassValidationError(err),
		isSettlementValidationError(err),
		isAuditValidationError(err):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, memberdomain.ErrDuplicateEmail),
		errors.Is(err, trainerdomain.ErrDuplicateEmail),
		errors.Is(err, catalogdomain.ErrDuplicateCode),
		errors.Is(err, catalogdomain.ErrAlreadyRegistered),
		errors.Is(err, catalogdomain.ErrOccurrenceFull),
		errors.Is(err, catalogdomain.ErrOccurrenceCancelled),
		errors.Is(err, catalogdomain.ErrRegistrationFinal),
		errors.Is(err, catalogdomain.ErrTemplateInactive),
		errors.Is(err, settlementdomain.ErrCurrencyMismatch),
		errors.Is(err, guard.ErrSettlementNotDraft),
		errors.Is(err, guard.ErrSettlementNotFinalized):
		return true
	default:
		return false
	}
}

// conflictErrorMessage keeps the sentinel code in the payload so clients
// can tell "class full" apart from "already registered".
func conflictErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return err.Error()
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, memberdomain.ErrNotFound),
		errors.Is(err, trainerdomain.ErrNotFound),
		errors.Is(err, catalogdomain.ErrNotFound),
		errors.Is(err, catalogdomain.ErrServiceTypeNotFound),
		errors.Is(err, catalogdomain.ErrTemplateNotFound),
		errors.Is(err, catalogdomain.ErrOccurrenceNotFound),
		errors.Is(err, pricingdomain.ErrNotFound),
		errors.Is(err, passdomain.ErrNotFound),
		errors.Is(err, settlementdomain.ErrNotFound),
		errors.Is(err, settlementdomain.ErrTrainerNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}
