package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"inventario/internal/adapters/reports"
	"inventario/pkg/domain"
)

// Response is the JSON envelope of every endpoint.
type Response struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Body    any    `json:"body,omitempty"`
}

// FieldError is one rejected request field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule,omitempty"`
}

func success(c echo.Context, code int, message string, body any) error {
	return c.JSON(code, Response{Status: true, Message: message, Body: body})
}

// apiError is a failure already resolved to a status code and envelope body.
type apiError struct {
	code    int
	message string
	body    any
}

func (e apiError) Error() string { return e.message }

func badRequest(format string, args ...any) error {
	return apiError{code: http.StatusBadRequest, message: fmt.Sprintf(format, args...)}
}

// classify maps an error onto its HTTP status, message and body.
func classify(err error) apiError {
	var (
		resolved     apiError
		fields       validator.ValidationErrors
		validation   domain.ValidationError
		notFound     domain.NotFoundError
		integrity    domain.IntegrityError
		confirmation domain.ConfirmationRequiredError
		violation    domain.RuleViolationError
		transport    domain.TransportError
		echoErr      *echo.HTTPError
	)
	switch {
	case errors.As(err, &resolved):
		return resolved
	case errors.As(err, &fields):
		out := make([]FieldError, 0, len(fields))
		names := make([]string, 0, len(fields))
		for _, fe := range fields {
			out = append(out, FieldError{Field: fe.Field(), Rule: fe.Tag()})
			names = append(names, fe.Field())
		}
		return apiError{code: http.StatusBadRequest, message: "invalid fields: " + strings.Join(names, ", "), body: out}
	case errors.As(err, &validation):
		return apiError{code: http.StatusBadRequest, message: validation.Error(), body: FieldError{Field: validation.Field}}
	case errors.As(err, &notFound):
		return apiError{code: http.StatusNotFound, message: notFound.Error()}
	case errors.As(err, &integrity):
		return apiError{code: http.StatusConflict, message: integrity.Error(), body: map[string]any{"location": integrity.Location, "count": integrity.Count}}
	case errors.As(err, &confirmation):
		return apiError{code: http.StatusPreconditionRequired, message: confirmation.Error(), body: map[string]any{"reason": confirmation.Reason, "items": confirmation.Items}}
	case errors.Is(err, domain.ErrDuplicateSubmission):
		return apiError{code: http.StatusConflict, message: err.Error()}
	case errors.As(err, &violation):
		return apiError{code: http.StatusUnprocessableEntity, message: violation.Error(), body: violation.Result.Violations}
	case errors.As(err, &transport):
		return apiError{code: http.StatusServiceUnavailable, message: "storage unavailable"}
	case errors.Is(err, reports.ErrQueueFull):
		return apiError{code: http.StatusServiceUnavailable, message: err.Error()}
	case errors.As(err, &echoErr):
		return apiError{code: echoErr.Code, message: fmt.Sprint(echoErr.Message)}
	default:
		return apiError{code: http.StatusInternalServerError, message: "internal server error"}
	}
}

// errorHandler renders every handler error through the envelope.
func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		resolved := classify(err)
		if resolved.code >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", resolved.code),
				zap.Error(err),
			)
		}
		body := Response{Status: false, Message: resolved.message, Body: resolved.body}
		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(resolved.code)
		} else {
			writeErr = c.JSON(resolved.code, body)
		}
		if writeErr != nil {
			logger.Warn("write error response", zap.Error(writeErr))
		}
	}
}
