package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"go.ngs.io/postcodes-api/internal/domain"
)

// APIError is the JSON body of every error response.
type APIError struct {
	Timestamp        time.Time         `json:"timestamp"`
	Status           int               `json:"status"`
	Error            string            `json:"error"`
	Message          string            `json:"message"`
	Path             string            `json:"path"`
	RequestID        string            `json:"requestId,omitempty"`
	ValidationErrors []ValidationError `json:"validationErrors,omitempty"`
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Field         string `json:"field"`
	Message       string `json:"message"`
	RejectedValue any    `json:"rejectedValue"`
}

// bindError marks a request body that could not be decoded.
type bindError struct {
	err error
}

func (e *bindError) Error() string { return e.err.Error() }
func (e *bindError) Unwrap() error { return e.err }

// wrapBindError marks decode failures; validator errors pass through unchanged.
func wrapBindError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return err
	}
	return &bindError{err: err}
}

func abortWithError(c *gin.Context, status int, errText, message string) {
	c.AbortWithStatusJSON(status, APIError{
		Timestamp: time.Now().UTC(),
		Status:    status,
		Error:     errText,
		Message:   message,
		Path:      c.Request.URL.Path,
		RequestID: requestID(c),
	})
}

// writeError maps err to a status code and writes the error body.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	var (
		validationErrs validator.ValidationErrors
		bindErr        *bindError
	)

	switch {
	case errors.As(err, &validationErrs):
		body := APIError{
			Timestamp: time.Now().UTC(),
			Status:    http.StatusBadRequest,
			Error:     "Validation Error",
			Message:   "Request validation failed",
			Path:      c.Request.URL.Path,
			RequestID: requestID(c),
		}
		for _, fe := range validationErrs {
			body.ValidationErrors = append(body.ValidationErrors, ValidationError{
				Field:         fe.Field(),
				Message:       validationMessage(fe),
				RejectedValue: fe.Value(),
			})
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, body)
	case errors.As(err, &bindErr):
		abortWithError(c, http.StatusBadRequest, "Bad Request", fmt.Sprintf("Malformed request: %v", bindErr.err))
	case errors.Is(err, domain.ErrNotFound):
		abortWithError(c, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrInvalidArgument):
		abortWithError(c, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		logger.Error("request timed out", "path", c.Request.URL.Path, "request_id", requestID(c), "err", err)
		abortWithError(c, http.StatusInternalServerError, "Internal Server Error", "Request timed out")
	default:
		logger.Error("request failed", "path", c.Request.URL.Path, "request_id", requestID(c), "err", err)
		abortWithError(c, http.StatusInternalServerError, "Internal Server Error", "Internal server error")
	}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "ukpostcode":
		return fmt.Sprintf("Invalid UK postcode format for %s", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
