package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotReady          = errors.New("not ready")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrExternal          = errors.New("external service error")
	ErrTransient         = errors.New("transient failure")
)

// Wrap builds an error message that includes operation context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// HTTPStatus maps a classified error to the response status the web layer
// should return.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, ErrExternal):
		return http.StatusBadGateway
	case errors.Is(err, ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a failed background task should be attempted again.
// Validation and lookup failures will not improve on retry.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidTransition):
		return false
	default:
		return true
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
