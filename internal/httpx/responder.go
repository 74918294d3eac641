package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/you/go-flight-calendar/internal/providers"
	"github.com/you/go-flight-calendar/internal/service"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload interface{}) {
	render.Status(r, status)
	render.JSON(w, r, payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, map[string]string{"error": message})
}

// statusFor maps engine errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrMissingParameter),
		errors.Is(err, service.ErrInvalidMonth),
		errors.Is(err, service.ErrInvalidCriteria):
		return http.StatusBadRequest
	case errors.Is(err, providers.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
