package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// NewRouter serves the calendar routes at the root and again under /api,
// the prefix the search form calls.
func NewRouter(log *zap.Logger, h *CalendarHandler, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(AccessLog(log))
	r.Use(Recoverer(log))

	r.Get("/healthz", Health)
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	routes := func(r chi.Router) {
		r.Get("/calendar", h.Calendar)
		r.Post("/multicity-calendar", h.MultiCityCalendar)
		r.Get("/ws/calendar", h.CalendarWS)
		r.Get("/sse/calendar", h.CalendarSSE)
	}
	routes(r)
	r.Route("/api", routes)
	return r
}
