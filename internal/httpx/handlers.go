package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/you/go-flight-calendar/internal/service"
)

// Calendarer builds calendar reports.
type Calendarer interface {
	Build(ctx context.Context, c service.SearchCriteria, opts service.Options) (service.CalendarReport, error)
}

type CalendarHandler struct {
	log      *zap.Logger
	svc      Calendarer
	defaults service.Defaults
	partial  bool
	now      func() time.Time
}

func NewCalendarHandler(log *zap.Logger, svc Calendarer, defaults service.Defaults, partial bool) *CalendarHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CalendarHandler{
		log:      log,
		svc:      svc,
		defaults: defaults,
		partial:  partial,
		now:      time.Now,
	}
}

// dayEntry is one element of the calendar JSON array. Status and Error are
// filled in partial mode and on streamed days.
type dayEntry struct {
	Date   string   `json:"date"`
	Price  *float64 `json:"price"`
	Status string   `json:"status,omitempty"`
	Error  string   `json:"error,omitempty"`
}

func toEntry(d service.DayResult, partial bool) dayEntry {
	e := dayEntry{Date: d.Date.Format(service.DateLayout), Price: d.Price}
	if partial {
		e.Status = d.Status.String()
		if d.Err != nil {
			e.Error = d.Err.Error()
		}
	}
	return e
}

// streamEntry is the per-day stream payload. It always carries the status
// so a failed day is not mistaken for an unavailable one.
func streamEntry(d service.DayResult) dayEntry {
	return toEntry(d, true)
}

func toEntries(report service.CalendarReport, partial bool) []dayEntry {
	out := make([]dayEntry, 0, len(report.Days))
	for _, d := range report.Days {
		out = append(out, toEntry(d, partial))
	}
	return out
}

// parseRequest reads the calendar query parameters shared by every
// calendar route.
func (h *CalendarHandler) parseRequest(r *http.Request) (service.SearchCriteria, bool, error) {
	q := r.URL.Query()
	c, err := service.BuildCriteria(service.CriteriaInput{
		From:     q.Get("from"),
		To:       q.Get("to"),
		Month:    q.Get("month"),
		Currency: q.Get("currency"),
		Market:   q.Get("gl"),
	}, h.defaults, h.now())
	if err != nil {
		return service.SearchCriteria{}, false, err
	}

	partial := h.partial
	if raw := strings.TrimSpace(q.Get("partial")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return service.SearchCriteria{}, false, fmt.Errorf("%w: partial must be a boolean", service.ErrInvalidCriteria)
		}
		partial = v
	}
	return c, partial, nil
}

func (h *CalendarHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	c, partial, err := h.parseRequest(r)
	if err != nil {
		writeError(w, r, statusFor(err), err.Error())
		return
	}

	report, err := h.svc.Build(r.Context(), c, service.Options{Partial: partial})
	if err != nil {
		h.log.Warn("calendar request failed",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.Error(err),
		)
		writeError(w, r, statusFor(err), err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, toEntries(report, partial))
}

type multiCityLeg struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type multiCityRequest struct {
	Mode  string         `json:"mode"`
	Legs  []multiCityLeg `json:"legs"`
	Stays []int          `json:"stays"`
	Month string         `json:"month"`
}

// MultiCityCalendar accepts the multi-city form payload and always answers
// with an empty calendar.
func (h *CalendarHandler) MultiCityCalendar(w http.ResponseWriter, r *http.Request) {
	var req multiCityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("multicity payload not decoded", zap.Error(err))
	}
	h.log.Info("multicity calendar requested",
		zap.String("request_id", RequestIDFrom(r.Context())),
		zap.String("mode", req.Mode),
		zap.Int("legs", len(req.Legs)),
		zap.String("month", req.Month),
	)
	writeJSON(w, r, http.StatusOK, []dayEntry{})
}

type streamMessage struct {
	Type  string     `json:"type"`
	Day   *dayEntry  `json:"day,omitempty"`
	Days  []dayEntry `json:"days,omitempty"`
	Error string     `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// CalendarWS streams each day over a websocket as soon as it is priced,
// followed by the ordered report.
func (h *CalendarHandler) CalendarWS(w http.ResponseWriter, r *http.Request) {
	c, partial, err := h.parseRequest(r)
	if err != nil {
		writeError(w, r, statusFor(err), err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		// the client only ever closes; any read error ends the stream
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	var mu sync.Mutex
	send := func(msg streamMessage) error {
		mu.Lock()
		defer mu.Unlock()
		return conn.WriteJSON(msg)
	}

	report, err := h.svc.Build(ctx, c, service.Options{
		Partial: partial,
		OnResult: func(d service.DayResult) {
			e := streamEntry(d)
			if err := send(streamMessage{Type: "day", Day: &e}); err != nil {
				cancel()
			}
		},
	})
	if err != nil {
		_ = send(streamMessage{Type: "error", Error: err.Error()})
		return
	}
	if err := send(streamMessage{Type: "report", Days: toEntries(report, partial)}); err != nil {
		h.log.Warn("websocket write failed", zap.Error(err))
		return
	}
	mu.Lock()
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
	mu.Unlock()
}

// CalendarSSE is the Server-Sent Events variant of CalendarWS.
func (h *CalendarHandler) CalendarSSE(w http.ResponseWriter, r *http.Request) {
	c, partial, err := h.parseRequest(r)
	if err != nil {
		writeError(w, r, statusFor(err), err.Error())
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var mu sync.Mutex
	emit := func(event string, v interface{}) {
		payload, _ := json.Marshal(v)
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
		flusher.Flush()
	}

	report, err := h.svc.Build(r.Context(), c, service.Options{
		Partial: partial,
		OnResult: func(d service.DayResult) {
			emit("day", streamEntry(d))
		},
	})
	if err != nil {
		emit("error", map[string]string{"error": err.Error()})
		return
	}
	emit("report", toEntries(report, partial))
}

func Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
