package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/okian/stride/internal/domain/announce"
	"github.com/okian/stride/pkg/logger"
)

// EventDependencies defines the interface for session event delivery.
type EventDependencies interface {
	Events(ctx context.Context) []announce.Event
	Subscribe(conn *websocket.Conn) error
}

// EventsHandler serves event history and the live event stream.
type EventsHandler struct {
	deps     EventDependencies
	upgrader websocket.Upgrader
	log      logger.Logger
}

// NewEventsHandler creates a new events handler. An empty origins list
// keeps the websocket same-host origin check.
func NewEventsHandler(deps EventDependencies, l logger.Logger, origins ...string) *EventsHandler {
	h := &EventsHandler{deps: deps, log: l}
	if len(origins) > 0 {
		h.upgrader.CheckOrigin = originChecker(origins)
	}
	return h
}

func originChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = true
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowed["*"] || allowed[origin] {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// HandleGetEvents handles GET /events requests.
func (h *EventsHandler) HandleGetEvents(w http.ResponseWriter, r *http.Request) {
	events := h.deps.Events(r.Context())
	if events == nil {
		events = []announce.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// HandleStream handles GET /events/ws by upgrading to a websocket that
// receives every subsequent event as a JSON text message.
func (h *EventsHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.log.Debug(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	if err := h.deps.Subscribe(conn); err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
		_ = conn.Close()
		return
	}
	h.log.Debug(r.Context(), "websocket client connected", logger.String("remote", r.RemoteAddr))
}
