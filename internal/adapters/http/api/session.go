package api

import (
	"context"
	"net/http"

	service "github.com/okian/stride/internal/app"
)

// SessionDependencies defines the session control operations.
type SessionDependencies interface {
	Command(ctx context.Context, name string) (service.CommandResult, error)
	Session(ctx context.Context) (service.SessionView, error)
}

// SessionHandler handles session requests.
type SessionHandler struct {
	deps SessionDependencies
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps SessionDependencies) *SessionHandler {
	return &SessionHandler{deps: deps}
}

// HandleGetSession handles GET /session requests.
func (h *SessionHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.Session(r.Context())
	if err != nil {
		writeServiceError(w, "api.get_session", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleCommand handles POST /session/{command} requests.
func (h *SessionHandler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.Command(r.Context(), r.PathValue("command"))
	if err != nil {
		writeServiceError(w, "api.session_command", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
