package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"safemap/internal/scoring"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Instance  string `json:"instance,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:      "about:blank",
		Title:     title,
		Status:    status,
		Detail:    detail,
		Instance:  instance,
		RequestID: w.Header().Get("X-Request-Id"),
	})
}

// writeError maps engine errors to problems. Store and internal failures
// are logged with detail and returned without it.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, scoring.ErrInvalidInput):
		writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error(), r.URL.Path)
	case errors.Is(err, context.Canceled):
		// client went away; nothing useful to send
		w.WriteHeader(499)
	case errors.Is(err, scoring.ErrStoreUnavailable):
		s.Log.Error("store unavailable", "path", r.URL.Path, "request_id", requestIDFrom(r.Context()), "err", err)
		writeProblem(w, http.StatusServiceUnavailable, "Service Unavailable", "", r.URL.Path)
	case errors.Is(err, context.DeadlineExceeded):
		s.Log.Error("request timed out", "path", r.URL.Path, "request_id", requestIDFrom(r.Context()), "err", err)
		writeProblem(w, http.StatusGatewayTimeout, "Timeout", "", r.URL.Path)
	default:
		s.Log.Error("internal error", "path", r.URL.Path, "request_id", requestIDFrom(r.Context()), "err", err)
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "", r.URL.Path)
	}
}
