// Package httpapi exposes the dialogue engine over a small JSON HTTP
// surface: one route to begin a session and one to continue it.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/deepnoodle-ai/dialogue"
)

// Response is the wire shape returned for every successful turn.
type Response struct {
	SessionID        string    `json:"session_id"`
	Reply            string    `json:"reply"`
	Timestamp        time.Time `json:"timestamp"`
	Stage            string    `json:"stage"`
	PromptTitle      string    `json:"prompt_title,omitempty"`
	SuggestedReplies []string  `json:"suggested_replies,omitempty"`
	ResponseCode     int       `json:"response_code"`
	ResponseKind     string    `json:"response_kind"`
}

type beginRequest struct {
	SessionID    string `json:"session_id,omitempty"`
	MemberID     string `json:"member_id"`
	GroupID      string `json:"group_id,omitempty"`
	SubscriberID string `json:"subscriber_id,omitempty"`
}

type messageRequest struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error        string `json:"error"`
	ResponseCode int    `json:"response_code"`
}

// HandlerOptions configures the HTTP handler.
type HandlerOptions struct {
	Engine *dialogue.Engine
	Logger *slog.Logger
}

// Handler serves the session routes. It is a plain http.Handler and can be
// mounted under any mux or middleware stack.
type Handler struct {
	engine *dialogue.Engine
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewHandler creates a handler bound to an engine.
func NewHandler(opts HandlerOptions) (*Handler, error) {
	if opts.Engine == nil {
		return nil, errors.New("engine required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &Handler{engine: opts.Engine, logger: opts.Logger}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions", h.beginSession)
	mux.HandleFunc("POST /v1/sessions/{id}/messages", h.continueSession)
	h.mux = mux
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) beginSession(w http.ResponseWriter, r *http.Request) {
	var req beginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	record := &dialogue.Record{
		MemberID:     req.MemberID,
		GroupID:      req.GroupID,
		SubscriberID: req.SubscriberID,
	}
	result, err := h.engine.Start(r.Context(), req.SessionID, record)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeResult(w, result)
}

func (h *Handler) continueSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.engine.Resume(r.Context(), sessionID, req.Message)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeResult(w, result)
}

// writeEngineError maps the engine's error taxonomy onto HTTP status codes.
// Anything unrecognized is an internal error and the detail stays in the log.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dialogue.ErrUnknownSession):
		writeError(w, http.StatusNotFound, "unknown session")
	case errors.Is(err, dialogue.ErrDuplicateSession):
		writeError(w, http.StatusConflict, "session already exists")
	case errors.Is(err, dialogue.ErrStaleResume):
		writeError(w, http.StatusConflict, "session has a turn in flight")
	case errors.Is(err, dialogue.ErrNotSuspended):
		writeError(w, http.StatusConflict, "session is not awaiting input")
	default:
		h.logger.Error("session turn failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeResult(w http.ResponseWriter, result *dialogue.RunResult) {
	resp := Response{
		SessionID:    result.SessionID,
		Timestamp:    time.Now().UTC(),
		Stage:        result.Stage,
		ResponseCode: http.StatusOK,
	}
	if result.Suspended() {
		resp.ResponseKind = "prompt"
		if result.Suspension != nil {
			resp.Reply = result.Suspension.Prompt
			resp.PromptTitle = result.Suspension.Title
			resp.SuggestedReplies = result.Suspension.SuggestedReplies
		}
	} else {
		resp.ResponseKind = "final"
		if result.Record != nil {
			resp.Reply = result.Record.Confirmation
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message, ResponseCode: status})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, "encoding failure", http.StatusInternalServerError)
		return
	}
	w.Write(data)
}
