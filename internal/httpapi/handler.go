// Package httpapi exposes the session engine over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kunalsaurav01/agentic-architect/internal/checkpoint"
	"github.com/kunalsaurav01/agentic-architect/pkg/api"
)

// Handler routes session requests to an engine. The checkpoint store is
// used read-only, for the history endpoint.
type Handler struct {
	engine api.Engine
	store  checkpoint.Store
	log    *slog.Logger
}

func NewHandler(engine api.Engine, store checkpoint.Store, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{engine: engine, store: store, log: log}
}

// Router builds the chi router for the service.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.startSession)
		r.Get("/", h.listSessions)
		r.Route("/{threadID}", func(r chi.Router) {
			r.Get("/", h.getSession)
			r.Delete("/", h.deleteSession)
			r.Post("/decision", h.submitDecision)
			r.Get("/history", h.history)
			r.Get("/versions", h.versions)
		})
	})

	return r
}

type startSessionRequest struct {
	UserIntent        string `json:"user_intent"`
	AdditionalContext string `json:"additional_context,omitempty"`
	ThreadID          string `json:"thread_id,omitempty"`
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserIntent == "" {
		h.writeError(w, http.StatusBadRequest, "user_intent is required")
		return
	}

	state, err := h.engine.Start(r.Context(), api.StartRequest{
		UserIntent:        req.UserIntent,
		AdditionalContext: req.AdditionalContext,
		ThreadID:          req.ThreadID,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, state)
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := api.SessionListOptions{
		Status:   api.ApprovalStatus(q.Get("status")),
		Page:     queryInt(q.Get("page")),
		PageSize: queryInt(q.Get("page_size")),
	}

	summaries, err := h.engine.ListSessions(r.Context(), opts)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if summaries == nil {
		summaries = []api.SessionSummary{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"sessions": summaries})
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	state, err := h.engine.GetState(r.Context(), chi.URLParam(r, "threadID"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteSession(r.Context(), chi.URLParam(r, "threadID")); err != nil {
		h.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type decisionRequest struct {
	Approved bool   `json:"approved"`
	Feedback string `json:"feedback,omitempty"`
	Edits    string `json:"edits,omitempty"`
}

func (h *Handler) submitDecision(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state, err := h.engine.SubmitDecision(r.Context(), chi.URLParam(r, "threadID"), api.Decision{
		Approved: req.Approved,
		Feedback: req.Feedback,
		Edits:    req.Edits,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}

type historyEntry struct {
	ID          string   `json:"checkpoint_id"`
	ParentID    string   `json:"parent_checkpoint_id,omitempty"`
	Source      string   `json:"source"`
	StepIndex   int      `json:"step_index"`
	PendingStep api.Step `json:"pending_step,omitempty"`
	CreatedAt   string   `json:"created_at"`
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	q := r.URL.Query()

	ckpts, err := h.store.List(r.Context(), threadID, checkpoint.ListOptions{
		Before: q.Get("before"),
		Limit:  queryInt(q.Get("limit")),
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	entries := make([]historyEntry, 0, len(ckpts))
	for _, c := range ckpts {
		entries = append(entries, historyEntry{
			ID:          c.ID,
			ParentID:    c.ParentID,
			Source:      c.Meta.Source,
			StepIndex:   c.Meta.StepIndex,
			PendingStep: c.Meta.PendingStep,
			CreatedAt:   c.CreatedAt.Format(time.RFC3339Nano),
		})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"thread_id":   threadID,
		"checkpoints": entries,
	})
}

func (h *Handler) versions(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	state, err := h.engine.GetState(r.Context(), threadID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	versions := state.DraftVersions
	if versions == nil {
		versions = []api.DraftVersion{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"thread_id": threadID,
		"versions":  versions,
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, api.ErrSessionNotFound), errors.Is(err, checkpoint.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, api.ErrSessionExists):
		h.writeError(w, http.StatusConflict, "session already exists")
	case errors.Is(err, api.ErrNoPendingReview):
		h.writeError(w, http.StatusConflict, "session is not awaiting human review")
	default:
		h.log.Error("request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("encode response", "error", err)
	}
}

func queryInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
