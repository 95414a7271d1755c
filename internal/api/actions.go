package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/robotlink/internal/actions"
)

// handleListActions returns queued actions plus per-status counts.
//
// Query parameters:
//   - status: "pending" or "done" (optional)
//   - limit: maximum entries (optional, clamped by the queue)
func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	status := actions.Status(r.URL.Query().Get("status"))
	switch status {
	case "", actions.StatusPending, actions.StatusDone:
	default:
		writeBadRequest(w, "status must be pending or done")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	list, err := s.actions.List(r.Context(), status, limit)
	if err != nil {
		s.logger.Error("listing actions failed", "error", err)
		writeInternalError(w, "failed to list actions")
		return
	}
	counts, err := s.actions.Counts(r.Context())
	if err != nil {
		s.logger.Error("counting actions failed", "error", err)
		writeInternalError(w, "failed to count actions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"actions": list,
		"count":   len(list),
		"totals":  counts,
	})
}

// handleGetAction returns a single action by ID.
func (s *Server) handleGetAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	a, err := s.actions.Get(r.Context(), id)
	if errors.Is(err, actions.ErrNotFound) {
		writeNotFound(w, "action not found")
		return
	}
	if err != nil {
		s.logger.Error("getting action failed", "action_id", id, "error", err)
		writeInternalError(w, "failed to get action")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleCompleteAction marks a pending action as done and returns it.
func (s *Server) handleCompleteAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := s.actions.Complete(r.Context(), id)
	switch {
	case errors.Is(err, actions.ErrNotFound):
		writeNotFound(w, "action not found")
		return
	case errors.Is(err, actions.ErrAlreadyCompleted):
		writeError(w, http.StatusConflict, ErrCodeConflict, "action already completed")
		return
	case err != nil:
		s.logger.Error("completing action failed", "action_id", id, "error", err)
		writeInternalError(w, "failed to complete action")
		return
	}

	s.logger.Info("action completed", "action_id", id)
	a, err := s.actions.Get(r.Context(), id)
	if err != nil {
		s.logger.Error("reloading completed action failed", "action_id", id, "error", err)
		writeInternalError(w, "failed to reload action")
		return
	}
	if s.hub != nil {
		s.hub.Broadcast(ChannelActionCompleted, a)
	}
	writeJSON(w, http.StatusOK, a)
}
