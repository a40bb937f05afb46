// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/danielhkuo/fable/cliparse"
	"github.com/danielhkuo/fable/engine"
	"github.com/danielhkuo/fable/middleware"
	"github.com/danielhkuo/fable/models"
)

type HistoryHandler struct {
	engine *engine.Engine
	cfg    cliparse.Config
}

func NewHistoryHandler(eng *engine.Engine, cfg cliparse.Config) *HistoryHandler {
	return &HistoryHandler{engine: eng, cfg: cfg}
}

// GetHistory handles GET /servers/{id}/history
func (h *HistoryHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	serverID, ok := authServer(w, r, h.cfg.GatewaySalt)
	if !ok {
		return
	}

	books, err := h.engine.ListCompleted(r.Context(), serverID)
	if err != nil {
		slog.Error("failed to list history", "server_id", serverID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, books)
}

// GetStats handles GET /servers/{id}/stats
func (h *HistoryHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	serverID, ok := authServer(w, r, h.cfg.GatewaySalt)
	if !ok {
		return
	}

	stats, err := h.engine.Stats(r.Context(), serverID)
	if err != nil {
		slog.Error("failed to query stats", "server_id", serverID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, stats)
}

// PutRating handles PUT /servers/{id}/ratings/{completed}
// The manual rating path, for members who missed the poll.
func (h *HistoryHandler) PutRating(w http.ResponseWriter, r *http.Request) {
	_, ok := authServer(w, r, h.cfg.GatewaySalt)
	if !ok {
		return
	}
	completedID := r.PathValue("completed")
	if completedID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "completed id is required")
		return
	}

	var req models.PutRatingRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Rating < models.RatingMin || req.Rating > models.RatingMax {
		middleware.ErrorResponse(w, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}
	if req.UserID == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "user_id is required")
		return
	}

	status, err := h.engine.UpsertRating(r.Context(), req.UserID, completedID, req.Rating)
	if err != nil {
		slog.Error("failed to upsert rating", "completed_id", completedID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if status != engine.StatusOK {
		statusError(w, status)
		return
	}

	book, _, err := h.engine.CompletedBook(r.Context(), completedID)
	if err != nil {
		slog.Error("failed to query completed book", "completed_id", completedID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, book)
}

// DeleteRating handles DELETE /servers/{id}/ratings/{completed}?user_id=N
func (h *HistoryHandler) DeleteRating(w http.ResponseWriter, r *http.Request) {
	_, ok := authServer(w, r, h.cfg.GatewaySalt)
	if !ok {
		return
	}
	completedID := r.PathValue("completed")
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "user_id is required")
		return
	}

	status, err := h.engine.RemoveRating(r.Context(), userID, completedID)
	if err != nil {
		slog.Error("failed to remove rating", "completed_id", completedID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if status != engine.StatusOK {
		statusError(w, status)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
