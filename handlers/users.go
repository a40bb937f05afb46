// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/danielhkuo/fable/cliparse"
	"github.com/danielhkuo/fable/engine"
	"github.com/danielhkuo/fable/middleware"
	"github.com/danielhkuo/fable/models"
	"github.com/danielhkuo/fable/tracking"
)

type UserHandler struct {
	tracker *tracking.Tracker
	cfg     cliparse.Config
}

func NewUserHandler(tracker *tracking.Tracker, cfg cliparse.Config) *UserHandler {
	return &UserHandler{tracker: tracker, cfg: cfg}
}

// GetReadingList handles GET /servers/{id}/users/{user}/reading-list
func (h *UserHandler) GetReadingList(w http.ResponseWriter, r *http.Request) {
	serverID, ok := authServer(w, r, h.cfg.GatewaySalt)
	if !ok {
		return
	}
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	entries, err := h.tracker.ReadingList(r.Context(), serverID, userID)
	if err != nil {
		slog.Error("failed to list reading list", "user_id", userID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, entries)
}

// AddReadingList handles POST /servers/{id}/users/{user}/reading-list
func (h *UserHandler) AddReadingList(w http.ResponseWriter, r *http.Request) {
	serverID, ok := authServer(w, r, h.cfg.GatewaySalt)
	if !ok {
		return
	}
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	var req models.ReadingListRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.VolumeID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "volume_id is required")
		return
	}

	status, err := h.tracker.ReadingListAdd(r.Context(), serverID, userID, req.VolumeID)
	if err != nil {
		slog.Error("failed to add reading list entry", "user_id", userID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if status != engine.StatusOK {
		statusError(w, status)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// RemoveReadingList handles DELETE /servers/{id}/users/{user}/reading-list/{volume}
func (h *UserHandler) RemoveReadingList(w http.ResponseWriter, r *http.Request) {
	serverID, ok := authServer(w, r, h.cfg.GatewaySalt)
	if !ok {
		return
	}
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	status, err := h.tracker.ReadingListRemove(r.Context(), serverID, userID, r.PathValue("volume"))
	if err != nil {
		slog.Error("failed to remove reading list entry", "user_id", userID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if status != engine.StatusOK {
		statusError(w, status)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetFavorites handles GET /servers/{id}/users/{user}/favorites
func (h *UserHandler) GetFavorites(w http.ResponseWriter, r *http.Request) {
	serverID, ok := authServer(w, r, h.cfg.GatewaySalt)
	if !ok {
		return
	}
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	entries, err := h.tracker.Favorites(r.Context(), serverID, userID)
	if err != nil {
		slog.Error("failed to list favorites", "user_id", userID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, entries)
}

// AddFavorite handles POST /servers/{id}/users/{user}/favorites
func (h *UserHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	serverID, ok := authServer(w, r, h.cfg.GatewaySalt)
	if !ok {
		return
	}
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	var req models.FavoriteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.VolumeID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "volume_id is required")
		return
	}

	status, err := h.tracker.FavoriteAdd(r.Context(), serverID, userID, req.VolumeID, req.NumberOne)
	if err != nil {
		slog.Error("failed to add favorite", "user_id", userID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if status != engine.StatusOK {
		statusError(w, status)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// RemoveFavorite handles DELETE /servers/{id}/users/{user}/favorites/{volume}
func (h *UserHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	serverID, ok := authServer(w, r, h.cfg.GatewaySalt)
	if !ok {
		return
	}
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	status, err := h.tracker.FavoriteRemove(r.Context(), serverID, userID, r.PathValue("volume"))
	if err != nil {
		slog.Error("failed to remove favorite", "user_id", userID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if status != engine.StatusOK {
		statusError(w, status)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ClearNumberOne handles DELETE /servers/{id}/users/{user}/favorites/number-one
func (h *UserHandler) ClearNumberOne(w http.ResponseWriter, r *http.Request) {
	serverID, ok := authServer(w, r, h.cfg.GatewaySalt)
	if !ok {
		return
	}
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	status, err := h.tracker.ClearNumberOne(r.Context(), serverID, userID)
	if err != nil {
		slog.Error("failed to clear number one", "user_id", userID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if status != engine.StatusOK {
		statusError(w, status)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetProgress handles GET /servers/{id}/progress
func (h *UserHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	serverID, ok := authServer(w, r, h.cfg.GatewaySalt)
	if !ok {
		return
	}

	entries, err := h.tracker.Progress(r.Context(), serverID)
	if err != nil {
		slog.Error("failed to list progress", "server_id", serverID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, entries)
}

// SetProgress handles PUT /servers/{id}/users/{user}/progress
func (h *UserHandler) SetProgress(w http.ResponseWriter, r *http.Request) {
	serverID, ok := authServer(w, r, h.cfg.GatewaySalt)
	if !ok {
		return
	}
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	var req models.ProgressRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if len(req.Text) > models.ProgressTextLimit {
		middleware.ErrorResponse(w, http.StatusBadRequest, "progress text is too long")
		return
	}

	status, err := h.tracker.SetProgress(r.Context(), serverID, userID, req.Text)
	if err != nil {
		slog.Error("failed to set progress", "user_id", userID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if status != engine.StatusOK {
		statusError(w, status)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ClearProgress handles DELETE /servers/{id}/users/{user}/progress
func (h *UserHandler) ClearProgress(w http.ResponseWriter, r *http.Request) {
	serverID, ok := authServer(w, r, h.cfg.GatewaySalt)
	if !ok {
		return
	}
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	status, err := h.tracker.ClearProgress(r.Context(), serverID, userID)
	if err != nil {
		slog.Error("failed to clear progress", "user_id", userID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if status != engine.StatusOK {
		statusError(w, status)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
