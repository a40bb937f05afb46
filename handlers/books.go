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
	"github.com/danielhkuo/fable/polls"
)

type BookHandler struct {
	engine *engine.Engine
	rating *polls.Rating
	cfg    cliparse.Config
}

func NewBookHandler(eng *engine.Engine, rating *polls.Rating, cfg cliparse.Config) *BookHandler {
	return &BookHandler{engine: eng, rating: rating, cfg: cfg}
}

// GetCurrent handles GET /servers/{id}/current
func (h *BookHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	serverID, ok := authServer(w, r, h.cfg.GatewaySalt)
	if !ok {
		return
	}

	book, status, err := h.engine.CurrentBook(r.Context(), serverID)
	if err != nil {
		slog.Error("failed to query current book", "server_id", serverID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if status != engine.StatusOK {
		statusError(w, status)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, book)
}

// SelectCurrent handles POST /servers/{id}/current
// Selects an explicit volume from the queue, or a random one.
func (h *BookHandler) SelectCurrent(w http.ResponseWriter, r *http.Request) {
	serverID, ok := authServer(w, r, h.cfg.GatewaySalt)
	if !ok {
		return
	}

	var req models.SelectBookRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	volumeID := req.VolumeID
	if req.Random {
		entry, status, err := h.engine.RandomQueueBook(r.Context(), serverID)
		if err != nil {
			slog.Error("failed to pick random book", "server_id", serverID, "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		if status != engine.StatusOK {
			statusError(w, status)
			return
		}
		volumeID = entry.VolumeID
	}
	if volumeID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "volume_id is required")
		return
	}

	res, err := h.engine.SelectFromQueue(r.Context(), serverID, volumeID, req.AnnouncementChannel, req.Deadline)
	if err != nil {
		slog.Error("failed to select book", "server_id", serverID, "volume_id", volumeID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if res.Status != engine.StatusOK {
		statusError(w, res.Status)
		return
	}

	slog.Info("book selected", "server_id", serverID, "volume_id", res.VolumeID)

	middleware.JSONResponse(w, http.StatusCreated, models.SelectBookResponse{
		VolumeID:    res.VolumeID,
		SuggestedBy: res.SuggestedBy,
		Deadline:    res.Deadline,
	})
}

// FinishCurrent handles POST /servers/{id}/current/finish
// The finish commits first; opening the rating poll afterwards may fail
// without undoing it.
func (h *BookHandler) FinishCurrent(w http.ResponseWriter, r *http.Request) {
	serverID, ok := authServer(w, r, h.cfg.GatewaySalt)
	if !ok {
		return
	}

	book, bookStatus, err := h.engine.CurrentBook(r.Context(), serverID)
	if err != nil {
		slog.Error("failed to query current book", "server_id", serverID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if bookStatus != engine.StatusOK {
		statusError(w, bookStatus)
		return
	}

	res, err := h.engine.FinishCurrentBook(r.Context(), serverID)
	if err != nil {
		slog.Error("failed to finish book", "server_id", serverID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if res.Status != engine.StatusOK {
		statusError(w, res.Status)
		return
	}

	slog.Info("book finished", "server_id", serverID, "volume_id", res.VolumeID, "completed_id", res.CompletedID)

	if channel := h.ratingChannel(r, serverID, book); channel != nil {
		if _, _, err := h.rating.Open(r.Context(), serverID, res.CompletedID, *channel); err != nil {
			slog.Error("failed to open rating poll", "server_id", serverID, "completed_id", res.CompletedID, "error", err)
		}
	} else {
		slog.Warn("no channel for rating poll", "server_id", serverID)
	}

	middleware.JSONResponse(w, http.StatusOK, models.FinishBookResponse{
		CompletedID: res.CompletedID,
		VolumeID:    res.VolumeID,
		StartedAt:   res.StartedAt,
	})
}

// RemoveCurrent handles DELETE /servers/{id}/current
// Abandons the book: no completion record, no rating poll.
func (h *BookHandler) RemoveCurrent(w http.ResponseWriter, r *http.Request) {
	serverID, ok := authServer(w, r, h.cfg.GatewaySalt)
	if !ok {
		return
	}

	res, err := h.engine.RemoveCurrentBook(r.Context(), serverID)
	if err != nil {
		slog.Error("failed to remove book", "server_id", serverID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if res.Status != engine.StatusOK {
		statusError(w, res.Status)
		return
	}

	slog.Info("book removed", "server_id", serverID, "volume_id", res.VolumeID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *BookHandler) ratingChannel(r *http.Request, serverID int64, book models.CurrentBook) *int64 {
	cfg, err := h.engine.Config(r.Context(), serverID)
	if err == nil && cfg.AnnouncementChannelID != nil {
		return cfg.AnnouncementChannelID
	}
	if book.AnnouncementChannelID != nil {
		return book.AnnouncementChannelID
	}
	return book.DiscussionChannelID
}
