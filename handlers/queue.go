// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/danielhkuo/fable/cliparse"
	"github.com/danielhkuo/fable/engine"
	"github.com/danielhkuo/fable/metadata"
	"github.com/danielhkuo/fable/middleware"
	"github.com/danielhkuo/fable/models"
	"github.com/danielhkuo/fable/policy"
)

type QueueHandler struct {
	engine *engine.Engine
	meta   *metadata.Client
	policy policy.Policy
	cfg    cliparse.Config
}

func NewQueueHandler(eng *engine.Engine, meta *metadata.Client, pol policy.Policy, cfg cliparse.Config) *QueueHandler {
	return &QueueHandler{engine: eng, meta: meta, policy: pol, cfg: cfg}
}

// ListQueue handles GET /servers/{id}/queue
func (h *QueueHandler) ListQueue(w http.ResponseWriter, r *http.Request) {
	serverID, ok := authServer(w, r, h.cfg.GatewaySalt)
	if !ok {
		return
	}

	entries, err := h.engine.ListQueue(r.Context(), serverID)
	if err != nil {
		slog.Error("failed to list queue", "server_id", serverID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, entries)
}

// AddToQueue handles POST /servers/{id}/queue
// Member suggestions respect the queue_enabled flag; the gateway marks
// admin-driven adds with X-Admin, which bypasses it.
func (h *QueueHandler) AddToQueue(w http.ResponseWriter, r *http.Request) {
	serverID, ok := authServer(w, r, h.cfg.GatewaySalt)
	if !ok {
		return
	}

	var req models.QueueAddRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.VolumeID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "volume_id is required")
		return
	}
	if req.SuggestedBy == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "suggested_by is required")
		return
	}

	// First contact with a server can arrive through a suggestion; register
	// it so the queue mutation has a server row to lock against.
	if err := h.engine.EnsureServer(r.Context(), serverID, ""); err != nil {
		slog.Error("failed to ensure server", "server_id", serverID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	admin := r.Header.Get("X-Admin") == "true"
	srvCfg, err := h.engine.Config(r.Context(), serverID)
	if err != nil {
		slog.Error("failed to query config", "server_id", serverID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !srvCfg.QueueEnabled && !admin {
		middleware.ErrorResponse(w, http.StatusForbidden, "Queue suggestions are disabled")
		return
	}

	// Mature volumes are vetted at queue time, so poll closes and selects
	// can trust what is already queued.
	if allowed, err := h.allowVolume(r, serverID, srvCfg, req.VolumeID); err != nil {
		slog.Error("failed to check volume policy", "volume_id", req.VolumeID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Metadata error")
		return
	} else if !allowed {
		middleware.ErrorResponse(w, http.StatusForbidden, "Mature content is not enabled for this server")
		return
	}

	if req.Username != "" {
		if err := h.engine.EnsureUser(r.Context(), req.SuggestedBy, req.Username); err != nil {
			slog.Error("failed to ensure user", "user_id", req.SuggestedBy, "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
	}

	status, err := h.engine.AddToQueue(r.Context(), serverID, req.VolumeID, req.SuggestedBy)
	if err != nil {
		slog.Error("failed to add to queue", "server_id", serverID, "volume_id", req.VolumeID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if status != engine.StatusOK {
		statusError(w, status)
		return
	}

	slog.Info("book queued", "server_id", serverID, "volume_id", req.VolumeID, "suggested_by", req.SuggestedBy)
	w.WriteHeader(http.StatusCreated)
}

// RemoveFromQueue handles DELETE /servers/{id}/queue/{volume}
func (h *QueueHandler) RemoveFromQueue(w http.ResponseWriter, r *http.Request) {
	serverID, ok := authServer(w, r, h.cfg.GatewaySalt)
	if !ok {
		return
	}
	volumeID := r.PathValue("volume")
	if volumeID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "volume id is required")
		return
	}

	status, err := h.engine.RemoveFromQueue(r.Context(), serverID, volumeID)
	if err != nil {
		slog.Error("failed to remove from queue", "server_id", serverID, "volume_id", volumeID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if status != engine.StatusOK {
		statusError(w, status)
		return
	}

	slog.Info("book unqueued", "server_id", serverID, "volume_id", volumeID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *QueueHandler) allowVolume(r *http.Request, serverID int64, srvCfg models.ServerConfig, volumeID string) (bool, error) {
	vol, err := h.meta.Volume(r.Context(), volumeID)
	if err != nil {
		if metadata.IsNotFound(err) || metadata.IsTransient(err) {
			// Unknown or unreachable upstream: queue it, the title just
			// falls back.
			return true, nil
		}
		return false, err
	}

	var channel int64
	if srvCfg.AnnouncementChannelID != nil {
		channel = *srvCfg.AnnouncementChannelID
	}
	return h.policy.AllowVolume(r.Context(), serverID, channel, vol.Mature)
}
