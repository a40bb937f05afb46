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
)

type ConfigHandler struct {
	engine *engine.Engine
	cfg    cliparse.Config
}

func NewConfigHandler(eng *engine.Engine, cfg cliparse.Config) *ConfigHandler {
	return &ConfigHandler{engine: eng, cfg: cfg}
}

// GetConfig handles GET /servers/{id}/config
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	serverID, ok := authServer(w, r, h.cfg.GatewaySalt)
	if !ok {
		return
	}

	cfg, err := h.engine.Config(r.Context(), serverID)
	if err != nil {
		slog.Error("failed to query config", "server_id", serverID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, cfg)
}

// UpdateConfig handles PUT /servers/{id}/config
// Partial update: only the fields present in the request change.
func (h *ConfigHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	serverID, ok := authServer(w, r, h.cfg.GatewaySalt)
	if !ok {
		return
	}

	var req models.UpdateConfigRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// The config row references the server row, so registration comes first.
	if err := h.engine.EnsureServer(r.Context(), serverID, req.ServerName); err != nil {
		slog.Error("failed to ensure server", "server_id", serverID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	cfg, err := h.engine.Config(r.Context(), serverID)
	if err != nil {
		slog.Error("failed to query config", "server_id", serverID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if req.AnnouncementChannelID != nil {
		cfg.AnnouncementChannelID = req.AnnouncementChannelID
	}
	if req.QueueEnabled != nil {
		cfg.QueueEnabled = *req.QueueEnabled
	}
	if req.PinPolls != nil {
		cfg.PinPolls = *req.PinPolls
	}
	if req.AutoFinishOnDeadline != nil {
		cfg.AutoFinishOnDeadline = *req.AutoFinishOnDeadline
	}
	if req.MatureEnabled != nil {
		cfg.MatureEnabled = *req.MatureEnabled
	}

	if err := h.engine.SaveConfig(r.Context(), cfg); err != nil {
		slog.Error("failed to save config", "server_id", serverID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	slog.Info("config updated", "server_id", serverID)
	middleware.JSONResponse(w, http.StatusOK, cfg)
}
