// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielhkuo/fable/cliparse"
	"github.com/danielhkuo/fable/engine"
	"github.com/danielhkuo/fable/middleware"
	"github.com/danielhkuo/fable/models"
	"github.com/danielhkuo/fable/polls"
)

const (
	defaultPollOptions = 5
	defaultVoteHours   = 24
)

type PollHandler struct {
	selection *polls.Selection
	cfg       cliparse.Config
}

func NewPollHandler(selection *polls.Selection, cfg cliparse.Config) *PollHandler {
	return &PollHandler{selection: selection, cfg: cfg}
}

// CreateSelectionPoll handles POST /servers/{id}/polls/selection
func (h *PollHandler) CreateSelectionPoll(w http.ResponseWriter, r *http.Request) {
	serverID, ok := authServer(w, r, h.cfg.GatewaySalt)
	if !ok {
		return
	}

	var req models.CreateSelectionPollRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.ChannelID == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "channel_id is required")
		return
	}
	if req.NumOptions <= 0 {
		req.NumOptions = defaultPollOptions
	}
	if req.VoteHours <= 0 {
		req.VoteHours = defaultVoteHours
	}

	poll, status, err := h.selection.Create(r.Context(), serverID, req.ChannelID,
		req.NumOptions, time.Duration(req.VoteHours)*time.Hour, req.Deadline)
	if err != nil {
		slog.Error("failed to create selection poll", "server_id", serverID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
		return
	}
	if status == engine.StatusNotInQueue {
		middleware.ErrorResponse(w, http.StatusConflict, "The queue is empty")
		return
	}
	if status != engine.StatusOK {
		statusError(w, status)
		return
	}

	slog.Info("selection poll created", "server_id", serverID, "message_id", poll.MessageID)

	middleware.JSONResponse(w, http.StatusCreated, models.CreateSelectionPollResponse{
		MessageID:   poll.MessageID,
		BookOptions: poll.BookOptions,
		ExpiresAt:   poll.ExpiresAt,
	})
}

// GetSelectionPoll handles GET /servers/{id}/polls/selection
// Returns the pending poll, if any.
func (h *PollHandler) GetSelectionPoll(w http.ResponseWriter, r *http.Request) {
	serverID, ok := authServer(w, r, h.cfg.GatewaySalt)
	if !ok {
		return
	}

	poll, status, err := h.selection.OpenPoll(r.Context(), serverID)
	if err != nil {
		slog.Error("failed to query selection poll", "server_id", serverID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if status != engine.StatusOK {
		middleware.ErrorResponse(w, http.StatusNotFound, "No open selection poll")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, poll)
}
