// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"strconv"

	"github.com/danielhkuo/fable/auth"
	"github.com/danielhkuo/fable/engine"
	"github.com/danielhkuo/fable/middleware"
)

// authServer extracts the {id} path value and validates the caller's
// X-Gateway-Token for that server. On failure it writes the error response
// and returns ok=false.
func authServer(w http.ResponseWriter, r *http.Request, salt string) (int64, bool) {
	serverID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid server id")
		return 0, false
	}

	token := r.Header.Get("X-Gateway-Token")
	if err := auth.ValidateGatewayToken(serverID, token, salt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid gateway token")
		return 0, false
	}
	return serverID, true
}

// pathUserID extracts the {user} path value.
func pathUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(r.PathValue("user"), 10, 64)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return userID, true
}

// statusError maps a routine engine outcome to its HTTP error. StatusOK maps
// to nothing; callers handle success themselves.
func statusError(w http.ResponseWriter, status engine.Status) {
	switch status {
	case engine.StatusNotInQueue:
		middleware.ErrorResponse(w, http.StatusNotFound, "Book is not in the queue")
	case engine.StatusAlreadyReading:
		middleware.ErrorResponse(w, http.StatusConflict, "A current book is already set")
	case engine.StatusNoCurrentBook:
		middleware.ErrorResponse(w, http.StatusNotFound, "No current book")
	case engine.StatusAlreadyQueued:
		middleware.ErrorResponse(w, http.StatusConflict, "Book is already queued")
	case engine.StatusNotFound:
		middleware.ErrorResponse(w, http.StatusNotFound, "Not found")
	case engine.StatusPollAlreadyOpen:
		middleware.ErrorResponse(w, http.StatusConflict, "A selection poll is already open")
	case engine.StatusAlreadyListed:
		middleware.ErrorResponse(w, http.StatusConflict, "Already listed")
	case engine.StatusLimitReached:
		middleware.ErrorResponse(w, http.StatusConflict, "List limit reached")
	default:
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Unexpected outcome")
	}
}
