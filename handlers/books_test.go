// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/fable/engine"
	"github.com/danielhkuo/fable/models"
	"github.com/danielhkuo/fable/testutil"
)

// TestCurrentBookLifecycle walks select → get → finish over HTTP.
func TestCurrentBookLifecycle(t *testing.T) {
	env := newTestEnv(t)
	handler := NewBookHandler(env.engine, env.rating, env.cfg)

	serverID := testutil.CreateTestServer(t, env.db, 800)
	testutil.CreateTestUser(t, env.db, 1, "alice")
	testutil.AddQueueBook(t, env.db, serverID, "vol-a", 1)

	// No current book yet
	w := httptest.NewRecorder()
	handler.GetCurrent(w, env.serverRequest("GET", "/servers/800/current", nil, serverID))
	testutil.AssertStatus(t, w, http.StatusNotFound)

	// Select vol-a
	w = httptest.NewRecorder()
	handler.SelectCurrent(w, env.serverRequest("POST", "/servers/800/current",
		models.SelectBookRequest{VolumeID: "vol-a"}, serverID))
	testutil.AssertStatus(t, w, http.StatusCreated)

	var selected models.SelectBookResponse
	testutil.AssertJSON(t, w, &selected)
	if selected.VolumeID != "vol-a" || selected.SuggestedBy != 1 {
		t.Errorf("Unexpected select response: %+v", selected)
	}

	// Selecting again conflicts
	testutil.AddQueueBook(t, env.db, serverID, "vol-b", 1)
	w = httptest.NewRecorder()
	handler.SelectCurrent(w, env.serverRequest("POST", "/servers/800/current",
		models.SelectBookRequest{VolumeID: "vol-b"}, serverID))
	testutil.AssertStatus(t, w, http.StatusConflict)

	// Get returns it
	w = httptest.NewRecorder()
	handler.GetCurrent(w, env.serverRequest("GET", "/servers/800/current", nil, serverID))
	testutil.AssertStatus(t, w, http.StatusOK)

	// Finish records a completion and opens a rating poll on the
	// configured channel
	if _, err := env.db.Exec("UPDATE server_config SET announcement_channel_id = 555 WHERE server_id = $1", serverID); err != nil {
		t.Fatalf("Failed to set channel: %v", err)
	}
	w = httptest.NewRecorder()
	handler.FinishCurrent(w, env.serverRequest("POST", "/servers/800/current/finish", nil, serverID))
	testutil.AssertStatus(t, w, http.StatusOK)

	var finished models.FinishBookResponse
	testutil.AssertJSON(t, w, &finished)
	if finished.VolumeID != "vol-a" || finished.CompletedID == "" {
		t.Errorf("Unexpected finish response: %+v", finished)
	}
	if n := testutil.CountRows(t, env.db, "SELECT COUNT(*) FROM rating_poll WHERE server_id = $1", serverID); n != 1 {
		t.Errorf("Expected rating poll opened, got %d rows", n)
	}

	// Finishing again is 404
	w = httptest.NewRecorder()
	handler.FinishCurrent(w, env.serverRequest("POST", "/servers/800/current/finish", nil, serverID))
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

// TestSelectRandom verifies random selection drains the queue entry.
func TestSelectRandom(t *testing.T) {
	env := newTestEnv(t)
	handler := NewBookHandler(env.engine, env.rating, env.cfg)

	serverID := testutil.CreateTestServer(t, env.db, 801)
	testutil.AddQueueBook(t, env.db, serverID, "vol-only", 1)

	w := httptest.NewRecorder()
	handler.SelectCurrent(w, env.serverRequest("POST", "/servers/801/current",
		models.SelectBookRequest{Random: true}, serverID))
	testutil.AssertStatus(t, w, http.StatusCreated)

	var selected models.SelectBookResponse
	testutil.AssertJSON(t, w, &selected)
	if selected.VolumeID != "vol-only" {
		t.Errorf("Expected vol-only, got %s", selected.VolumeID)
	}
	if n := testutil.CountRows(t, env.db, "SELECT COUNT(*) FROM book_queue WHERE server_id = $1", serverID); n != 0 {
		t.Errorf("Expected empty queue, got %d", n)
	}
}

// TestRemoveCurrentNoCompletion verifies DELETE abandons without history.
func TestRemoveCurrentNoCompletion(t *testing.T) {
	env := newTestEnv(t)
	handler := NewBookHandler(env.engine, env.rating, env.cfg)

	serverID := testutil.CreateTestServer(t, env.db, 802)
	testutil.SetCurrentBook(t, env.db, serverID, "vol-a", 1, nil)

	w := httptest.NewRecorder()
	handler.RemoveCurrent(w, env.serverRequest("DELETE", "/servers/802/current", nil, serverID))
	testutil.AssertStatus(t, w, http.StatusNoContent)

	if n := testutil.CountRows(t, env.db, "SELECT COUNT(*) FROM completed_book WHERE server_id = $1", serverID); n != 0 {
		t.Errorf("Remove must not record a completion, got %d", n)
	}
	if n := testutil.CountRows(t, env.db, "SELECT COUNT(*) FROM rating_poll WHERE server_id = $1", serverID); n != 0 {
		t.Errorf("Remove must not open a rating poll, got %d", n)
	}
}

// TestGatewayTokenRequired verifies a bad token is rejected before any
// work happens.
func TestGatewayTokenRequired(t *testing.T) {
	env := newTestEnv(t)
	handler := NewBookHandler(env.engine, env.rating, env.cfg)

	serverID := testutil.CreateTestServer(t, env.db, 803)
	testutil.SetCurrentBook(t, env.db, serverID, "vol-a", 1, nil)

	req := testutil.MakeRequest("GET", "/servers/803/current", nil, map[string]string{
		"X-Gateway-Token": "forged",
	})
	req.SetPathValue("id", "803")
	w := httptest.NewRecorder()
	handler.GetCurrent(w, req)
	testutil.AssertStatus(t, w, http.StatusUnauthorized)

	// Token for a different server fails too
	req = env.serverRequest("DELETE", "/servers/803/current", nil, 999)
	req.SetPathValue("id", "803")
	w = httptest.NewRecorder()
	handler.RemoveCurrent(w, req)
	testutil.AssertStatus(t, w, http.StatusUnauthorized)

	if _, status, _ := env.engine.CurrentBook(context.Background(), serverID); status != engine.StatusOK {
		t.Error("Unauthorized calls must not mutate state")
	}
}
