// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/fable/models"
	"github.com/danielhkuo/fable/testutil"
)

// TestHistoryAndStats verifies the history listing and the aggregate stats
// view.
func TestHistoryAndStats(t *testing.T) {
	env := newTestEnv(t)
	handler := NewHistoryHandler(env.engine, env.cfg)

	serverID := testutil.CreateTestServer(t, env.db, 840)
	testutil.CreateTestUser(t, env.db, 1, "alice")
	completedID := testutil.CreateCompletedBook(t, env.db, serverID, "vol-a", 1)
	testutil.AddQueueBook(t, env.db, serverID, "vol-b", 1)

	w := httptest.NewRecorder()
	handler.GetHistory(w, env.serverRequest("GET", "/servers/840/history", nil, serverID))
	testutil.AssertStatus(t, w, http.StatusOK)

	var books []models.CompletedBook
	testutil.AssertJSON(t, w, &books)
	if len(books) != 1 || books[0].CompletedID != completedID {
		t.Errorf("Unexpected history: %+v", books)
	}

	w = httptest.NewRecorder()
	handler.GetStats(w, env.serverRequest("GET", "/servers/840/stats", nil, serverID))
	testutil.AssertStatus(t, w, http.StatusOK)

	var stats models.ServerStats
	testutil.AssertJSON(t, w, &stats)
	if stats.BooksCompleted != 1 || stats.QueueLength != 1 || stats.TotalRatings != 0 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

// TestManualRating verifies the PUT/DELETE rating path keeps aggregates in
// step.
func TestManualRating(t *testing.T) {
	env := newTestEnv(t)
	handler := NewHistoryHandler(env.engine, env.cfg)

	serverID := testutil.CreateTestServer(t, env.db, 841)
	testutil.CreateTestUser(t, env.db, 1, "alice")
	testutil.CreateTestUser(t, env.db, 2, "bob")
	completedID := testutil.CreateCompletedBook(t, env.db, serverID, "vol-a", 1)

	put := func(userID int64, rating int) *httptest.ResponseRecorder {
		req := env.serverRequest("PUT", "/servers/841/ratings/"+completedID,
			models.PutRatingRequest{UserID: userID, Rating: rating}, serverID)
		req.SetPathValue("completed", completedID)
		w := httptest.NewRecorder()
		handler.PutRating(w, req)
		return w
	}

	w := put(1, 5)
	testutil.AssertStatus(t, w, http.StatusOK)

	w = put(2, 3)
	testutil.AssertStatus(t, w, http.StatusOK)

	var book models.CompletedBook
	testutil.AssertJSON(t, w, &book)
	if book.TotalRatings != 2 || book.AverageRating == nil || *book.AverageRating != 4.0 {
		t.Errorf("Unexpected aggregates: %+v", book)
	}

	// Overwrite is not a second vote
	w = put(1, 1)
	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSON(t, w, &book)
	if book.TotalRatings != 2 || *book.AverageRating != 2.0 {
		t.Errorf("Overwrite broke aggregates: %+v", book)
	}

	// Out-of-range rejected
	w = put(1, 6)
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	// Retraction
	req := env.serverRequest("DELETE", "/servers/841/ratings/"+completedID+"?user_id=2", nil, serverID)
	req.SetPathValue("completed", completedID)
	w = httptest.NewRecorder()
	handler.DeleteRating(w, req)
	testutil.AssertStatus(t, w, http.StatusNoContent)

	// Retracting again is 404
	req = env.serverRequest("DELETE", "/servers/841/ratings/"+completedID+"?user_id=2", nil, serverID)
	req.SetPathValue("completed", completedID)
	w = httptest.NewRecorder()
	handler.DeleteRating(w, req)
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

// TestManualRatingUnknownCompleted verifies rating a book that was never
// finished is 404.
func TestManualRatingUnknownCompleted(t *testing.T) {
	env := newTestEnv(t)
	handler := NewHistoryHandler(env.engine, env.cfg)

	serverID := testutil.CreateTestServer(t, env.db, 842)
	testutil.CreateTestUser(t, env.db, 1, "alice")

	req := env.serverRequest("PUT", "/servers/842/ratings/no-such-id",
		models.PutRatingRequest{UserID: 1, Rating: 4}, serverID)
	req.SetPathValue("completed", "no-such-id")
	w := httptest.NewRecorder()
	handler.PutRating(w, req)
	testutil.AssertStatus(t, w, http.StatusNotFound)
}
