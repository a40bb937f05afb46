// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package watcher_test

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/fable/engine"
	"github.com/danielhkuo/fable/metadata"
	"github.com/danielhkuo/fable/notify"
	"github.com/danielhkuo/fable/policy"
	"github.com/danielhkuo/fable/polls"
	"github.com/danielhkuo/fable/testutil"
	"github.com/danielhkuo/fable/watcher"
)

type fakeAnnouncer struct {
	mu       sync.Mutex
	nextID   int64
	messages []string
	polls    []notify.Poll
}

func (f *fakeAnnouncer) Announce(ctx context.Context, channelID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
	return nil
}

func (f *fakeAnnouncer) PostPoll(ctx context.Context, channelID int64, poll notify.Poll) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.polls = append(f.polls, poll)
	return 9500 + f.nextID, nil
}

func (f *fakeAnnouncer) Pin(ctx context.Context, channelID, messageID int64) error {
	return nil
}

func newTestMeta(t *testing.T) *metadata.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"volumeInfo":{"title":"Some Book"}}`)
	}))
	t.Cleanup(srv.Close)
	return metadata.NewClient(srv.URL, "", slog.Default())
}

func enableAutoFinish(t *testing.T, db *sql.DB, serverID, channelID int64) {
	t.Helper()
	_, err := db.Exec(`
		UPDATE server_config SET auto_finish_on_deadline = TRUE, announcement_channel_id = $2
		WHERE server_id = $1
	`, serverID, channelID)
	if err != nil {
		t.Fatalf("Failed to enable auto finish: %v", err)
	}
}

// TestDeadlineTickFinishesOverdueBooks verifies one tick finishes the
// overdue book and opens a rating poll for it.
func TestDeadlineTickFinishesOverdueBooks(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()
	eng := engine.New(db, "postgres")
	ann := &fakeAnnouncer{}
	rating := polls.NewRating(db, eng, ann, newTestMeta(t), policy.NewDefault(db, nil), slog.Default(), 167*time.Hour)
	w := watcher.NewDeadline(db, eng, rating, slog.Default(), time.Minute)
	ctx := context.Background()

	serverID := testutil.CreateTestServer(t, db, 400)
	enableAutoFinish(t, db, serverID, 555)
	past := time.Now().UTC().Add(-time.Hour)
	testutil.SetCurrentBook(t, db, serverID, "vol-a", 1, &past)

	w.Tick(ctx)

	if _, status, _ := eng.CurrentBook(ctx, serverID); status != engine.StatusNoCurrentBook {
		t.Errorf("Expected current book finished, got %s", status)
	}
	if n := testutil.CountRows(t, db, "SELECT COUNT(*) FROM completed_book WHERE server_id = $1", serverID); n != 1 {
		t.Errorf("Expected 1 completed row, got %d", n)
	}
	if n := testutil.CountRows(t, db, "SELECT COUNT(*) FROM rating_poll WHERE server_id = $1", serverID); n != 1 {
		t.Errorf("Expected 1 rating poll, got %d", n)
	}
	if len(ann.polls) != 1 {
		t.Errorf("Expected 1 posted rating poll, got %d", len(ann.polls))
	}
}

// TestDeadlineTickRespectsOptOut verifies books on servers without
// auto_finish_on_deadline are left alone, deadline or not.
func TestDeadlineTickRespectsOptOut(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()
	eng := engine.New(db, "postgres")
	rating := polls.NewRating(db, eng, &fakeAnnouncer{}, newTestMeta(t), policy.NewDefault(db, nil), slog.Default(), 167*time.Hour)
	w := watcher.NewDeadline(db, eng, rating, slog.Default(), time.Minute)
	ctx := context.Background()

	serverID := testutil.CreateTestServer(t, db, 401)
	past := time.Now().UTC().Add(-time.Hour)
	testutil.SetCurrentBook(t, db, serverID, "vol-a", 1, &past)

	w.Tick(ctx)

	if _, status, _ := eng.CurrentBook(ctx, serverID); status != engine.StatusOK {
		t.Errorf("Opted-out server's book must be untouched, got %s", status)
	}
}

// TestDeadlineTickIgnoresFutureDeadlines verifies only past deadlines
// trigger.
func TestDeadlineTickIgnoresFutureDeadlines(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()
	eng := engine.New(db, "postgres")
	rating := polls.NewRating(db, eng, &fakeAnnouncer{}, newTestMeta(t), policy.NewDefault(db, nil), slog.Default(), 167*time.Hour)
	w := watcher.NewDeadline(db, eng, rating, slog.Default(), time.Minute)
	ctx := context.Background()

	serverID := testutil.CreateTestServer(t, db, 402)
	enableAutoFinish(t, db, serverID, 555)
	future := time.Now().UTC().Add(time.Hour)
	testutil.SetCurrentBook(t, db, serverID, "vol-a", 1, &future)

	w.Tick(ctx)

	if _, status, _ := eng.CurrentBook(ctx, serverID); status != engine.StatusOK {
		t.Errorf("Future-deadline book must be untouched, got %s", status)
	}
}

// TestDeadlineTickClosesExpiredRatingPolls verifies the same tick sweeps
// rating polls past their window.
func TestDeadlineTickClosesExpiredRatingPolls(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()
	eng := engine.New(db, "postgres")
	ann := &fakeAnnouncer{}
	rating := polls.NewRating(db, eng, ann, newTestMeta(t), policy.NewDefault(db, nil), slog.Default(), 167*time.Hour)
	w := watcher.NewDeadline(db, eng, rating, slog.Default(), time.Minute)
	ctx := context.Background()

	serverID := testutil.CreateTestServer(t, db, 403)
	completedID := testutil.CreateCompletedBook(t, db, serverID, "vol-a", 1)
	messageID := testutil.CreateRatingPoll(t, db, serverID, 8100, completedID, time.Now().UTC().Add(-time.Minute))

	w.Tick(ctx)

	var processed bool
	if err := db.QueryRow("SELECT processed FROM rating_poll WHERE message_id = $1", messageID).Scan(&processed); err != nil {
		t.Fatalf("Failed to query poll: %v", err)
	}
	if !processed {
		t.Error("Expected expired rating poll processed")
	}
}

// TestSelectionPollsTick verifies expired selection polls get closed and
// pending ones are left alone.
func TestSelectionPollsTick(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()
	eng := engine.New(db, "postgres")
	sel := polls.NewSelection(db, eng, &fakeAnnouncer{}, newTestMeta(t), policy.NewDefault(db, nil), slog.Default())
	w := watcher.NewSelectionPolls(sel, slog.Default(), time.Minute)
	ctx := context.Background()

	expiredServer := testutil.CreateTestServer(t, db, 404)
	pendingServer := testutil.CreateTestServer(t, db, 405)
	expired := testutil.CreateSelectionPoll(t, db, expiredServer, 8200,
		[]string{"vol-a"}, time.Now().UTC().Add(-time.Minute))
	pending := testutil.CreateSelectionPoll(t, db, pendingServer, 8201,
		[]string{"vol-b"}, time.Now().UTC().Add(time.Hour))

	w.Tick(ctx)

	var processed bool
	if err := db.QueryRow("SELECT processed FROM selection_poll WHERE message_id = $1", expired).Scan(&processed); err != nil {
		t.Fatalf("Failed to query poll: %v", err)
	}
	if !processed {
		t.Error("Expected expired poll processed")
	}
	if err := db.QueryRow("SELECT processed FROM selection_poll WHERE message_id = $1", pending).Scan(&processed); err != nil {
		t.Fatalf("Failed to query poll: %v", err)
	}
	if processed {
		t.Error("Pending poll must stay open")
	}
}
