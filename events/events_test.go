// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package events_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/fable/engine"
	"github.com/danielhkuo/fable/events"
	"github.com/danielhkuo/fable/metadata"
	"github.com/danielhkuo/fable/models"
	"github.com/danielhkuo/fable/notify"
	"github.com/danielhkuo/fable/policy"
	"github.com/danielhkuo/fable/polls"
	"github.com/danielhkuo/fable/testutil"
)

func newTestMeta(t *testing.T) *metadata.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"volumeInfo":{"title":"Some Book"}}`)
	}))
	t.Cleanup(srv.Close)
	return metadata.NewClient(srv.URL, "", slog.Default())
}

// TestDispatcherRoutesByMessageID verifies events land in the lifecycle
// that owns the message, and votes on messages we don't know are ignored.
func TestDispatcherRoutesByMessageID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()
	eng := engine.New(db, "postgres")
	meta := newTestMeta(t)
	pol := policy.NewDefault(db, nil)
	logger := slog.Default()
	announcer := notify.NewLog(logger)

	sel := polls.NewSelection(db, eng, announcer, meta, pol, logger)
	rating := polls.NewRating(db, eng, announcer, meta, pol, logger, 167*time.Hour)
	dispatcher := events.NewDispatcher(sel, rating, logger)
	ctx := context.Background()

	serverID := testutil.CreateTestServer(t, db, 500)
	testutil.CreateTestUser(t, db, 1, "alice")
	selectionMsg := testutil.CreateSelectionPoll(t, db, serverID, 9001,
		[]string{"vol-a", "vol-b"}, time.Now().UTC().Add(time.Hour))
	completedID := testutil.CreateCompletedBook(t, db, serverID, "vol-c", 1)
	ratingMsg := testutil.CreateRatingPoll(t, db, serverID, 9002, completedID, time.Now().UTC().Add(time.Hour))

	// Selection vote
	err := dispatcher.Dispatch(ctx, models.VoteEvent{
		Type: models.VoteAdd, MessageID: selectionMsg, ServerID: serverID, UserID: 1, OptionIndex: 1,
	})
	require.NoError(t, err)
	require.Equal(t, 1, testutil.CountRows(t, db,
		"SELECT COUNT(*) FROM selection_vote WHERE message_id = $1", selectionMsg))

	// Rating vote
	err = dispatcher.Dispatch(ctx, models.VoteEvent{
		Type: models.VoteAdd, MessageID: ratingMsg, ServerID: serverID, UserID: 1, Username: "alice", OptionIndex: 3,
	})
	require.NoError(t, err)
	require.Equal(t, 1, testutil.CountRows(t, db,
		"SELECT COUNT(*) FROM book_rating WHERE completed_id = $1", completedID))

	// Rating retraction
	err = dispatcher.Dispatch(ctx, models.VoteEvent{
		Type: models.VoteRemove, MessageID: ratingMsg, UserID: 1,
	})
	require.NoError(t, err)
	require.Equal(t, 0, testutil.CountRows(t, db,
		"SELECT COUNT(*) FROM book_rating WHERE completed_id = $1", completedID))

	// Unknown message id is silently ignored
	err = dispatcher.Dispatch(ctx, models.VoteEvent{
		Type: models.VoteAdd, MessageID: 424242, UserID: 1, OptionIndex: 0,
	})
	require.NoError(t, err)

	// Unknown event type is silently ignored
	err = dispatcher.Dispatch(ctx, models.VoteEvent{
		Type: "vote_sideways", MessageID: selectionMsg, UserID: 1, OptionIndex: 0,
	})
	require.NoError(t, err)
	require.Equal(t, 1, testutil.CountRows(t, db,
		"SELECT COUNT(*) FROM selection_vote WHERE message_id = $1", selectionMsg))
}
