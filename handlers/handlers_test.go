// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/fable/auth"
	"github.com/danielhkuo/fable/cliparse"
	"github.com/danielhkuo/fable/engine"
	"github.com/danielhkuo/fable/metadata"
	"github.com/danielhkuo/fable/notify"
	"github.com/danielhkuo/fable/policy"
	"github.com/danielhkuo/fable/polls"
	"github.com/danielhkuo/fable/testutil"
	"github.com/danielhkuo/fable/tracking"
)

type fakeAnnouncer struct {
	mu     sync.Mutex
	nextID int64
	posted int
}

func (f *fakeAnnouncer) Announce(ctx context.Context, channelID int64, text string) error {
	return nil
}

func (f *fakeAnnouncer) PostPoll(ctx context.Context, channelID int64, poll notify.Poll) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.posted++
	return 9900 + f.nextID, nil
}

func (f *fakeAnnouncer) Pin(ctx context.Context, channelID, messageID int64) error {
	return nil
}

// testEnv bundles the wired components behind the handlers under test.
type testEnv struct {
	db        *sql.DB
	cfg       cliparse.Config
	engine    *engine.Engine
	tracker   *tracking.Tracker
	selection *polls.Selection
	rating    *polls.Rating
	meta      *metadata.Client
	policy    policy.Policy
	announcer *fakeAnnouncer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { db.Close() })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"volumeInfo":{"title":"Some Book","maturityRating":"NOT_MATURE"}}`)
	}))
	t.Cleanup(srv.Close)

	cfg := testutil.GetTestConfig()
	logger := slog.Default()
	eng := engine.New(db, "postgres")
	meta := metadata.NewClient(srv.URL, "", logger)
	pol := policy.NewDefault(db, nil)
	ann := &fakeAnnouncer{}

	return &testEnv{
		db:        db,
		cfg:       cfg,
		engine:    eng,
		tracker:   tracking.New(db, "postgres"),
		selection: polls.NewSelection(db, eng, ann, meta, pol, logger),
		rating:    polls.NewRating(db, eng, ann, meta, pol, logger, 167*time.Hour),
		meta:      meta,
		policy:    pol,
		announcer: ann,
	}
}

// serverRequest builds a request with the {id} path value and a valid
// gateway token.
func (e *testEnv) serverRequest(method, path string, body interface{}, serverID int64) *http.Request {
	req := testutil.MakeRequest(method, path, body, map[string]string{
		"X-Gateway-Token": auth.GenerateGatewayToken(serverID, e.cfg.GatewaySalt),
	})
	req.SetPathValue("id", strconv.FormatInt(serverID, 10))
	return req
}
