// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package polls_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/danielhkuo/fable/metadata"
	"github.com/danielhkuo/fable/notify"
)

// fakeAnnouncer records announcements and hands out sequential message ids.
type fakeAnnouncer struct {
	mu       sync.Mutex
	nextID   int64
	messages []string
	polls    []notify.Poll
	pins     []int64
	failPost bool
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
	if f.failPost {
		return 0, fmt.Errorf("gateway unavailable")
	}
	f.nextID++
	f.polls = append(f.polls, poll)
	return 9000 + f.nextID, nil
}

func (f *fakeAnnouncer) Pin(ctx context.Context, channelID, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pins = append(f.pins, messageID)
	return nil
}

func (f *fakeAnnouncer) lastMessage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return ""
	}
	return f.messages[len(f.messages)-1]
}

// newTestMeta serves canned volume metadata: every id resolves to "Title
// <id>", non-mature.
func newTestMeta(t *testing.T) *metadata.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"id":"x","volumeInfo":{"title":"Title %s","authors":["Author"],"maturityRating":"NOT_MATURE"}}`,
			r.URL.Path[len("/volumes/"):])
	}))
	t.Cleanup(srv.Close)
	return metadata.NewClient(srv.URL, "", slog.Default())
}
