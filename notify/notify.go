// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Poll is a native gateway poll to post: a question with ordered answer
// options, open for Duration.
type Poll struct {
	Question string
	Options  []string
	Duration time.Duration
}

// Announcer posts messages, polls, and pins to the chat gateway. Failures
// here never roll back a committed lifecycle transition; callers log and
// move on.
type Announcer interface {
	Announce(ctx context.Context, channelID int64, text string) error
	PostPoll(ctx context.Context, channelID int64, poll Poll) (int64, error)
	Pin(ctx context.Context, channelID, messageID int64) error
}

// Gateway announces over the gateway's HTTP API.
type Gateway struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewGateway creates an HTTP announcer for the given gateway API root.
func NewGateway(baseURL string, logger *slog.Logger) *Gateway {
	return &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

func (g *Gateway) Announce(ctx context.Context, channelID int64, text string) error {
	body := map[string]interface{}{
		"channel_id": channelID,
		"content":    text,
	}
	var resp struct{}
	return g.post(ctx, "/messages", body, &resp)
}

func (g *Gateway) PostPoll(ctx context.Context, channelID int64, poll Poll) (int64, error) {
	body := map[string]interface{}{
		"channel_id":       channelID,
		"question":         poll.Question,
		"options":          poll.Options,
		"duration_seconds": int64(poll.Duration.Seconds()),
	}
	var resp struct {
		MessageID int64 `json:"message_id"`
	}
	if err := g.post(ctx, "/polls", body, &resp); err != nil {
		return 0, err
	}
	if resp.MessageID == 0 {
		return 0, fmt.Errorf("gateway returned no message id for poll")
	}
	return resp.MessageID, nil
}

func (g *Gateway) Pin(ctx context.Context, channelID, messageID int64) error {
	body := map[string]interface{}{
		"channel_id": channelID,
		"message_id": messageID,
	}
	var resp struct{}
	return g.post(ctx, "/pins", body, &resp)
}

func (g *Gateway) post(ctx context.Context, path string, body, out interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// A 2xx with an empty body is a fine answer to a fire-and-forget
		// post; callers that need fields check them after decoding.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode gateway %s response: %w", path, err)
	}
	return nil
}

// Log is an Announcer that only logs, for local runs and tests. PostPoll
// hands out synthetic negative message ids so they can never collide with
// real gateway ids.
type Log struct {
	logger *slog.Logger
	nextID atomic.Int64
}

// NewLog creates a log-only announcer.
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Announce(ctx context.Context, channelID int64, text string) error {
	l.logger.Info("Announce", "channel_id", channelID, "text", text)
	return nil
}

func (l *Log) PostPoll(ctx context.Context, channelID int64, poll Poll) (int64, error) {
	id := -l.nextID.Add(1)
	l.logger.Info("Post poll",
		"channel_id", channelID,
		"message_id", id,
		"question", poll.Question,
		"options", poll.Options,
		"duration", poll.Duration)
	return id, nil
}

func (l *Log) Pin(ctx context.Context, channelID, messageID int64) error {
	l.logger.Info("Pin message", "channel_id", channelID, "message_id", messageID)
	return nil
}
