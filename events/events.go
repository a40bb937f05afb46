// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/danielhkuo/fable/engine"
	"github.com/danielhkuo/fable/models"
	"github.com/danielhkuo/fable/polls"
)

// Dispatcher routes gateway vote events to the poll lifecycle that owns
// the message id. Events for unknown messages are ignored; the gateway
// reports votes on every poll in the server, not just ours.
type Dispatcher struct {
	selection *polls.Selection
	rating    *polls.Rating
	logger    *slog.Logger
}

// NewDispatcher wires the dispatcher.
func NewDispatcher(selection *polls.Selection, rating *polls.Rating, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{selection: selection, rating: rating, logger: logger}
}

// Dispatch handles one vote event. The returned error is always an
// infrastructure failure; unknown messages, unknown event types, and
// routine discards are not errors.
func (d *Dispatcher) Dispatch(ctx context.Context, ev models.VoteEvent) error {
	if ev.Type != models.VoteAdd && ev.Type != models.VoteRemove {
		d.logger.Warn("Unknown vote event type", "type", ev.Type, "message_id", ev.MessageID)
		return nil
	}

	if _, status, err := d.selection.Poll(ctx, ev.MessageID); err != nil {
		return err
	} else if status == engine.StatusOK {
		if ev.Type == models.VoteAdd {
			return d.selection.HandleVoteAdd(ctx, ev)
		}
		return d.selection.HandleVoteRemove(ctx, ev)
	}

	if _, status, err := d.rating.Poll(ctx, ev.MessageID); err != nil {
		return err
	} else if status == engine.StatusOK {
		if ev.Type == models.VoteAdd {
			return d.rating.HandleVoteAdd(ctx, ev)
		}
		return d.rating.HandleVoteRemove(ctx, ev)
	}

	d.logger.Debug("Ignoring vote for unknown message", "message_id", ev.MessageID)
	return nil
}

const (
	reconnectMin = time.Second
	reconnectMax = time.Minute
)

// Consumer reads the gateway's vote event feed over a websocket and feeds
// the dispatcher. It reconnects with capped exponential backoff and never
// lets one bad event kill the loop.
type Consumer struct {
	feedURL    string
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewConsumer creates a feed consumer for the given websocket URL.
func NewConsumer(feedURL string, dispatcher *Dispatcher, logger *slog.Logger) *Consumer {
	return &Consumer{feedURL: feedURL, dispatcher: dispatcher, logger: logger}
}

// Run connects and consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	backoff := reconnectMin
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.feedURL, nil)
		if err != nil {
			c.logger.Error("Vote feed connect failed", "url", c.feedURL, "backoff", backoff, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, reconnectMax)
			continue
		}

		c.logger.Info("Vote feed connected", "url", c.feedURL)
		backoff = reconnectMin
		c.consume(ctx, conn)
	}
}

// consume reads until the connection drops or ctx is cancelled.
func (c *Consumer) consume(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("Vote feed read failed, reconnecting", "error", err)
			}
			return
		}

		var ev models.VoteEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Warn("Malformed vote event", "error", err)
			continue
		}

		if err := c.dispatcher.Dispatch(ctx, ev); err != nil {
			c.logger.Error("Failed to handle vote event",
				"type", ev.Type, "message_id", ev.MessageID, "user_id", ev.UserID, "error", err)
		}
	}
}
