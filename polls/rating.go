// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package polls

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/danielhkuo/fable/engine"
	"github.com/danielhkuo/fable/metadata"
	"github.com/danielhkuo/fable/models"
	"github.com/danielhkuo/fable/notify"
	"github.com/danielhkuo/fable/policy"
)

// Rating runs the post-completion rating poll lifecycle. Votes are live
// ratings: each add or remove writes through the engine, so the completed
// book's aggregate is current at every moment, not just at close.
type Rating struct {
	db        *sql.DB
	engine    *engine.Engine
	announcer notify.Announcer
	meta      *metadata.Client
	policy    policy.Policy
	logger    *slog.Logger
	window    time.Duration
}

// NewRating wires the rating lifecycle. window is how long the poll stays
// open, 6d23h by default (just under the gateway's 7-day poll cap).
func NewRating(db *sql.DB, eng *engine.Engine, announcer notify.Announcer, meta *metadata.Client, pol policy.Policy, logger *slog.Logger, window time.Duration) *Rating {
	return &Rating{
		db:        db,
		engine:    eng,
		announcer: announcer,
		meta:      meta,
		policy:    pol,
		logger:    logger,
		window:    window,
	}
}

// Open posts a 1-5 rating poll for a completed book and records it. A
// failure here is non-fatal to the finish transition that triggered it; the
// caller logs and moves on, and the book simply collects no poll ratings.
func (r *Rating) Open(ctx context.Context, serverID int64, completedID string, channelID int64) (models.RatingPoll, engine.Status, error) {
	completed, status, err := r.engine.CompletedBook(ctx, completedID)
	if err != nil {
		return models.RatingPoll{}, 0, err
	}
	if status != engine.StatusOK {
		return models.RatingPoll{}, status, nil
	}

	title := r.volumeTitle(ctx, completed.VolumeID)
	options := make([]string, models.RatingMax-models.RatingMin+1)
	for i := range options {
		options[i] = strconv.Itoa(models.RatingMin + i)
	}

	expiresAt := time.Now().UTC().Add(r.window)
	messageID, err := r.announcer.PostPoll(ctx, channelID, notify.Poll{
		Question: fmt.Sprintf("How would you rate %s?", title),
		Options:  options,
		Duration: r.window,
	})
	if err != nil {
		return models.RatingPoll{}, 0, fmt.Errorf("post rating poll: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO rating_poll (message_id, channel_id, server_id, completed_id, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, messageID, channelID, serverID, completedID, expiresAt)
	if err != nil {
		return models.RatingPoll{}, 0, fmt.Errorf("insert rating poll: %w", err)
	}

	cfg, err := r.engine.Config(ctx, serverID)
	if err == nil && cfg.PinPolls {
		if err := r.announcer.Pin(ctx, channelID, messageID); err != nil {
			r.logger.Warn("Failed to pin rating poll", "message_id", messageID, "error", err)
		}
	}

	return models.RatingPoll{
		MessageID:   messageID,
		ChannelID:   channelID,
		ServerID:    serverID,
		CompletedID: completedID,
		ExpiresAt:   expiresAt,
	}, engine.StatusOK, nil
}

// Poll fetches one rating poll by message id.
func (r *Rating) Poll(ctx context.Context, messageID int64) (models.RatingPoll, engine.Status, error) {
	var poll models.RatingPoll
	err := r.db.QueryRowContext(ctx, `
		SELECT message_id, channel_id, server_id, completed_id, expires_at, processed
		FROM rating_poll
		WHERE message_id = $1
	`, messageID).Scan(
		&poll.MessageID, &poll.ChannelID, &poll.ServerID,
		&poll.CompletedID, &poll.ExpiresAt, &poll.Processed,
	)
	if err == sql.ErrNoRows {
		return models.RatingPoll{}, engine.StatusNotFound, nil
	}
	if err != nil {
		return models.RatingPoll{}, 0, fmt.Errorf("query rating poll: %w", err)
	}
	return poll, engine.StatusOK, nil
}

// Expired returns pending rating polls whose window has passed.
func (r *Rating) Expired(ctx context.Context) ([]models.RatingPoll, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT message_id, channel_id, server_id, completed_id, expires_at, processed
		FROM rating_poll
		WHERE NOT processed AND expires_at <= $1
		ORDER BY expires_at
	`, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("query expired rating polls: %w", err)
	}
	defer rows.Close()

	polls := []models.RatingPoll{}
	for rows.Next() {
		var poll models.RatingPoll
		if err := rows.Scan(
			&poll.MessageID, &poll.ChannelID, &poll.ServerID,
			&poll.CompletedID, &poll.ExpiresAt, &poll.Processed,
		); err != nil {
			return nil, fmt.Errorf("scan expired rating poll: %w", err)
		}
		polls = append(polls, poll)
	}
	return polls, rows.Err()
}

// HandleVoteAdd turns a poll vote into a live rating. Votes on processed
// polls, out-of-range options, or from policy-denied voters are dropped
// without error.
func (r *Rating) HandleVoteAdd(ctx context.Context, ev models.VoteEvent) error {
	poll, status, err := r.Poll(ctx, ev.MessageID)
	if err != nil {
		return err
	}
	if status != engine.StatusOK || poll.Processed {
		r.logger.Debug("Discarding rating vote", "message_id", ev.MessageID, "user_id", ev.UserID)
		return nil
	}

	rating := models.RatingMin + ev.OptionIndex
	if rating < models.RatingMin || rating > models.RatingMax {
		r.logger.Warn("Rating vote option out of range",
			"message_id", ev.MessageID, "option_index", ev.OptionIndex)
		return nil
	}

	allowed, err := r.policy.AllowRater(ctx, poll.ServerID, ev.UserID)
	if err != nil {
		return err
	}
	if !allowed {
		r.logger.Debug("Dropping rating vote from denied voter",
			"message_id", ev.MessageID, "user_id", ev.UserID)
		return nil
	}

	if err := r.engine.EnsureUser(ctx, ev.UserID, ev.Username); err != nil {
		return err
	}

	ratingStatus, err := r.engine.UpsertRating(ctx, ev.UserID, poll.CompletedID, rating)
	if err != nil {
		return err
	}
	if ratingStatus != engine.StatusOK {
		r.logger.Warn("Rating vote targeted missing completed book",
			"message_id", ev.MessageID, "completed_id", poll.CompletedID)
	}
	return nil
}

// HandleVoteRemove retracts a live rating. Removing a rating that was never
// recorded is routine.
func (r *Rating) HandleVoteRemove(ctx context.Context, ev models.VoteEvent) error {
	poll, status, err := r.Poll(ctx, ev.MessageID)
	if err != nil {
		return err
	}
	if status != engine.StatusOK || poll.Processed {
		return nil
	}

	_, err = r.engine.RemoveRating(ctx, ev.UserID, poll.CompletedID)
	return err
}

// Close marks the poll processed and announces the final aggregate, which
// the live write path has kept current throughout. Closing an already
// processed poll is a no-op.
func (r *Rating) Close(ctx context.Context, poll models.RatingPoll) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE rating_poll SET processed = TRUE
		WHERE message_id = $1 AND NOT processed
	`, poll.MessageID)
	if err != nil {
		return fmt.Errorf("mark rating poll processed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	completed, status, err := r.engine.CompletedBook(ctx, poll.CompletedID)
	if err != nil {
		return err
	}
	if status != engine.StatusOK {
		r.logger.Warn("Rating poll closed for missing completed book",
			"message_id", poll.MessageID, "completed_id", poll.CompletedID)
		return nil
	}

	title := r.volumeTitle(ctx, completed.VolumeID)
	var msg string
	if completed.TotalRatings == 0 || completed.AverageRating == nil {
		msg = fmt.Sprintf("The rating poll for %s closed with no ratings.", title)
	} else {
		msg = fmt.Sprintf("%s finished with an average rating of %.2f from %d readers.",
			title, *completed.AverageRating, completed.TotalRatings)
	}
	if err := r.announcer.Announce(ctx, poll.ChannelID, msg); err != nil {
		r.logger.Warn("Failed to announce rating result", "message_id", poll.MessageID, "error", err)
	}
	return nil
}

func (r *Rating) volumeTitle(ctx context.Context, volumeID string) string {
	vol, err := r.meta.Volume(ctx, volumeID)
	if err != nil {
		return metadata.FallbackTitle(volumeID)
	}
	return vol.DisplayTitle()
}
