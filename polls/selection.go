// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package polls

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/danielhkuo/fable/engine"
	"github.com/danielhkuo/fable/metadata"
	"github.com/danielhkuo/fable/models"
	"github.com/danielhkuo/fable/notify"
	"github.com/danielhkuo/fable/policy"
)

// Selection runs the book-selection poll lifecycle: create a poll over the
// head of the queue, collect votes from gateway events, and on expiry close
// the poll and drive the winning volume through the transition engine.
type Selection struct {
	db        *sql.DB
	engine    *engine.Engine
	announcer notify.Announcer
	meta      *metadata.Client
	policy    policy.Policy
	logger    *slog.Logger
}

// NewSelection wires the selection lifecycle.
func NewSelection(db *sql.DB, eng *engine.Engine, announcer notify.Announcer, meta *metadata.Client, pol policy.Policy, logger *slog.Logger) *Selection {
	return &Selection{
		db:        db,
		engine:    eng,
		announcer: announcer,
		meta:      meta,
		policy:    pol,
		logger:    logger,
	}
}

// Create opens a selection poll over the first numOptions queued books.
// At most one poll per server may be open; a second create while one is
// pending yields StatusPollAlreadyOpen. When posting the poll to the
// gateway fails, no row is written and the create fails whole.
func (s *Selection) Create(ctx context.Context, serverID, channelID int64, numOptions int, voteWindow time.Duration, deadline *time.Time) (models.SelectionPoll, engine.Status, error) {
	// Processed rows from finished polls are history; sweep them so the
	// table holds at most the pending poll per server.
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM selection_poll WHERE server_id = $1 AND processed
	`, serverID)
	if err != nil {
		return models.SelectionPoll{}, 0, fmt.Errorf("sweep processed polls: %w", err)
	}

	var one int
	err = s.db.QueryRowContext(ctx, `
		SELECT 1 FROM selection_poll WHERE server_id = $1 AND NOT processed
	`, serverID).Scan(&one)
	if err == nil {
		return models.SelectionPoll{}, engine.StatusPollAlreadyOpen, nil
	}
	if err != sql.ErrNoRows {
		return models.SelectionPoll{}, 0, fmt.Errorf("query open poll: %w", err)
	}

	candidates, err := s.engine.QueueBooksForPoll(ctx, serverID, numOptions)
	if err != nil {
		return models.SelectionPoll{}, 0, err
	}
	if len(candidates) == 0 {
		return models.SelectionPoll{}, engine.StatusNotInQueue, nil
	}

	options := make([]string, len(candidates))
	labels := make([]string, len(candidates))
	for i, entry := range candidates {
		options[i] = entry.VolumeID
		labels[i] = s.volumeTitle(ctx, entry.VolumeID)
	}

	expiresAt := time.Now().UTC().Add(voteWindow)
	messageID, err := s.announcer.PostPoll(ctx, channelID, notify.Poll{
		Question: "Which book should we read next?",
		Options:  labels,
		Duration: voteWindow,
	})
	if err != nil {
		return models.SelectionPoll{}, 0, fmt.Errorf("post selection poll: %w", err)
	}

	encoded, err := json.Marshal(options)
	if err != nil {
		return models.SelectionPoll{}, 0, fmt.Errorf("encode poll options: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO selection_poll (message_id, channel_id, server_id, book_options, expires_at, deadline)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, messageID, channelID, serverID, string(encoded), expiresAt, deadline)
	if err != nil {
		if engine.IsUniqueViolation(err) {
			// A concurrent create won the partial-unique race. The message
			// we posted is orphaned; it expires on its own.
			s.logger.Warn("Selection poll lost create race", "server_id", serverID, "message_id", messageID)
			return models.SelectionPoll{}, engine.StatusPollAlreadyOpen, nil
		}
		return models.SelectionPoll{}, 0, fmt.Errorf("insert selection poll: %w", err)
	}

	cfg, err := s.engine.Config(ctx, serverID)
	if err == nil && cfg.PinPolls {
		if err := s.announcer.Pin(ctx, channelID, messageID); err != nil {
			s.logger.Warn("Failed to pin selection poll", "message_id", messageID, "error", err)
		}
	}

	return models.SelectionPoll{
		MessageID:   messageID,
		ChannelID:   channelID,
		ServerID:    serverID,
		BookOptions: options,
		ExpiresAt:   expiresAt,
		Deadline:    deadline,
	}, engine.StatusOK, nil
}

// Poll fetches one selection poll by message id.
func (s *Selection) Poll(ctx context.Context, messageID int64) (models.SelectionPoll, engine.Status, error) {
	var poll models.SelectionPoll
	var encoded string
	err := s.db.QueryRowContext(ctx, `
		SELECT message_id, channel_id, server_id, book_options, expires_at, deadline, processed, selected_volume_id
		FROM selection_poll
		WHERE message_id = $1
	`, messageID).Scan(
		&poll.MessageID, &poll.ChannelID, &poll.ServerID, &encoded,
		&poll.ExpiresAt, &poll.Deadline, &poll.Processed, &poll.SelectedVolumeID,
	)
	if err == sql.ErrNoRows {
		return models.SelectionPoll{}, engine.StatusNotFound, nil
	}
	if err != nil {
		return models.SelectionPoll{}, 0, fmt.Errorf("query selection poll: %w", err)
	}
	if err := json.Unmarshal([]byte(encoded), &poll.BookOptions); err != nil {
		return models.SelectionPoll{}, 0, fmt.Errorf("decode poll options: %w", err)
	}
	return poll, engine.StatusOK, nil
}

// OpenPoll fetches the server's pending poll, if one exists.
func (s *Selection) OpenPoll(ctx context.Context, serverID int64) (models.SelectionPoll, engine.Status, error) {
	var messageID int64
	err := s.db.QueryRowContext(ctx, `
		SELECT message_id FROM selection_poll WHERE server_id = $1 AND NOT processed
	`, serverID).Scan(&messageID)
	if err == sql.ErrNoRows {
		return models.SelectionPoll{}, engine.StatusNotFound, nil
	}
	if err != nil {
		return models.SelectionPoll{}, 0, fmt.Errorf("query open poll: %w", err)
	}
	return s.Poll(ctx, messageID)
}

// Expired returns pending polls whose voting window has passed.
func (s *Selection) Expired(ctx context.Context) ([]models.SelectionPoll, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id FROM selection_poll
		WHERE NOT processed AND expires_at <= $1
		ORDER BY expires_at
	`, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("query expired selection polls: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired poll id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	polls := make([]models.SelectionPoll, 0, len(ids))
	for _, id := range ids {
		poll, status, err := s.Poll(ctx, id)
		if err != nil {
			return nil, err
		}
		if status == engine.StatusOK {
			polls = append(polls, poll)
		}
	}
	return polls, nil
}

// HandleVoteAdd records one member's vote. A member votes once per poll;
// revoting overwrites. Votes for processed polls or out-of-range options
// are discarded.
func (s *Selection) HandleVoteAdd(ctx context.Context, ev models.VoteEvent) error {
	poll, status, err := s.Poll(ctx, ev.MessageID)
	if err != nil {
		return err
	}
	if status != engine.StatusOK || poll.Processed {
		s.logger.Debug("Discarding selection vote", "message_id", ev.MessageID, "user_id", ev.UserID)
		return nil
	}
	if ev.OptionIndex < 0 || ev.OptionIndex >= len(poll.BookOptions) {
		s.logger.Warn("Selection vote option out of range",
			"message_id", ev.MessageID, "option_index", ev.OptionIndex)
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO selection_vote (message_id, user_id, option_index, voted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id, user_id)
		DO UPDATE SET option_index = $3, voted_at = $4
	`, ev.MessageID, ev.UserID, ev.OptionIndex, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert selection vote: %w", err)
	}
	return nil
}

// HandleVoteRemove retracts a member's vote. Removals for processed or
// unknown polls are discarded.
func (s *Selection) HandleVoteRemove(ctx context.Context, ev models.VoteEvent) error {
	poll, status, err := s.Poll(ctx, ev.MessageID)
	if err != nil {
		return err
	}
	if status != engine.StatusOK || poll.Processed {
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM selection_vote WHERE message_id = $1 AND user_id = $2
	`, ev.MessageID, ev.UserID)
	if err != nil {
		return fmt.Errorf("delete selection vote: %w", err)
	}
	return nil
}

// Close tallies a poll and drives the outcome. The poll is marked processed
// exactly once, whatever the outcome: no votes, maturity block, a routine
// engine refusal, or a selected book. Only infrastructure failures leave
// the poll pending for the next watcher tick.
func (s *Selection) Close(ctx context.Context, poll models.SelectionPoll) error {
	if poll.Processed {
		return nil
	}

	counts := make([]int, len(poll.BookOptions))
	rows, err := s.db.QueryContext(ctx, `
		SELECT option_index, COUNT(*) FROM selection_vote
		WHERE message_id = $1
		GROUP BY option_index
	`, poll.MessageID)
	if err != nil {
		return fmt.Errorf("tally selection votes: %w", err)
	}
	total := 0
	for rows.Next() {
		var idx, n int
		if err := rows.Scan(&idx, &n); err != nil {
			rows.Close()
			return fmt.Errorf("scan vote tally: %w", err)
		}
		if idx >= 0 && idx < len(counts) {
			counts[idx] = n
			total += n
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if total == 0 {
		claimed, err := s.markProcessed(ctx, poll.MessageID, nil)
		if err != nil || !claimed {
			return err
		}
		s.announce(ctx, poll.ChannelID, "The book poll closed with no votes. The queue is unchanged.")
		return nil
	}

	// Ties break toward the earlier-listed option, i.e. the book closer to
	// the front of the queue.
	winner := 0
	for i, n := range counts {
		if n > counts[winner] {
			winner = i
		}
	}
	volumeID := poll.BookOptions[winner]
	title := s.volumeTitle(ctx, volumeID)

	allowed, err := s.allowVolume(ctx, poll, volumeID)
	if err != nil {
		return err
	}
	if !allowed {
		claimed, err := s.markProcessed(ctx, poll.MessageID, nil)
		if err != nil || !claimed {
			return err
		}
		s.announce(ctx, poll.ChannelID, fmt.Sprintf(
			"%s won the poll but can't be announced here. Ask an admin to adjust the server's content settings.", title))
		return nil
	}

	announceChannel := poll.ChannelID
	cfg, err := s.engine.Config(ctx, poll.ServerID)
	if err != nil {
		return err
	}
	if cfg.AnnouncementChannelID != nil {
		announceChannel = *cfg.AnnouncementChannelID
	}

	res, err := s.engine.SelectFromQueue(ctx, poll.ServerID, volumeID, &announceChannel, poll.Deadline)
	if err != nil {
		return err
	}

	switch res.Status {
	case engine.StatusOK:
		claimed, err := s.markProcessed(ctx, poll.MessageID, &volumeID)
		if err != nil || !claimed {
			return err
		}
		msg := fmt.Sprintf("The votes are in! Next up: %s (%d votes).", title, counts[winner])
		if res.Deadline != nil {
			msg += fmt.Sprintf(" Finish by %s.", res.Deadline.Format("January 2, 2006"))
		}
		s.announce(ctx, announceChannel, msg)
		if cfg.PinPolls {
			if err := s.announcer.Pin(ctx, poll.ChannelID, poll.MessageID); err != nil {
				s.logger.Warn("Failed to pin closed poll", "message_id", poll.MessageID, "error", err)
			}
		}
	case engine.StatusAlreadyReading:
		// A book was picked by hand while the poll ran. The poll result is
		// void, never retried.
		claimed, err := s.markProcessed(ctx, poll.MessageID, nil)
		if err != nil || !claimed {
			return err
		}
		s.announce(ctx, poll.ChannelID, fmt.Sprintf(
			"%s won the poll, but a current book was already set. The queue is unchanged.", title))
	case engine.StatusNotInQueue:
		claimed, err := s.markProcessed(ctx, poll.MessageID, nil)
		if err != nil || !claimed {
			return err
		}
		s.announce(ctx, poll.ChannelID, fmt.Sprintf(
			"%s won the poll but is no longer in the queue.", title))
	default:
		return fmt.Errorf("unexpected select status %s closing poll %d", res.Status, poll.MessageID)
	}
	return nil
}

// markProcessed claims the poll for this closer. A second close working
// from a stale snapshot affects zero rows and reports false; the caller
// stops there instead of re-announcing or overwriting the recorded result.
func (s *Selection) markProcessed(ctx context.Context, messageID int64, selected *string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE selection_poll SET processed = TRUE, selected_volume_id = $2
		WHERE message_id = $1 AND NOT processed
	`, messageID, selected)
	if err != nil {
		return false, fmt.Errorf("mark poll processed: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Selection) allowVolume(ctx context.Context, poll models.SelectionPoll, volumeID string) (bool, error) {
	vol, err := s.meta.Volume(ctx, volumeID)
	if err != nil {
		// The volume was vetted when it entered the queue; a lookup failure
		// at close time does not block the selection.
		s.logger.Warn("Volume lookup failed during poll close", "volume_id", volumeID, "error", err)
		return true, nil
	}
	return s.policy.AllowVolume(ctx, poll.ServerID, poll.ChannelID, vol.Mature)
}

func (s *Selection) volumeTitle(ctx context.Context, volumeID string) string {
	vol, err := s.meta.Volume(ctx, volumeID)
	if err != nil {
		return metadata.FallbackTitle(volumeID)
	}
	title := vol.DisplayTitle()
	if len(vol.Authors) > 0 {
		title += " by " + strings.Join(vol.Authors, ", ")
	}
	return title
}

func (s *Selection) announce(ctx context.Context, channelID int64, text string) {
	if err := s.announcer.Announce(ctx, channelID, text); err != nil {
		s.logger.Warn("Announcement failed", "channel_id", channelID, "error", err)
	}
}
