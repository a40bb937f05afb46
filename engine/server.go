// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/danielhkuo/fable/models"
)

// EnsureUser upserts a gateway user identity, refreshing the username.
func (e *Engine) EnsureUser(ctx context.Context, userID int64, username string) error {
	_, err := e.db.ExecContext(ctx, `
		INSERT INTO club_user (user_id, username)
		VALUES ($1, $2)
		ON CONFLICT (user_id)
		DO UPDATE SET username = $2, updated_at = $3
	`, userID, username, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("ensure user %d: %w", userID, err)
	}
	return nil
}

// EnsureServer registers a server row on first sight. An empty name keeps
// whatever name the gateway reported before; server_config carries a
// foreign key to this row, so every command-surface write path registers
// the server before touching it.
func (e *Engine) EnsureServer(ctx context.Context, serverID int64, name string) error {
	if name == "" {
		_, err := e.db.ExecContext(ctx, `
			INSERT INTO server (server_id, server_name)
			VALUES ($1, '')
			ON CONFLICT (server_id) DO NOTHING
		`, serverID)
		if err != nil {
			return fmt.Errorf("ensure server %d: %w", serverID, err)
		}
		return nil
	}
	_, err := e.db.ExecContext(ctx, `
		INSERT INTO server (server_id, server_name)
		VALUES ($1, $2)
		ON CONFLICT (server_id)
		DO UPDATE SET server_name = $2, updated_at = $3
	`, serverID, name, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("ensure server %d: %w", serverID, err)
	}
	return nil
}

// CurrentBook returns the server's current book, if any.
func (e *Engine) CurrentBook(ctx context.Context, serverID int64) (models.CurrentBook, Status, error) {
	var book models.CurrentBook
	err := e.db.QueryRowContext(ctx, `
		SELECT server_id, volume_id, suggested_by, started_at, deadline, announcement_channel_id, discussion_channel_id
		FROM current_book
		WHERE server_id = $1
	`, serverID).Scan(
		&book.ServerID, &book.VolumeID, &book.SuggestedBy, &book.StartedAt,
		&book.Deadline, &book.AnnouncementChannelID, &book.DiscussionChannelID,
	)
	if err == sql.ErrNoRows {
		return models.CurrentBook{}, StatusNoCurrentBook, nil
	}
	if err != nil {
		return models.CurrentBook{}, 0, fmt.Errorf("query current book: %w", err)
	}
	return book, StatusOK, nil
}

// Config returns the server's configuration, falling back to defaults when
// no row exists yet.
func (e *Engine) Config(ctx context.Context, serverID int64) (models.ServerConfig, error) {
	cfg := models.ServerConfig{
		ServerID:     serverID,
		QueueEnabled: true,
		PinPolls:     true,
	}
	err := e.db.QueryRowContext(ctx, `
		SELECT announcement_channel_id, queue_enabled, pin_polls, auto_finish_on_deadline, mature_enabled
		FROM server_config
		WHERE server_id = $1
	`, serverID).Scan(
		&cfg.AnnouncementChannelID, &cfg.QueueEnabled, &cfg.PinPolls,
		&cfg.AutoFinishOnDeadline, &cfg.MatureEnabled,
	)
	if err == sql.ErrNoRows {
		return cfg, nil
	}
	if err != nil {
		return models.ServerConfig{}, fmt.Errorf("query server config: %w", err)
	}
	return cfg, nil
}

// SaveConfig upserts the full configuration row.
func (e *Engine) SaveConfig(ctx context.Context, cfg models.ServerConfig) error {
	_, err := e.db.ExecContext(ctx, `
		INSERT INTO server_config (server_id, announcement_channel_id, queue_enabled, pin_polls, auto_finish_on_deadline, mature_enabled, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (server_id)
		DO UPDATE SET
			announcement_channel_id = $2,
			queue_enabled = $3,
			pin_polls = $4,
			auto_finish_on_deadline = $5,
			mature_enabled = $6,
			updated_at = $7
	`, cfg.ServerID, cfg.AnnouncementChannelID, cfg.QueueEnabled, cfg.PinPolls,
		cfg.AutoFinishOnDeadline, cfg.MatureEnabled, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save server config: %w", err)
	}
	return nil
}

// Stats aggregates a server's reading history for the stats view.
func (e *Engine) Stats(ctx context.Context, serverID int64) (models.ServerStats, error) {
	stats := models.ServerStats{ServerID: serverID}

	err := e.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM completed_book WHERE server_id = $1),
			(SELECT COUNT(*) FROM book_queue WHERE server_id = $1),
			(SELECT COUNT(*) FROM book_rating br JOIN completed_book cb ON cb.completed_id = br.completed_id WHERE cb.server_id = $1),
			(SELECT AVG(CAST(br.rating AS REAL)) FROM book_rating br JOIN completed_book cb ON cb.completed_id = br.completed_id WHERE cb.server_id = $1)
	`, serverID).Scan(&stats.BooksCompleted, &stats.QueueLength, &stats.TotalRatings, &stats.AverageRating)
	if err != nil {
		return models.ServerStats{}, fmt.Errorf("query server stats: %w", err)
	}
	return stats, nil
}
