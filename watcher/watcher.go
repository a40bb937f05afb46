// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package watcher

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielhkuo/fable/engine"
	"github.com/danielhkuo/fable/polls"
)

// Deadline periodically finishes overdue current books on servers that
// opted in, opening a rating poll for each, and closes expired rating
// polls. One server's failure never aborts the rest of a tick.
type Deadline struct {
	db       *sql.DB
	engine   *engine.Engine
	rating   *polls.Rating
	logger   *slog.Logger
	interval time.Duration
}

// NewDeadline creates the deadline watcher. interval is 10 minutes in
// production.
func NewDeadline(db *sql.DB, eng *engine.Engine, rating *polls.Rating, logger *slog.Logger, interval time.Duration) *Deadline {
	return &Deadline{db: db, engine: eng, rating: rating, logger: logger, interval: interval}
}

// Run ticks until ctx is cancelled. Overlapping work is safe: every
// mutation goes through lock-guarded engine transactions, so a slow tick
// racing the next one produces routine expected-condition losses, not
// double transitions.
func (w *Deadline) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("Deadline watcher started", "interval", w.interval)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Deadline watcher stopped")
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one pass. Exported so tests and operators can force a sweep.
func (w *Deadline) Tick(ctx context.Context) {
	overdue, err := w.overdueServers(ctx)
	if err != nil {
		w.logger.Error("Failed to query overdue books", "error", err)
	}
	for _, srv := range overdue {
		if err := w.finishServer(ctx, srv); err != nil {
			w.logger.Error("Failed to auto-finish book", "server_id", srv.serverID, "error", err)
		}
	}

	expired, err := w.rating.Expired(ctx)
	if err != nil {
		w.logger.Error("Failed to query expired rating polls", "error", err)
		return
	}
	for _, poll := range expired {
		if err := w.rating.Close(ctx, poll); err != nil {
			w.logger.Error("Failed to close rating poll", "message_id", poll.MessageID, "error", err)
		}
	}
}

type overdueServer struct {
	serverID int64
	channel  *int64
}

func (w *Deadline) overdueServers(ctx context.Context) ([]overdueServer, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT cb.server_id,
		       COALESCE(sc.announcement_channel_id, cb.announcement_channel_id, cb.discussion_channel_id)
		FROM current_book cb
		JOIN server_config sc ON sc.server_id = cb.server_id
		WHERE cb.deadline IS NOT NULL
		  AND cb.deadline <= $1
		  AND sc.auto_finish_on_deadline
	`, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("query overdue books: %w", err)
	}
	defer rows.Close()

	servers := []overdueServer{}
	for rows.Next() {
		var srv overdueServer
		if err := rows.Scan(&srv.serverID, &srv.channel); err != nil {
			return nil, fmt.Errorf("scan overdue server: %w", err)
		}
		servers = append(servers, srv)
	}
	return servers, rows.Err()
}

func (w *Deadline) finishServer(ctx context.Context, srv overdueServer) error {
	res, err := w.engine.FinishCurrentBook(ctx, srv.serverID)
	if err != nil {
		return err
	}
	if res.Status != engine.StatusOK {
		// Someone finished or removed the book between the sweep query and
		// our transaction. Routine.
		return nil
	}
	w.logger.Info("Auto-finished overdue book",
		"server_id", srv.serverID, "volume_id", res.VolumeID, "completed_id", res.CompletedID)

	if srv.channel == nil {
		w.logger.Warn("No channel for rating poll", "server_id", srv.serverID)
		return nil
	}
	// The finish is committed; a poll failure loses only the poll.
	if _, _, err := w.rating.Open(ctx, srv.serverID, res.CompletedID, *srv.channel); err != nil {
		w.logger.Error("Failed to open rating poll",
			"server_id", srv.serverID, "completed_id", res.CompletedID, "error", err)
	}
	return nil
}

// SelectionPolls closes expired selection polls. Failures are isolated per
// poll; a poll that fails to close stays pending and is retried next tick.
type SelectionPolls struct {
	selection *polls.Selection
	logger    *slog.Logger
	interval  time.Duration
}

// NewSelectionPolls creates the selection poll watcher. interval is one
// minute in production.
func NewSelectionPolls(selection *polls.Selection, logger *slog.Logger, interval time.Duration) *SelectionPolls {
	return &SelectionPolls{selection: selection, logger: logger, interval: interval}
}

// Run ticks until ctx is cancelled.
func (w *SelectionPolls) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("Selection poll watcher started", "interval", w.interval)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Selection poll watcher stopped")
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one pass.
func (w *SelectionPolls) Tick(ctx context.Context) {
	expired, err := w.selection.Expired(ctx)
	if err != nil {
		w.logger.Error("Failed to query expired selection polls", "error", err)
		return
	}
	for _, poll := range expired {
		if err := w.selection.Close(ctx, poll); err != nil {
			w.logger.Error("Failed to close selection poll", "message_id", poll.MessageID, "error", err)
		}
	}
}
