// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package policy

import (
	"context"
	"database/sql"
	"fmt"
)

// Policy gates what may be announced and whose rating votes count. Denials
// are answers, not errors: callers drop the action quietly.
type Policy interface {
	// AllowVolume reports whether a volume flagged mature may be surfaced
	// in the given server and channel.
	AllowVolume(ctx context.Context, serverID, channelID int64, mature bool) (bool, error)

	// AllowRater reports whether a vote from this user should count toward
	// a book's rating.
	AllowRater(ctx context.Context, serverID, userID int64) (bool, error)
}

// ChannelFlagFunc reports whether a gateway channel is age-restricted.
type ChannelFlagFunc func(ctx context.Context, channelID int64) (bool, error)

// Default enforces the server's mature_enabled flag, combined with the
// gateway's per-channel age restriction when a checker is wired.
type Default struct {
	db          *sql.DB
	channelFlag ChannelFlagFunc
}

// NewDefault creates the standard policy. channelFlag may be nil, in which
// case only the server-level flag is consulted.
func NewDefault(db *sql.DB, channelFlag ChannelFlagFunc) *Default {
	return &Default{db: db, channelFlag: channelFlag}
}

func (p *Default) AllowVolume(ctx context.Context, serverID, channelID int64, mature bool) (bool, error) {
	if !mature {
		return true, nil
	}

	var enabled bool
	err := p.db.QueryRowContext(ctx,
		`SELECT mature_enabled FROM server_config WHERE server_id = $1`,
		serverID).Scan(&enabled)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query mature flag: %w", err)
	}
	if !enabled {
		return false, nil
	}

	if p.channelFlag != nil {
		restricted, err := p.channelFlag(ctx, channelID)
		if err != nil {
			// Can't verify the channel, so don't surface the volume.
			return false, fmt.Errorf("check channel restriction: %w", err)
		}
		return restricted, nil
	}
	return true, nil
}

// AllowRater rejects synthetic gateway identities (webhooks and system
// messages report non-positive user ids). Real members always count.
func (p *Default) AllowRater(ctx context.Context, serverID, userID int64) (bool, error) {
	return userID > 0, nil
}
