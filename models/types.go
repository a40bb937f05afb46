// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Poll kind constants
const (
	PollKindSelection = "selection"
	PollKindRating    = "rating"
)

// Vote event type constants
const (
	VoteAdd    = "vote_add"
	VoteRemove = "vote_remove"
)

// Rating bounds for rating polls (option index 0 maps to RatingMin).
const (
	RatingMin = 1
	RatingMax = 5
)

// Per-user caps on personal tracking lists.
const (
	ReadingListLimit = 5
	FavoritesLimit   = 5
)

// ProgressTextLimit caps /progress updates, matching the gateway's own cap.
const ProgressTextLimit = 280

// Request types

type SelectBookRequest struct {
	VolumeID            string     `json:"volume_id"`
	Random              bool       `json:"random,omitempty"`
	Deadline            *time.Time `json:"deadline,omitempty"`
	AnnouncementChannel *int64     `json:"announcement_channel_id,omitempty"`
}

type QueueAddRequest struct {
	VolumeID    string `json:"volume_id"`
	SuggestedBy int64  `json:"suggested_by"`
	Username    string `json:"username"`
}

type CreateSelectionPollRequest struct {
	ChannelID  int64      `json:"channel_id"`
	NumOptions int        `json:"num_options"`
	VoteHours  int        `json:"vote_hours"`
	Deadline   *time.Time `json:"deadline,omitempty"`
}

type UpdateConfigRequest struct {
	ServerName            string `json:"server_name,omitempty"`
	AnnouncementChannelID *int64 `json:"announcement_channel_id"`
	QueueEnabled          *bool  `json:"queue_enabled"`
	PinPolls              *bool  `json:"pin_polls"`
	AutoFinishOnDeadline  *bool  `json:"auto_finish_on_deadline"`
	MatureEnabled         *bool  `json:"mature_enabled"`
}

type PutRatingRequest struct {
	UserID int64 `json:"user_id"`
	Rating int   `json:"rating"`
}

type ReadingListRequest struct {
	VolumeID string `json:"volume_id"`
}

type FavoriteRequest struct {
	VolumeID  string `json:"volume_id"`
	NumberOne bool   `json:"number_one,omitempty"`
}

type ProgressRequest struct {
	Text string `json:"text"`
}

// Domain types

type ServerConfig struct {
	ServerID              int64  `json:"server_id"`
	AnnouncementChannelID *int64 `json:"announcement_channel_id,omitempty"`
	QueueEnabled          bool   `json:"queue_enabled"`
	PinPolls              bool   `json:"pin_polls"`
	AutoFinishOnDeadline  bool   `json:"auto_finish_on_deadline"`
	MatureEnabled         bool   `json:"mature_enabled"`
}

type QueueEntry struct {
	ServerID    int64     `json:"server_id"`
	VolumeID    string    `json:"volume_id"`
	SuggestedBy int64     `json:"suggested_by"`
	Position    int       `json:"position"`
	AddedAt     time.Time `json:"added_at"`
}

type CurrentBook struct {
	ServerID              int64      `json:"server_id"`
	VolumeID              string     `json:"volume_id"`
	SuggestedBy           int64      `json:"suggested_by"`
	StartedAt             time.Time  `json:"started_at"`
	Deadline              *time.Time `json:"deadline,omitempty"`
	AnnouncementChannelID *int64     `json:"announcement_channel_id,omitempty"`
	DiscussionChannelID   *int64     `json:"discussion_channel_id,omitempty"`
}

type CompletedBook struct {
	CompletedID   string    `json:"completed_id"`
	ServerID      int64     `json:"server_id"`
	VolumeID      string    `json:"volume_id"`
	SuggestedBy   int64     `json:"suggested_by"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
	AverageRating *float64  `json:"average_rating,omitempty"`
	TotalRatings  int       `json:"total_ratings"`
}

type SelectionPoll struct {
	MessageID        int64      `json:"message_id"`
	ChannelID        int64      `json:"channel_id"`
	ServerID         int64      `json:"server_id"`
	BookOptions      []string   `json:"book_options"`
	ExpiresAt        time.Time  `json:"expires_at"`
	Deadline         *time.Time `json:"deadline,omitempty"`
	Processed        bool       `json:"processed"`
	SelectedVolumeID *string    `json:"selected_volume_id,omitempty"`
}

type RatingPoll struct {
	MessageID   int64     `json:"message_id"`
	ChannelID   int64     `json:"channel_id"`
	ServerID    int64     `json:"server_id"`
	CompletedID string    `json:"completed_id"`
	ExpiresAt   time.Time `json:"expires_at"`
	Processed   bool      `json:"processed"`
}

// VoteEvent is one gateway notification about a poll vote. ServerID and
// OptionIndex are as reported by the gateway; the message id decides which
// poll (if any) the event belongs to.
type VoteEvent struct {
	Type        string `json:"type"`
	MessageID   int64  `json:"message_id"`
	ChannelID   int64  `json:"channel_id"`
	ServerID    int64  `json:"server_id"`
	UserID      int64  `json:"user_id"`
	Username    string `json:"username,omitempty"`
	OptionIndex int    `json:"option_index"`
}

type ReadingListEntry struct {
	VolumeID string    `json:"volume_id"`
	AddedAt  time.Time `json:"added_at"`
}

type FavoriteEntry struct {
	VolumeID  string    `json:"volume_id"`
	NumberOne bool      `json:"number_one"`
	AddedAt   time.Time `json:"added_at"`
}

type ProgressEntry struct {
	UserID    int64     `json:"user_id"`
	Text      *string   `json:"text,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ServerStats struct {
	ServerID       int64    `json:"server_id"`
	BooksCompleted int      `json:"books_completed"`
	QueueLength    int      `json:"queue_length"`
	TotalRatings   int      `json:"total_ratings"`
	AverageRating  *float64 `json:"average_rating,omitempty"`
}

// Response types

type SelectBookResponse struct {
	VolumeID    string     `json:"volume_id"`
	SuggestedBy int64      `json:"suggested_by"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

type FinishBookResponse struct {
	CompletedID string    `json:"completed_id"`
	VolumeID    string    `json:"volume_id"`
	StartedAt   time.Time `json:"started_at"`
}

type CreateSelectionPollResponse struct {
	MessageID   int64     `json:"message_id"`
	BookOptions []string  `json:"book_options"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
