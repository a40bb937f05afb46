// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines the shared domain, request, and response types for
the fable server.

Domain types mirror the persistent rows (QueueEntry, CurrentBook,
CompletedBook, SelectionPoll, RatingPoll); request/response types shape the
JSON exchanged with the gateway over the command surface.

VoteEvent is the wire format of the gateway's vote feed, consumed by the
events package.
*/
package models
