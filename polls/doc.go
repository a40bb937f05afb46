// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package polls implements the two poll lifecycles.

Selection: at most one poll per server may be pending (a storage-level
partial unique index backs this up). Votes upsert per member. On expiry the
poll is closed: votes are tallied, ties break toward the earlier-listed
option, and the winner is driven through the transition engine. The poll is
marked processed exactly once regardless of outcome, so a void result (no
votes, book already picked by hand, winner left the queue) is final and
never retried.

Rating: a 1-5 poll opened when a book finishes. Votes are live ratings,
written through the engine as they arrive, so the completed book's
aggregate never waits for the poll to close. Close only flips the processed
flag and announces the final numbers.

Both lifecycles discard events for processed or unknown polls silently;
late gateway deliveries are routine, not errors.
*/
package polls
