// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package engine is the transactional transition engine for the book
lifecycle: queued → current → completed → rated.

# Operations

The three lifecycle-defining operations:

	res, err := eng.SelectFromQueue(ctx, serverID, volumeID, channel, deadline)
	res, err := eng.FinishCurrentBook(ctx, serverID)
	res, err := eng.RemoveCurrentBook(ctx, serverID)

plus queue maintenance (AddToQueue, RemoveFromQueue, ListQueue,
RandomQueueBook, QueueBooksForPoll) and the rating write path
(UpsertRating, RemoveRating) with synchronous aggregate recomputation.

# Outcomes, Not Errors

Every operation returns a result struct whose Status discriminates the
expected conditions - StatusNoCurrentBook, StatusAlreadyReading,
StatusNotInQueue, StatusAlreadyQueued, StatusNotFound - from success. The
error return carries infrastructure failures only. Watchers and manual
commands both branch on Status and treat every value as routine.

# Locking

Each operation is one transaction: acquire a row lock (current_book row,
or the server row for queue mutations), read, mutate, commit. On Postgres
this is SELECT ... FOR UPDATE; on SQLite the single-writer transaction
model provides the same serialization. Two concurrent finishes of the same
server's book produce exactly one StatusOK and one StatusNoCurrentBook.

# Maintained Invariants

  - at most one current book per server (primary key + lock)
  - queue positions dense 1..N in (position, added_at) order after every
    removal (renumberQueue)
  - completed_book.average_rating/total_ratings always equal the AVG/COUNT
    of live rating rows (recomputeAggregates on every rating write)
*/
package engine
