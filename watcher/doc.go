// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package watcher runs the two background sweeps: the deadline watcher
// (auto-finish overdue books, close expired rating polls) and the selection
// poll watcher (close expired selection polls). Both are plain ticker
// goroutines with context cancellation; per-item failures are logged and
// skipped so one bad server never stalls the rest.
package watcher
