// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package router assembles the HTTP mux: handler construction, route
// patterns, and the logging wrapper on every route.
package router
