// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP helpers shared by all handlers.

  - WithLogging: request start/completion logging via slog
  - JSONResponse / ErrorResponse: JSON body writers
  - ParseJSONBody: request body decoding

The command surface is server-to-server (only the gateway calls it), so
there is no CORS handling here.
*/
package middleware
