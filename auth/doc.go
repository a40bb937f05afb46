// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides gateway authentication for the command surface.

The gateway presents an X-Gateway-Token header on every command-surface
request. Tokens are HMAC-SHA256 over the server id with a shared salt, so
they are deterministic, verifiable, and require no token storage:

	token := auth.GenerateGatewayToken(serverID, cfg.GatewaySalt)
	err := auth.ValidateGatewayToken(serverID, token, cfg.GatewaySalt)

Validation uses constant-time comparison.
*/
package auth
