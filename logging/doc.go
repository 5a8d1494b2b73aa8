// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package logging configures the process-wide slog logger.

Everything else logs through the slog package functions with key/value
attributes:

	slog.Info("participant joined", "session_id", id, "participant_id", pid)

Setup picks the level from config and the format from LOG_FORMAT: text,
json, or auto (text on a terminal, JSON when piped to a collector).
*/
package logging
