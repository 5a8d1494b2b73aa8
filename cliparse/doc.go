// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles configuration parsing from CLI flags and environment.

# Configuration Sources

Configuration is loaded in order of precedence:

 1. Command-line flags (highest priority)
 2. Environment variables
 3. A dotenv file (default .env, ignored when missing)
 4. Default values (lowest priority)

# Usage

	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}

# Flags

	-p, --port            Server port (default: 3318)
	-d, --database-url    Database connection string
	-t, --database-type   sqlite or postgres (default: sqlite)
	--base-url            Public URL used to build join links
	--token-salt          Participant token HMAC secret
	--code-salt           Join code HMAC secret
	--log-level           debug, info, warn, error
	--log-format          text, json, auto
	--join-rate           Joins per minute per client IP (default: 30)
	--join-burst          Join burst per client IP (default: 10)
	--env-file            Dotenv file to load (default: .env)

# Environment Variables

	PORT, DATABASE_URL, DATABASE_TYPE, BASE_URL, TOKEN_SALT, JOIN_CODE_SALT,
	LOG_LEVEL, LOG_FORMAT, JOIN_RATE_PER_MINUTE, JOIN_BURST

TOKEN_SALT and JOIN_CODE_SALT are required; prefer the environment over
flags for them so they do not show up in process listings.
*/
package cliparse
