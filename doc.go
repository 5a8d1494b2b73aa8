// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the connected-mate API server.

connected-mate runs live group sessions: a host opens a session, people join
through a short code under the anonymity level the host picked, post
contributions and spend a fixed number of votes on each other or on those
contributions. The tally ranks whatever received votes.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=mate.db TOKEN_SALT=... JOIN_CODE_SALT=... go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..."

A .env file in the working directory is loaded when present.

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite path or PostgreSQL connection string
  - TOKEN_SALT (--token-salt): Secret for participant token hashes
  - JOIN_CODE_SALT (--code-salt): Secret for join code generation

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - BASE_URL (--base-url): Public URL used in join links
  - LOG_LEVEL (--log-level): debug, info, warn or error (default: info)
  - LOG_FORMAT (--log-format): text, json or auto (default: auto)
  - JOIN_RATE_PER_MINUTE, JOIN_BURST: Per-IP join rate limit
  - RATE_LIMIT_SALT (--rate-limit-salt): Key for the limiter's IP hashes
    (derived from TOKEN_SALT when unset)
  - TRUST_PROXY (--trust-proxy): Take client IPs from X-Forwarded-For.
    Only set this when the server runs behind a reverse proxy that
    overwrites the header.

# Architecture

The server uses a handler-based architecture with dependency injection:

  - lifecycle: Session state machine (draft, active, ended)
  - registry: Capacity-gated joins and participant tokens
  - identity: What others see of a participant at each anonymity level
  - tally: Votes, quotas, contributions and ranking
  - events: Realtime refresh hints over websockets
  - handlers: HTTP request handlers
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, validation, rate limiting, JSON helpers
  - metrics: Prometheus collectors served on /metrics
  - logging: slog handler setup
  - models: Domain, request and response types
  - auth: Token, code and ID generation
  - db: Connection and schema creation
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
