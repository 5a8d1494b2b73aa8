// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens the database and creates the schema.

# Connecting

Open picks the driver for the configured type and pings until the store
answers, backing off between attempts:

	conn, err := db.Open(ctx, db.TypePostgres, cfg.DatabaseURL)

Postgres goes through lib/pq. SQLite goes through the pure-Go
modernc.org/sqlite driver with foreign keys on and a busy timeout; it is
limited to one open connection, which serializes writers.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(ctx, conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
The same DDL runs on both drivers.

# Tables

The schema includes:

  - live_session: Session metadata, settings, lifecycle state and the
    participant count that gates capacity
  - participant: One row per joined participant, with the token hash and
    the votes_cast counter that gates the quota
  - contribution: Items participants submit while a session is active
  - vote: One row per (voter, target); targets are participants or
    contributions

# Relationships

	live_session 1──* participant
	live_session 1──* contribution
	live_session 1──* vote
	participant  1──* contribution
	participant  1──* vote (as voter)

All foreign keys use ON DELETE CASCADE. Vote targets are polymorphic and
carry no foreign key; removal deletes votes on a participant's targets
explicitly.

# Constraint Errors

IsUniqueViolation recognizes duplicate-key failures from either driver:

	if db.IsUniqueViolation(err) {
		return ErrDuplicateVote
	}
*/
package db
