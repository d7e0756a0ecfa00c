package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// SchemaVersion is the ledger layout this build understands. A database
// reporting any other version aborts startup: billing correctness cannot be
// guaranteed against an unknown layout.
const SchemaVersion = 1

const schemaDDL = `
create table if not exists parking_sessions (
	id uuid primary key,
	license_plate text not null,
	latitude double precision not null,
	longitude double precision not null,
	address text not null default '',
	start_time timestamptz not null,
	end_time timestamptz,
	status text not null,
	rate_cents bigint not null,
	amount_cents bigint not null default 0,
	created_by text not null,
	ended_by text,
	synced boolean not null default false,
	created_at timestamptz not null default now(),
	updated_at timestamptz not null default now()
);

create unique index if not exists parking_sessions_one_active_per_plate
	on parking_sessions (license_plate) where status = 'active';

create table if not exists audit_log (
	id uuid primary key,
	action text not null,
	session_id uuid not null,
	actor_id text not null,
	created_at timestamptz not null default now()
);

create table if not exists write_queue (
	id uuid primary key,
	op text not null,
	payload jsonb not null,
	synced boolean not null default false,
	created_at timestamptz not null default now()
);

create table if not exists schema_info (
	version int not null
);
`

// EnsureSchema creates the ledger tables on first run and verifies the
// schema version on every run.
func EnsureSchema(ctx context.Context, q Querier) error {
	if _, err := q.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("db: apply schema: %w", err)
	}

	var version int
	err := q.QueryRow(ctx, `select version from schema_info limit 1`).Scan(&version)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if _, err := q.Exec(ctx, `insert into schema_info (version) values ($1)`, SchemaVersion); err != nil {
			return fmt.Errorf("db: record schema version: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("db: read schema version: %w", err)
	case version != SchemaVersion:
		return fmt.Errorf("db: schema version %d, this build requires %d", version, SchemaVersion)
	}
	return nil
}
