package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaLockKey = int64(2026101501)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS profiles (
	id TEXT PRIMARY KEY,
	enterprise_id TEXT NOT NULL,
	code TEXT NOT NULL,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	profile_type TEXT NOT NULL DEFAULT '',
	parent_id TEXT REFERENCES profiles(id),
	path TEXT NOT NULL,
	is_template BOOLEAN NOT NULL DEFAULT FALSE,
	retention_months INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	opened_at TIMESTAMPTZ,
	closed_at TIMESTAMPTZ,
	created_by TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	deleted_at TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_profiles_enterprise_code ON profiles(enterprise_id, code) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_profiles_parent ON profiles(parent_id) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_profiles_path ON profiles(enterprise_id, path text_pattern_ops);

CREATE TABLE IF NOT EXISTS metadata_fields (
	id TEXT PRIMARY KEY,
	profile_id TEXT REFERENCES profiles(id),
	name TEXT NOT NULL,
	label TEXT NOT NULL,
	data_type TEXT NOT NULL,
	required BOOLEAN NOT NULL DEFAULT FALSE,
	default_value TEXT NOT NULL DEFAULT '',
	pattern TEXT NOT NULL DEFAULT '',
	pattern_message TEXT NOT NULL DEFAULT '',
	min_value DOUBLE PRECISION,
	max_value DOUBLE PRECISION,
	max_length INTEGER,
	options TEXT NOT NULL DEFAULT '',
	display_order INTEGER NOT NULL DEFAULT 0,
	visible_in_list BOOLEAN NOT NULL DEFAULT FALSE,
	searchable BOOLEAN NOT NULL DEFAULT FALSE,
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	created_by TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	deleted_at TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_metadata_fields_scope_name ON metadata_fields(COALESCE(profile_id, ''), lower(name)) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS profile_documents (
	id TEXT PRIMARY KEY,
	profile_id TEXT NOT NULL REFERENCES profiles(id),
	file_object_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	document_type TEXT NOT NULL DEFAULT '',
	document_number TEXT NOT NULL DEFAULT '',
	issue_date DATE,
	expiry_date DATE,
	issuing_authority TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	display_order INTEGER NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	created_by TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	deleted_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_profile_documents_order ON profile_documents(profile_id, display_order) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS metadata_values (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES profile_documents(id),
	field_id TEXT NOT NULL REFERENCES metadata_fields(id),
	kind TEXT NOT NULL,
	string_value TEXT,
	number_value DOUBLE PRECISION,
	date_value DATE,
	bool_value BOOLEAN,
	json_value TEXT,
	created_by TEXT NOT NULL DEFAULT '',
	updated_by TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	deleted_at TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_metadata_values_live ON metadata_values(document_id, field_id) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_metadata_values_field ON metadata_values(field_id) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS loans (
	id TEXT PRIMARY KEY,
	code TEXT NOT NULL,
	enterprise_id TEXT NOT NULL,
	borrower_id TEXT NOT NULL,
	borrower_name TEXT NOT NULL,
	department TEXT NOT NULL DEFAULT '',
	requested_at TIMESTAMPTZ NOT NULL,
	due_date TIMESTAMPTZ NOT NULL,
	returned_at TIMESTAMPTZ,
	status TEXT NOT NULL,
	loan_type TEXT NOT NULL DEFAULT '',
	purpose TEXT NOT NULL DEFAULT '',
	approver_id TEXT NOT NULL DEFAULT '',
	approved_at TIMESTAMPTZ,
	rejection_reason TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_loans_code ON loans(code);
CREATE INDEX IF NOT EXISTS idx_loans_borrowed_due ON loans(due_date) WHERE status = 'borrowed';

CREATE TABLE IF NOT EXISTS loan_items (
	id TEXT PRIMARY KEY,
	loan_id TEXT NOT NULL REFERENCES loans(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	document_id TEXT NOT NULL,
	document_name TEXT NOT NULL,
	returned BOOLEAN NOT NULL DEFAULT FALSE,
	returned_at TIMESTAMPTZ,
	notes TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_loan_items_loan ON loan_items(loan_id, position);

CREATE TABLE IF NOT EXISTS approvals (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	requester_id TEXT NOT NULL,
	requested_at TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL,
	approver_id TEXT NOT NULL DEFAULT '',
	approved_at TIMESTAMPTZ,
	rejection_reason TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_approvals_pending_document ON approvals(document_id) WHERE status = 'pending';

CREATE TABLE IF NOT EXISTS history_entries (
	id TEXT PRIMARY KEY,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	actor_id TEXT NOT NULL DEFAULT '',
	change_type TEXT NOT NULL,
	field_name TEXT NOT NULL DEFAULT '',
	old_value TEXT NOT NULL DEFAULT '',
	new_value TEXT NOT NULL DEFAULT '',
	details TEXT NOT NULL DEFAULT '',
	occurred_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_entries_entity ON history_entries(entity_id, occurred_at);

CREATE TABLE IF NOT EXISTS history_outbox (
	id TEXT PRIMARY KEY,
	payload JSONB NOT NULL,
	attempts INTEGER NOT NULL DEFAULT 1,
	last_error TEXT NOT NULL DEFAULT '',
	parked_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_outbox_parked ON history_outbox(parked_at);
`

// EnsureSchema creates all tables and indexes. Concurrent api/worker startups
// are serialized by a transaction-scoped advisory lock.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
