package repository

// Schema is the idempotent DDL applied by database.Migrate at boot.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS reports (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	description TEXT NOT NULL,
	status TEXT NOT NULL,
	street TEXT NOT NULL DEFAULT '',
	landmark TEXT NOT NULL DEFAULT '',
	coordinates JSONB,
	photo_ref TEXT NOT NULL DEFAULT '',
	reported_by TEXT NOT NULL,
	severity TEXT NOT NULL DEFAULT '',
	assigned_responder TEXT NOT NULL DEFAULT '',
	assigned_vehicle_id TEXT NOT NULL DEFAULT '',
	closed_by TEXT NOT NULL DEFAULT '',
	closed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	last_updated_at TIMESTAMPTZ NOT NULL,
	last_updated_by TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	attribution JSONB NOT NULL DEFAULT '{}'::jsonb,
	history JSONB NOT NULL DEFAULT '[]'::jsonb,
	version BIGINT NOT NULL DEFAULT 1
)`,
	`CREATE INDEX IF NOT EXISTS idx_reports_status ON reports (status)`,
	`CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS ambulances (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	status TEXT NOT NULL,
	location TEXT NOT NULL DEFAULT '',
	assigned_report_id TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL,
	updated_by TEXT NOT NULL DEFAULT '',
	version BIGINT NOT NULL DEFAULT 1
)`,
	`CREATE INDEX IF NOT EXISTS idx_ambulances_report ON ambulances (assigned_report_id)`,
	`CREATE TABLE IF NOT EXISTS accounts (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL,
	email TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	profile JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	version BIGINT NOT NULL DEFAULT 1
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_accounts_username ON accounts (LOWER(username))`,
	`CREATE TABLE IF NOT EXISTS residents (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL,
	email TEXT NOT NULL,
	password_hash TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	profile JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	version BIGINT NOT NULL DEFAULT 1
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_residents_username ON residents (LOWER(username))`,
	`CREATE TABLE IF NOT EXISTS review_requests (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	identity TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	changes JSONB NOT NULL DEFAULT '{}'::jsonb,
	proofs JSONB NOT NULL DEFAULT '[]'::jsonb,
	documents JSONB NOT NULL DEFAULT '{}'::jsonb,
	password_hash TEXT NOT NULL DEFAULT '',
	requested_at TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL,
	reviewer TEXT NOT NULL DEFAULT '',
	reviewed_at TIMESTAMPTZ,
	reason TEXT NOT NULL DEFAULT ''
)`,
	`ALTER TABLE review_requests ADD COLUMN IF NOT EXISTS documents JSONB NOT NULL DEFAULT '{}'::jsonb`,
	`CREATE INDEX IF NOT EXISTS idx_review_requests_identity ON review_requests (LOWER(identity))`,
	`CREATE TABLE IF NOT EXISTS review_feedback (
	identity TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	reviewer TEXT NOT NULL DEFAULT '',
	reviewed_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS preferences (
	user_id TEXT PRIMARY KEY,
	default_landing TEXT NOT NULL DEFAULT '',
	language TEXT NOT NULL DEFAULT 'en',
	time_format TEXT NOT NULL DEFAULT '12h',
	date_format TEXT NOT NULL DEFAULT 'YYYY-MM-DD',
	timezone TEXT NOT NULL DEFAULT 'Asia/Manila',
	theme TEXT NOT NULL DEFAULT 'light',
	updated_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
	id TEXT PRIMARY KEY,
	actor TEXT NOT NULL,
	action TEXT NOT NULL,
	resource TEXT NOT NULL,
	resource_id TEXT NOT NULL DEFAULT '',
	details JSONB,
	ip_address TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
)`,
}
