package sqlite

// schema defines the database tables. Complex columns (snapshots, results,
// channel lists) are stored as JSON text.
const schema = `
CREATE TABLE IF NOT EXISTS tools (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	url TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	priority TEXT NOT NULL,
	paused INTEGER NOT NULL DEFAULT 0,
	last_analyzed_at TIMESTAMP,
	snapshot TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tools_priority ON tools(priority);
CREATE INDEX IF NOT EXISTS idx_tools_last_analyzed ON tools(last_analyzed_at);

CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	tool_ids TEXT NOT NULL,
	priority TEXT NOT NULL,
	job_type TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	started_at TIMESTAMP,
	completed_at TIMESTAMP,
	results TEXT,
	error TEXT NOT NULL DEFAULT '',
	progress REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs(created_at);

CREATE TABLE IF NOT EXISTS alerts (
	id TEXT PRIMARY KEY,
	tool_id TEXT NOT NULL DEFAULT '',
	tool_name TEXT NOT NULL DEFAULT '',
	alert_type TEXT NOT NULL,
	severity TEXT NOT NULL,
	title TEXT NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	changes TEXT,
	metadata TEXT,
	created_at TIMESTAMP NOT NULL,
	channels TEXT,
	acknowledged_by TEXT NOT NULL DEFAULT '',
	acknowledged_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_alerts_tool ON alerts(tool_id);
CREATE INDEX IF NOT EXISTS idx_alerts_severity ON alerts(severity);
CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(created_at);

CREATE TABLE IF NOT EXISTS alert_rules (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	change_types TEXT NOT NULL,
	severity_threshold TEXT NOT NULL,
	tool_priorities TEXT,
	cooldown_ns INTEGER NOT NULL DEFAULT 0,
	channels TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1
);
`
