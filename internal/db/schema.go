package db

// Schema version for migrations
const SchemaVersion = 1

// Schema contains the database schema
const Schema = `
-- Schema version
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- ═══════════════════════════════════════════════════════════════
-- REPORT RUNS
-- ═══════════════════════════════════════════════════════════════

CREATE TABLE IF NOT EXISTS report_runs (
    id              TEXT PRIMARY KEY,
    project         TEXT NOT NULL,

    window_kind     TEXT NOT NULL,
    window_spec     TEXT NOT NULL,
    window_label    TEXT NOT NULL,
    period_start    TEXT,
    period_end      TEXT,
    jql             TEXT NOT NULL,

    status          TEXT NOT NULL,

    tickets         INTEGER DEFAULT 0,
    qualifying      INTEGER DEFAULT 0,
    skipped         INTEGER DEFAULT 0,
    lead_time_days  REAL,
    cycle_time_days REAL,

    report_path     TEXT,
    error_message   TEXT,

    started_at      TEXT NOT NULL,
    completed_at    TEXT
);

-- ═══════════════════════════════════════════════════════════════
-- INDEXES
-- ═══════════════════════════════════════════════════════════════

CREATE INDEX IF NOT EXISTS idx_runs_started ON report_runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_project_status ON report_runs(project, status);
`

// Views contains the database views
const Views = `
CREATE VIEW IF NOT EXISTS project_trend AS
SELECT
    project,
    window_spec,
    COUNT(*) as runs,
    AVG(lead_time_days) as avg_lead_time_days,
    AVG(cycle_time_days) as avg_cycle_time_days,
    MAX(started_at) as last_run_at
FROM report_runs
WHERE status = 'completed'
GROUP BY project, window_spec;
`
