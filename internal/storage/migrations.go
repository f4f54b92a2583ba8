package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	Up      string
}

// migrations holds all database migrations in order.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up: `
			-- Alerts table: configuration plus persisted runtime state
			CREATE TABLE IF NOT EXISTS alerts (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT,
				sigset TEXT NOT NULL,
				condition TEXT NOT NULL,
				duration_min INTEGER NOT NULL DEFAULT 0,
				delay_min INTEGER NOT NULL DEFAULT 0,
				interval_min INTEGER NOT NULL DEFAULT 0,
				repeat_min INTEGER NOT NULL DEFAULT 0,
				instant_revoke INTEGER NOT NULL DEFAULT 0,
				final_notification INTEGER NOT NULL DEFAULT 0,
				enabled INTEGER NOT NULL DEFAULT 0,
				emails TEXT,
				phones TEXT,
				state TEXT NOT NULL DEFAULT 'good',
				state_changed TIMESTAMP NOT NULL,
				interval_time TIMESTAMP NOT NULL,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			);

			-- Append-only audit log of alert lifecycle events
			CREATE TABLE IF NOT EXISTS alert_log (
				id TEXT PRIMARY KEY,
				alert_id TEXT NOT NULL,
				type TEXT NOT NULL,
				time TIMESTAMP NOT NULL,
				FOREIGN KEY (alert_id) REFERENCES alerts(id) ON DELETE CASCADE
			);

			-- Indexes
			CREATE INDEX IF NOT EXISTS idx_alerts_enabled ON alerts(enabled);
			CREATE INDEX IF NOT EXISTS idx_alerts_sigset ON alerts(sigset);
			CREATE INDEX IF NOT EXISTS idx_alert_log_alert ON alert_log(alert_id);
			CREATE INDEX IF NOT EXISTS idx_alert_log_time ON alert_log(time);
		`,
	},
}

// runMigrations applies all pending migrations.
func runMigrations(db *sql.DB) error {
	// Create migrations table if not exists
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	// Apply pending migrations
	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		if _, err := db.Exec(m.Up); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}

		_, err = db.Exec(
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Name, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
	}

	return nil
}
