package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pulseboard/pulseboard/internal/models"
)

type sqliteAlertLogRepo struct {
	db *sql.DB
}

func (r *sqliteAlertLogRepo) Append(ctx context.Context, alertID, entryType string) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO alert_log (id, alert_id, type, time) VALUES (?, ?, ?, ?)",
		uuid.New().String(), alertID, entryType, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("append alert log: %w", err)
	}
	return nil
}

func (r *sqliteAlertLogRepo) ListByAlert(ctx context.Context, alertID string, limit, offset int) ([]*models.AlertLogEntry, int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alert_log WHERE alert_id = ?", alertID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count alert log: %w", err)
	}

	query := `
		SELECT id, alert_id, type, time
		FROM alert_log WHERE alert_id = ? ORDER BY time DESC LIMIT ? OFFSET ?
	`
	rows, err := r.db.QueryContext(ctx, query, alertID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query alert log: %w", err)
	}
	defer rows.Close()

	entries, err := scanLogEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, rows.Err()
}

func (r *sqliteAlertLogRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM alert_log WHERE time < ?", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete alert log: %w", err)
	}
	return result.RowsAffected()
}

func scanLogEntries(rows *sql.Rows) ([]*models.AlertLogEntry, error) {
	var entries []*models.AlertLogEntry
	for rows.Next() {
		e := &models.AlertLogEntry{}
		if err := rows.Scan(&e.ID, &e.AlertID, &e.Type, &e.Time); err != nil {
			return nil, fmt.Errorf("scan alert log entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
