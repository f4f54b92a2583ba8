package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pulseboard/pulseboard/internal/models"
)

const alertColumns = `id, name, description, sigset, condition,
	duration_min, delay_min, interval_min, repeat_min,
	instant_revoke, final_notification, enabled, emails, phones,
	state, state_changed, interval_time, created_at, updated_at`

type sqliteAlertRepo struct {
	db *sql.DB
}

func (r *sqliteAlertRepo) Create(ctx context.Context, alert *models.Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}

	query := `
		INSERT INTO alerts (` + alertColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		alert.ID, alert.Name, nullString(alert.Description), alert.SigSet, alert.Condition,
		alert.DurationMinutes, alert.DelayMinutes, alert.IntervalMinutes, alert.RepeatMinutes,
		boolToInt(alert.InstantRevoke), boolToInt(alert.FinalNotification), boolToInt(alert.Enabled),
		nullString(alert.Emails), nullString(alert.Phones),
		string(alert.State), alert.StateChanged, alert.IntervalTime,
		alert.CreatedAt, alert.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (r *sqliteAlertRepo) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = ?`
	alert, err := scanAlert(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return alert, nil
}

func (r *sqliteAlertRepo) Update(ctx context.Context, alert *models.Alert) error {
	query := `
		UPDATE alerts SET name = ?, description = ?, sigset = ?, condition = ?,
			duration_min = ?, delay_min = ?, interval_min = ?, repeat_min = ?,
			instant_revoke = ?, final_notification = ?, enabled = ?,
			emails = ?, phones = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		alert.Name, nullString(alert.Description), alert.SigSet, alert.Condition,
		alert.DurationMinutes, alert.DelayMinutes, alert.IntervalMinutes, alert.RepeatMinutes,
		boolToInt(alert.InstantRevoke), boolToInt(alert.FinalNotification), boolToInt(alert.Enabled),
		nullString(alert.Emails), nullString(alert.Phones), alert.UpdatedAt,
		alert.ID,
	)
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("alert not found: %s", alert.ID)
	}
	return nil
}

func (r *sqliteAlertRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM alerts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("alert not found: %s", id)
	}
	return nil
}

func (r *sqliteAlertRepo) List(ctx context.Context) ([]*models.Alert, error) {
	return r.queryAlerts(ctx, `SELECT `+alertColumns+` FROM alerts ORDER BY name`)
}

func (r *sqliteAlertRepo) ListEnabled(ctx context.Context) ([]*models.Alert, error) {
	return r.queryAlerts(ctx, `SELECT `+alertColumns+` FROM alerts WHERE enabled = 1 ORDER BY name`)
}

// WriteState persists a state transition. The write and the read-back of
// the recorded timestamp share one transaction so the caller observes the
// store's canonical value.
func (r *sqliteAlertRepo) WriteState(ctx context.Context, id string, state models.AlertState, at time.Time) (time.Time, error) {
	return r.writeStamped(ctx, id, "state_changed", at, func(tx *sql.Tx) (sql.Result, error) {
		return tx.ExecContext(ctx,
			"UPDATE alerts SET state = ?, state_changed = ? WHERE id = ?",
			string(state), at.UTC(), id,
		)
	})
}

// WriteIntervalTime persists a watchdog reset, same transactional
// read-after-write contract as WriteState.
func (r *sqliteAlertRepo) WriteIntervalTime(ctx context.Context, id string, at time.Time) (time.Time, error) {
	return r.writeStamped(ctx, id, "interval_time", at, func(tx *sql.Tx) (sql.Result, error) {
		return tx.ExecContext(ctx,
			"UPDATE alerts SET interval_time = ? WHERE id = ?",
			at.UTC(), id,
		)
	})
}

func (r *sqliteAlertRepo) writeStamped(ctx context.Context, id, column string, at time.Time, write func(tx *sql.Tx) (sql.Result, error)) (time.Time, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := write(tx)
	if err != nil {
		return time.Time{}, fmt.Errorf("write %s: %w", column, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return time.Time{}, fmt.Errorf("alert not found: %s", id)
	}

	var recorded time.Time
	query := fmt.Sprintf("SELECT %s FROM alerts WHERE id = ?", column)
	if err := tx.QueryRowContext(ctx, query, id).Scan(&recorded); err != nil {
		return time.Time{}, fmt.Errorf("read back %s: %w", column, err)
	}

	if err := tx.Commit(); err != nil {
		return time.Time{}, fmt.Errorf("commit: %w", err)
	}
	return recorded, nil
}

func (r *sqliteAlertRepo) queryAlerts(ctx context.Context, query string) ([]*models.Alert, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(row scanner) (*models.Alert, error) {
	alert := &models.Alert{}
	var description, emails, phones sql.NullString
	var instantRevoke, finalNotification, enabled int
	var state string

	err := row.Scan(
		&alert.ID, &alert.Name, &description, &alert.SigSet, &alert.Condition,
		&alert.DurationMinutes, &alert.DelayMinutes, &alert.IntervalMinutes, &alert.RepeatMinutes,
		&instantRevoke, &finalNotification, &enabled, &emails, &phones,
		&state, &alert.StateChanged, &alert.IntervalTime,
		&alert.CreatedAt, &alert.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan alert: %w", err)
	}

	alert.Description = description.String
	alert.Emails = emails.String
	alert.Phones = phones.String
	alert.InstantRevoke = instantRevoke != 0
	alert.FinalNotification = finalNotification != 0
	alert.Enabled = enabled != 0
	alert.State = models.ParseAlertState(state)

	return alert, nil
}
