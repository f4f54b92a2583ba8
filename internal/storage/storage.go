// Package storage provides database storage interfaces and implementations
// for alert configuration, alert audit logging, and signal-set records.
package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/pulseboard/pulseboard/internal/models"
)

// Storage is the main interface for the relational (alert) database.
type Storage interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error

	// Repository accessors
	Alerts() AlertRepository
	AlertLog() AlertLogRepository
}

// AlertRepository defines operations for alert configuration and runtime state.
type AlertRepository interface {
	Create(ctx context.Context, alert *models.Alert) error
	GetByID(ctx context.Context, id string) (*models.Alert, error)
	Update(ctx context.Context, alert *models.Alert) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.Alert, error)
	ListEnabled(ctx context.Context) ([]*models.Alert, error)

	// WriteState transactionally persists a state transition at the given
	// time and returns the timestamp the store actually recorded.
	WriteState(ctx context.Context, id string, state models.AlertState, at time.Time) (time.Time, error)
	// WriteIntervalTime transactionally persists a watchdog reset at the
	// given time and returns the timestamp the store actually recorded.
	WriteIntervalTime(ctx context.Context, id string, at time.Time) (time.Time, error)
}

// AlertLogRepository defines operations for the alert audit log.
type AlertLogRepository interface {
	// Append adds one lifecycle event for the alert, stamped with the
	// store's current time.
	Append(ctx context.Context, alertID, entryType string) error
	ListByAlert(ctx context.Context, alertID string, limit, offset int) ([]*models.AlertLogEntry, int64, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// RecordRepository defines read access to signal-set records.
type RecordRepository interface {
	// LatestRecords returns up to limit records of the signal set, newest
	// first, each including the synthetic id field.
	LatestRecords(ctx context.Context, sigSet string, limit int) ([]models.Record, error)
	// LatestRecordTime returns the arrival time of the newest record of
	// the signal set, or the zero time if the set is empty.
	LatestRecordTime(ctx context.Context, sigSet string) (time.Time, error)
	// Insert appends one record to the signal set.
	Insert(ctx context.Context, sigSet string, record models.Record, at time.Time) error
}

// Helper functions shared by the SQL implementations.

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
