package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/pulseboard/pulseboard/internal/models"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	// Addresses are the ClickHouse server addresses (host:port).
	Addresses []string

	// Database is the ClickHouse database name.
	Database string

	// Username for authentication.
	Username string

	// Password for authentication.
	Password string

	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int

	// DialTimeout is the connection timeout.
	DialTimeout time.Duration

	// Compression enables LZ4 compression.
	Compression bool

	// RetentionDays is the TTL in days for signal record retention.
	RetentionDays int
}

// ClickHouseStorage implements RecordRepository for ClickHouse.
type ClickHouseStorage struct {
	config *ClickHouseConfig
	db     *sql.DB
}

// NewClickHouseStorage creates a new ClickHouse record storage.
func NewClickHouseStorage(config *ClickHouseConfig) *ClickHouseStorage {
	if config.MaxOpenConns == 0 {
		config.MaxOpenConns = 5
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 5
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = 5 * time.Second
	}
	if config.RetentionDays == 0 {
		config.RetentionDays = 90
	}

	return &ClickHouseStorage{config: config}
}

// Open initializes the ClickHouse connection.
func (s *ClickHouseStorage) Open() error {
	opts := &clickhouse.Options{
		Addr: s.config.Addresses,
		Auth: clickhouse.Auth{
			Database: s.config.Database,
			Username: s.config.Username,
			Password: s.config.Password,
		},
		DialTimeout:  s.config.DialTimeout,
		MaxOpenConns: s.config.MaxOpenConns,
		MaxIdleConns: s.config.MaxIdleConns,
	}

	if s.config.Compression {
		opts.Compression = &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		}
	}

	db := clickhouse.OpenDB(opts)

	ctx, cancel := context.WithTimeout(context.Background(), s.config.DialTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping clickhouse: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *ClickHouseStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migrate creates the signal records table if it doesn't exist.
func (s *ClickHouseStorage) Migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS signal_records (
			sigset LowCardinality(String),
			id String,
			recorded_at DateTime64(3, 'UTC'),
			fields String,
			_date Date DEFAULT toDate(recorded_at)
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(_date)
		ORDER BY (sigset, recorded_at, id)
		TTL _date + INTERVAL %d DAY DELETE
		SETTINGS index_granularity = 8192
	`, s.config.RetentionDays)

	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create signal_records table: %w", err)
	}

	return nil
}

// Ping checks the connection health.
func (s *ClickHouseStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// LatestRecords returns up to limit records of the signal set, newest
// first, each including the synthetic id field.
func (s *ClickHouseStorage) LatestRecords(ctx context.Context, sigSet string, limit int) ([]models.Record, error) {
	query := `
		SELECT id, fields FROM signal_records
		WHERE sigset = ? ORDER BY recorded_at DESC, id DESC LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, sigSet, limit)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		var id, fieldsJSON string
		if err := rows.Scan(&id, &fieldsJSON); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}

		record := models.Record{}
		if fieldsJSON != "" {
			if err := json.Unmarshal([]byte(fieldsJSON), &record); err != nil {
				return nil, fmt.Errorf("unmarshal record fields: %w", err)
			}
		}
		record["id"] = id
		records = append(records, record)
	}
	return records, rows.Err()
}

// LatestRecordTime returns the arrival time of the newest record of the
// signal set, or the zero time if the set has no records.
func (s *ClickHouseStorage) LatestRecordTime(ctx context.Context, sigSet string) (time.Time, error) {
	var latest sql.NullTime
	err := s.db.QueryRowContext(ctx,
		"SELECT max(recorded_at) FROM signal_records WHERE sigset = ?", sigSet,
	).Scan(&latest)
	if err != nil {
		return time.Time{}, fmt.Errorf("query latest record time: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, nil
	}
	return latest.Time, nil
}

// Insert appends one record to the signal set. The synthetic id field is
// stored in its own column, the signal values as JSON.
func (s *ClickHouseStorage) Insert(ctx context.Context, sigSet string, record models.Record, at time.Time) error {
	fields := make(map[string]any, len(record))
	for k, v := range record {
		if k != "id" {
			fields[k] = v
		}
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal record fields: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO signal_records (sigset, id, recorded_at, fields) VALUES (?, ?, ?, ?)",
		sigSet, record.ID(), at.UTC(), string(fieldsJSON),
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}
