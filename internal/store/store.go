// Package store persists finished discovery results to PostgreSQL.
// Each run becomes one discovery_runs row and one discovered_devices row
// per reported device; the full device document is kept as JSONB.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/anstrom/netprobe/internal/device"
	"github.com/anstrom/netprobe/internal/discovery"
	apperrors "github.com/anstrom/netprobe/internal/errors"
	"github.com/anstrom/netprobe/internal/logging"
)

//go:embed schema.sql
var schema string

const (
	defaultPostgresPort    = 5432
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 2
	defaultConnMaxLifetime = 5
	defaultConnMaxIdleTime = 5
	defaultListLimit       = 20
)

// Config holds database configuration.
type Config struct {
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	Host            string        `yaml:"host" json:"host" validate:"required_if=Enabled true"`
	Port            int           `yaml:"port" json:"port" validate:"omitempty,min=1,max=65535"`
	Database        string        `yaml:"database" json:"database" validate:"required_if=Enabled true"`
	Username        string        `yaml:"username" json:"username" validate:"required_if=Enabled true"`
	Password        string        `yaml:"password" json:"password"`
	SSLMode         string        `yaml:"ssl_mode" json:"ssl_mode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns" validate:"min=0"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
}

// DefaultConfig returns the default database configuration. Persistence
// is off until a database name and user are configured.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            defaultPostgresPort,
		SSLMode:         "disable",
		MaxOpenConns:    defaultMaxOpenConns,
		MaxIdleConns:    defaultMaxIdleConns,
		ConnMaxLifetime: defaultConnMaxLifetime * time.Minute,
		ConnMaxIdleTime: defaultConnMaxIdleTime * time.Minute,
	}
}

// Store writes discovery results.
type Store struct {
	db     *sqlx.DB
	logger *logging.Logger
}

// New wraps an open connection.
func New(db *sqlx.DB, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{db: db, logger: logger.WithComponent("store")}
}

// Connect opens a PostgreSQL connection pool and verifies it.
// Returned errors never include the DSN.
func Connect(ctx context.Context, cfg *Config, logger *logging.Logger) (*Store, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Database,
		cfg.Username, cfg.Password, cfg.SSLMode,
	)

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(apperrors.CodeDatabaseConnection,
			"failed to connect to database", "connect", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, apperrors.WrapDatabaseError(apperrors.CodeDatabaseConnection,
			"failed to ping database", "ping", err)
	}

	return New(db, logger), nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return sanitizeDBError("ensure schema", err)
	}
	return nil
}

const insertRunQuery = `
	INSERT INTO discovery_runs (
		id, target, exclusions, started_at, finished_at,
		duration_seconds, total_devices, methods, statistics, errors
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const insertDeviceQuery = `
	INSERT INTO discovered_devices (
		run_id, ip_address, mac_address, hostname, vendor, device_type,
		methods, response_time_ms, first_seen, last_seen, document
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// SaveResult stores a finished run and its devices in one transaction and
// returns the run ID.
func (s *Store) SaveResult(ctx context.Context, result *discovery.Result) (uuid.UUID, error) {
	if result == nil {
		return uuid.Nil, apperrors.WrapDatabaseError(apperrors.CodeValidation,
			"nothing to save", "save result", nil)
	}

	runID, err := uuid.Parse(result.Metadata.ScanID)
	if err != nil {
		runID = uuid.New()
	}

	stats, err := json.Marshal(result.Statistics)
	if err != nil {
		return uuid.Nil, sanitizeDBError("encode statistics", err)
	}
	runErrors, err := json.Marshal(result.Errors)
	if err != nil {
		return uuid.Nil, sanitizeDBError("encode errors", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return uuid.Nil, sanitizeDBError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	meta := result.Metadata
	_, err = tx.ExecContext(ctx, insertRunQuery,
		runID, meta.Target, pq.Array(nonNil(meta.Exclusions)),
		meta.StartTime, meta.EndTime, meta.DurationSeconds, meta.TotalDevices,
		pq.Array(methodNames(meta.ScanMethodsUsed)), stats, runErrors)
	if err != nil {
		return uuid.Nil, sanitizeDBError("insert discovery run", err)
	}

	for _, d := range result.Devices {
		doc, err := json.Marshal(d)
		if err != nil {
			return uuid.Nil, sanitizeDBError("encode device", err)
		}
		_, err = tx.ExecContext(ctx, insertDeviceQuery,
			runID, d.IP, nullString(d.MAC), nullString(d.Hostname), nullString(d.Vendor),
			string(d.DeviceType), pq.Array(methodNames(d.DiscoveryMethods)),
			nullFloat(d.ResponseTime), d.FirstSeen, d.LastSeen, doc)
		if err != nil {
			return uuid.Nil, sanitizeDBError("insert discovered device", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, sanitizeDBError("commit discovery run", err)
	}

	s.logger.Info("Stored discovery result",
		"scan_id", runID.String(),
		"devices", len(result.Devices))
	return runID, nil
}

// RunSummary is one stored discovery run.
type RunSummary struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	Target          string         `db:"target" json:"target"`
	StartedAt       time.Time      `db:"started_at" json:"started_at"`
	DurationSeconds float64        `db:"duration_seconds" json:"duration_seconds"`
	TotalDevices    int            `db:"total_devices" json:"total_devices"`
	Methods         pq.StringArray `db:"methods" json:"methods"`
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := `
		SELECT id, target::text AS target, started_at, duration_seconds, total_devices, methods
		FROM discovery_runs
		ORDER BY started_at DESC
		LIMIT $1`

	var runs []RunSummary
	if err := s.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, sanitizeDBError("list discovery runs", err)
	}
	return runs, nil
}

// DeleteBefore removes runs that started before cutoff and returns how
// many were deleted. Device rows go with them.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM discovery_runs WHERE started_at < $1`, cutoff)
	if err != nil {
		return 0, sanitizeDBError("delete discovery runs", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, sanitizeDBError("delete discovery runs", err)
	}
	return n, nil
}

// sanitizeDBError converts driver errors into coded errors that carry no
// SQL or connection details in their message. The driver error is kept
// as the cause.
func sanitizeDBError(operation string, err error) error {
	if err == nil {
		return nil
	}

	code := apperrors.CodeDatabaseQuery
	message := fmt.Sprintf("database operation failed: %s", operation)

	var pqErr *pq.Error
	switch {
	case errors.Is(err, sql.ErrNoRows):
		message = "record not found"
	case errors.Is(err, context.Canceled):
		code = apperrors.CodeCanceled
		message = "database operation was canceled"
	case errors.Is(err, context.DeadlineExceeded):
		code = apperrors.CodeTimeout
		message = "database operation timed out"
	case errors.As(err, &pqErr):
		switch pqErr.Code {
		case "23505": // unique_violation
			message = "record already exists"
		case "23502", "23514", "22P02": // not_null, check, invalid_text_representation
			code = apperrors.CodeValidation
			message = "record failed validation"
		case "57014": // query_canceled
			code = apperrors.CodeCanceled
			message = "database operation was canceled"
		case "57P01", "08000", "08003", "08006": // admin_shutdown, connection errors
			code = apperrors.CodeDatabaseConnection
			message = "database connection error"
		}
	}

	return apperrors.WrapDatabaseError(code, message, operation, err)
}

func methodNames(methods []device.Method) []string {
	out := make([]string, len(methods))
	for i, m := range methods {
		out[i] = string(m)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
