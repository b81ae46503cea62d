// Package db persists terminal research reports. Only the finished artifact
// is stored; in-flight run state never touches the database.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/orbiterhq/deepresearch/internal/research"
)

// ErrNotFound is returned when no report exists for a run.
var ErrNotFound = errors.New("report not found")

// ReportRecord is one persisted report row.
type ReportRecord struct {
	RunID       string    `db:"run_id" json:"run_id"`
	Topic       string    `db:"topic" json:"topic"`
	Status      string    `db:"status" json:"status"`
	Rounds      int       `db:"rounds" json:"rounds"`
	SourceCount int       `db:"source_count" json:"source_count"`
	Coverage    float64   `db:"coverage_score" json:"coverage_score"`
	Quality     float64   `db:"quality_score" json:"quality_score"`
	Confidence  float64   `db:"confidence" json:"confidence"`
	ReportJSON  []byte    `db:"report" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Report unmarshals the stored report payload.
func (r *ReportRecord) Report() (*research.ResearchReport, error) {
	var report research.ResearchReport
	if err := json.Unmarshal(r.ReportJSON, &report); err != nil {
		return nil, fmt.Errorf("decode stored report: %w", err)
	}
	return &report, nil
}

// ReportStore persists and retrieves terminal reports. A nil store disables
// persistence.
type ReportStore interface {
	SaveReport(ctx context.Context, rec *ReportRecord) error
	GetReport(ctx context.Context, runID string) (*ReportRecord, error)
}

// Config holds Postgres connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN renders the connection string.
func (c Config) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// PostgresStore is the sqlx-backed report store.
type PostgresStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewPostgresStore opens the pool and verifies connectivity.
func NewPostgresStore(cfg Config, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("report store connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
	)
	return &PostgresStore{db: db, logger: logger}, nil
}

// NewPostgresStoreFromDB wraps an existing connection, used by tests.
func NewPostgresStoreFromDB(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: sqlx.NewDb(db, "postgres"), logger: logger}
}

// Close releases the pool.
func (s *PostgresStore) Close() error { return s.db.Close() }

const saveReportQuery = `
INSERT INTO research_reports (run_id, topic, status, rounds, source_count, coverage_score, quality_score, confidence, report, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (run_id) DO UPDATE SET
	status = EXCLUDED.status,
	rounds = EXCLUDED.rounds,
	source_count = EXCLUDED.source_count,
	coverage_score = EXCLUDED.coverage_score,
	quality_score = EXCLUDED.quality_score,
	confidence = EXCLUDED.confidence,
	report = EXCLUDED.report`

// SaveReport upserts a terminal report row.
func (s *PostgresStore) SaveReport(ctx context.Context, rec *ReportRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, saveReportQuery,
		rec.RunID, rec.Topic, rec.Status, rec.Rounds, rec.SourceCount,
		rec.Coverage, rec.Quality, rec.Confidence, rec.ReportJSON, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save report %s: %w", rec.RunID, err)
	}
	return nil
}

const getReportQuery = `
SELECT run_id, topic, status, rounds, source_count, coverage_score, quality_score, confidence, report, created_at
FROM research_reports WHERE run_id = $1`

// GetReport fetches a report row by run ID.
func (s *PostgresStore) GetReport(ctx context.Context, runID string) (*ReportRecord, error) {
	var rec ReportRecord
	if err := s.db.GetContext(ctx, &rec, getReportQuery, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get report %s: %w", runID, err)
	}
	return &rec, nil
}

// Schema creates the reports table. Called at startup; idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS research_reports (
	run_id         TEXT PRIMARY KEY,
	topic          TEXT NOT NULL,
	status         TEXT NOT NULL,
	rounds         INT NOT NULL DEFAULT 0,
	source_count   INT NOT NULL DEFAULT 0,
	coverage_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	quality_score  DOUBLE PRECISION NOT NULL DEFAULT 0,
	confidence     DOUBLE PRECISION NOT NULL DEFAULT 0,
	report         JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// EnsureSchema applies the schema.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
