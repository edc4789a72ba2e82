// Package report persists an archive row per pipeline run in PostgreSQL.
// The archive is optional: it is only wired up when a DSN is configured,
// and a run never fails because archiving failed.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mirrorpen/mirrorpen/internal/workflow"
	"github.com/mirrorpen/mirrorpen/pkg/analysis"
)

// Schema is the SQL DDL for the rewrite_runs table. Execute it via
// [Store.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS rewrite_runs (
    id                 BIGSERIAL PRIMARY KEY,
    mode               TEXT NOT NULL,
    status             TEXT NOT NULL,
    message            TEXT NOT NULL DEFAULT '',
    chunks             INTEGER NOT NULL DEFAULT 0,
    failed_chunks      INTEGER NOT NULL DEFAULT 0,
    failed_sentences   INTEGER NOT NULL DEFAULT 0,
    sample_chars       INTEGER NOT NULL DEFAULT 0,
    draft_chars        INTEGER NOT NULL DEFAULT 0,
    output_chars       INTEGER NOT NULL DEFAULT 0,
    number_retention   DOUBLE PRECISION NOT NULL DEFAULT 0,
    acronym_retention  DOUBLE PRECISION NOT NULL DEFAULT 0,
    mirror_scored      BOOLEAN NOT NULL DEFAULT FALSE,
    draft_to_sample    DOUBLE PRECISION NOT NULL DEFAULT 0,
    standard_to_sample DOUBLE PRECISION NOT NULL DEFAULT 0,
    improvement        DOUBLE PRECISION NOT NULL DEFAULT 0,
    started_at         TIMESTAMPTZ NOT NULL,
    finished_at        TIMESTAMPTZ NOT NULL,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_rewrite_runs_created ON rewrite_runs(created_at);
`

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// RunRecord is one archived pipeline run. ID and CreatedAt are assigned by
// the database on insert.
type RunRecord struct {
	ID int64

	Mode    string
	Status  string
	Message string

	Chunks          int
	FailedChunks    int
	FailedSentences int

	// Rune counts taken from the style fingerprints. Zero when the run
	// produced no full analysis.
	SampleChars int
	DraftChars  int
	OutputChars int

	NumberRetention  float64
	AcronymRetention float64

	// MirrorScored reports whether the mirror fields below are meaningful.
	// A run without a sample text has fidelity guardrails only.
	MirrorScored     bool
	DraftToSample    float64
	StandardToSample float64
	Improvement      float64

	StartedAt  time.Time
	FinishedAt time.Time
	CreatedAt  time.Time
}

// NewRunRecord flattens a workflow result into an archive row. Mirror and
// fingerprint fields are populated only when the run carried a full analysis.
func NewRunRecord(mode workflow.Mode, res *workflow.Result, started, finished time.Time) RunRecord {
	rec := RunRecord{
		Mode:            string(mode),
		Status:          string(res.Status),
		Message:         res.Message,
		Chunks:          res.Chunks,
		FailedChunks:    res.FailedChunks,
		FailedSentences: res.FailedSentences,
		StartedAt:       started,
		FinishedAt:      finished,
	}
	switch rep := res.Report.(type) {
	case analysis.Full:
		rec.NumberRetention = rep.Fidelity.NumberRetention
		rec.AcronymRetention = rep.Fidelity.AcronymRetention
		rec.MirrorScored = true
		rec.DraftToSample = rep.Mirror.DraftToSample
		rec.StandardToSample = rep.Mirror.StandardToSample
		rec.Improvement = rep.Mirror.Improvement
		rec.SampleChars = rep.Sample.RawChars
		rec.DraftChars = rep.Draft.RawChars
		rec.OutputChars = rep.Output.RawChars
	case analysis.FidelityOnly:
		rec.NumberRetention = rep.Fidelity.NumberRetention
		rec.AcronymRetention = rep.Fidelity.AcronymRetention
	}
	return rec
}

// Validate checks the fields the schema cannot default.
func (r *RunRecord) Validate() error {
	var errs []error
	if r.Mode == "" {
		errs = append(errs, errors.New("mode must not be empty"))
	}
	if r.Status == "" {
		errs = append(errs, errors.New("status must not be empty"))
	}
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		errs = append(errs, errors.New("started_at and finished_at must be set"))
	} else if r.FinishedAt.Before(r.StartedAt) {
		errs = append(errs, errors.New("finished_at must not precede started_at"))
	}
	return errors.Join(errs...)
}

// Store archives run records in a PostgreSQL database.
type Store struct {
	db   DB
	pool *pgxpool.Pool
}

// NewStore creates a [Store] on an existing connection or pool. The caller
// is responsible for calling [Store.Migrate] before saving runs.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Open connects to the database at dsn, verifies the connection, and runs
// [Store.Migrate]. The returned store owns the pool; release it with
// [Store.Close].
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("report: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("report: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("report: ping: %w", err)
	}
	s := &Store{db: pool, pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool if this store owns one. Stores built
// with [NewStore] are unaffected.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if s.pool != nil {
		return s.pool.Ping(ctx)
	}
	_, err := s.db.Exec(ctx, `SELECT 1`)
	return err
}

// Migrate executes the [Schema] DDL, creating the rewrite_runs table and
// index if they do not already exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("report: migrate: %w", err)
	}
	return nil
}

// SaveRun inserts one archive row and fills in the database-assigned ID and
// CreatedAt on the record.
func (s *Store) SaveRun(ctx context.Context, rec *RunRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("report: save run: %w", err)
	}

	const query = `
		INSERT INTO rewrite_runs (
			mode, status, message,
			chunks, failed_chunks, failed_sentences,
			sample_chars, draft_chars, output_chars,
			number_retention, acronym_retention,
			mirror_scored, draft_to_sample, standard_to_sample, improvement,
			started_at, finished_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING id, created_at`

	err := s.db.QueryRow(ctx, query,
		rec.Mode, rec.Status, rec.Message,
		rec.Chunks, rec.FailedChunks, rec.FailedSentences,
		rec.SampleChars, rec.DraftChars, rec.OutputChars,
		rec.NumberRetention, rec.AcronymRetention,
		rec.MirrorScored, rec.DraftToSample, rec.StandardToSample, rec.Improvement,
		rec.StartedAt, rec.FinishedAt,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("report: save run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit archived runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	const query = `
		SELECT id, mode, status, message,
		       chunks, failed_chunks, failed_sentences,
		       sample_chars, draft_chars, output_chars,
		       number_retention, acronym_retention,
		       mirror_scored, draft_to_sample, standard_to_sample, improvement,
		       started_at, finished_at, created_at
		FROM rewrite_runs
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("report: recent runs: %w", err)
	}
	defer rows.Close()

	var recs []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(
			&rec.ID, &rec.Mode, &rec.Status, &rec.Message,
			&rec.Chunks, &rec.FailedChunks, &rec.FailedSentences,
			&rec.SampleChars, &rec.DraftChars, &rec.OutputChars,
			&rec.NumberRetention, &rec.AcronymRetention,
			&rec.MirrorScored, &rec.DraftToSample, &rec.StandardToSample, &rec.Improvement,
			&rec.StartedAt, &rec.FinishedAt, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("report: recent runs scan: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("report: recent runs: %w", err)
	}
	return recs, nil
}
