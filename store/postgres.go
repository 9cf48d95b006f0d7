package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RyanBlaney/sonido-vocal/report"
)

// PostgresSchema is the DDL applied by PostgresStore.Migrate.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS analysis_results (
    id                  BIGSERIAL PRIMARY KEY,
    pitch               DOUBLE PRECISION,
    tempo               DOUBLE PRECISION,
    spectral_centroid   DOUBLE PRECISION,
    zcr                 DOUBLE PRECISION,
    mfcc                TEXT,
    pitch_comment       TEXT,
    tempo_comment       TEXT,
    spectral_comment    TEXT,
    zcr_comment         TEXT,
    pitch_comparison    TEXT,
    tempo_comparison    TEXT,
    spectral_comparison TEXT,
    locale              TEXT NOT NULL DEFAULT '',
    report              JSONB NOT NULL DEFAULT '{}',
    created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_analysis_results_created_at ON analysis_results(created_at);
`

// DB is the subset of *pgxpool.Pool used by PostgresStore.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// PostgresStore is a Store backed by PostgreSQL.
type PostgresStore struct {
	db    DB
	close func()
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps an existing pool or connection. The caller owns
// db; Close is a no-op.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db, close: func() {}}
}

// OpenPostgres creates a pool for dsn, checks connectivity and migrates.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("store: postgres dsn is empty")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}
	s := &PostgresStore{db: pool, close: pool.Close}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the analysis_results table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("store: postgres migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, r *report.Report) (int64, error) {
	enc, err := encode(r)
	if err != nil {
		return 0, err
	}

	const query = `
		INSERT INTO analysis_results (
			pitch, tempo, spectral_centroid, zcr, mfcc,
			pitch_comment, tempo_comment, spectral_comment, zcr_comment,
			pitch_comparison, tempo_comparison, spectral_comparison,
			locale, report
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING id`

	var id int64
	err = s.db.QueryRow(ctx, query,
		r.PitchHz, r.TempoBPM, r.SpectralCentroidHz, r.ZeroCrossingRate, enc.mfcc,
		r.Comments.PitchComment, r.Comments.TempoComment, r.Comments.SpectralComment, r.Comments.ZCRComment,
		r.Comments.PitchComparison, r.Comments.TempoComparison, r.Comments.SpectralComparison,
		r.Locale, enc.document,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: postgres insert: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*Record, error) {
	var (
		rec Record
		doc []byte
	)
	err := s.db.QueryRow(ctx,
		"SELECT id, report, created_at FROM analysis_results WHERE id = $1", id,
	).Scan(&rec.ID, &doc, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: postgres get %d: %w", id, err)
	}
	if rec.Report, err = decode(doc); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]Record, error) {
	limit, offset = normalizePage(limit, offset)
	rows, err := s.db.Query(ctx,
		"SELECT id, report, created_at FROM analysis_results ORDER BY id DESC LIMIT $1 OFFSET $2",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("store: postgres list: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			rec Record
			doc []byte
		)
		if err := rows.Scan(&rec.ID, &doc, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: postgres scan: %w", err)
		}
		if rec.Report, err = decode(doc); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.close()
	return nil
}
