package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/RyanBlaney/sonido-vocal/analysis"
	"github.com/RyanBlaney/sonido-vocal/report"
)

//go:embed schema.sql
var sqliteSchema string

const sqliteIndexes = `CREATE INDEX IF NOT EXISTS idx_analysis_results_created_at ON analysis_results(created_at);`

// Columns missing from tables created before reports were stored whole.
// ADD COLUMN cannot add a NOT NULL column without a default, so created_at
// stays nullable on upgraded tables.
var sqliteAddedColumns = []struct{ name, ddl string }{
	{"locale", "locale TEXT NOT NULL DEFAULT ''"},
	{"report", "report TEXT NOT NULL DEFAULT '{}'"},
	{"created_at", "created_at TIMESTAMP"},
}

// legacyLocale is the language comments were written in before the locale
// column existed.
const legacyLocale = "zh"

// SQLiteStore is a Store backed by a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at path and applies
// the embedded schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("store: sqlite path is empty")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %q: %w", path, err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		return fmt.Errorf("store: sqlite pragmas: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("store: sqlite migrate: %w", err)
	}
	if err := s.addMissingColumns(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, sqliteIndexes); err != nil {
		return fmt.Errorf("store: sqlite indexes: %w", err)
	}
	return nil
}

func (s *SQLiteStore) addMissingColumns(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info(analysis_results)")
	if err != nil {
		return fmt.Errorf("store: sqlite table info: %w", err)
	}
	existing := make(map[string]bool)
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			rows.Close()
			return fmt.Errorf("store: sqlite table info: %w", err)
		}
		existing[name] = true
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("store: sqlite table info: %w", err)
	}

	for _, col := range sqliteAddedColumns {
		if existing[col.name] {
			continue
		}
		if _, err := s.db.ExecContext(ctx, "ALTER TABLE analysis_results ADD COLUMN "+col.ddl); err != nil {
			return fmt.Errorf("store: sqlite add column %s: %w", col.name, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, r *report.Report) (int64, error) {
	enc, err := encode(r)
	if err != nil {
		return 0, err
	}

	const query = `
	INSERT INTO analysis_results (
		pitch, tempo, spectral_centroid, zcr, mfcc,
		pitch_comment, tempo_comment, spectral_comment, zcr_comment,
		pitch_comparison, tempo_comparison, spectral_comparison,
		locale, report, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := s.db.ExecContext(ctx, query,
		r.PitchHz, r.TempoBPM, r.SpectralCentroidHz, r.ZeroCrossingRate, enc.mfcc,
		r.Comments.PitchComment, r.Comments.TempoComment, r.Comments.SpectralComment, r.Comments.ZCRComment,
		r.Comments.PitchComparison, r.Comments.TempoComparison, r.Comments.SpectralComparison,
		r.Locale, string(enc.document), time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("store: sqlite insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: sqlite last insert id: %w", err)
	}
	return id, nil
}

const sqliteRecordColumns = `id, report, created_at, locale,
	pitch, tempo, spectral_centroid, zcr, mfcc,
	pitch_comment, tempo_comment, spectral_comment, zcr_comment,
	pitch_comparison, tempo_comparison, spectral_comparison`

// flatRow holds the per-feature columns. Rows written before the report
// column existed carry only these.
type flatRow struct {
	pitch, tempo, centroid, zcr sql.NullFloat64
	mfcc                        sql.NullString
	comments                    [7]sql.NullString
}

func scanSQLiteRecord(scan func(dest ...any) error) (*Record, error) {
	var (
		rec     Record
		doc     string
		created sql.NullTime
		locale  string
		flat    flatRow
	)
	dest := []any{&rec.ID, &doc, &created, &locale,
		&flat.pitch, &flat.tempo, &flat.centroid, &flat.zcr, &flat.mfcc}
	for i := range flat.comments {
		dest = append(dest, &flat.comments[i])
	}
	if err := scan(dest...); err != nil {
		return nil, err
	}
	rec.CreatedAt = created.Time

	if doc == "" || doc == "{}" {
		rec.Report = flat.toReport(locale)
		return &rec, nil
	}
	var err error
	if rec.Report, err = decode([]byte(doc)); err != nil {
		return nil, err
	}
	return &rec, nil
}

// toReport rebuilds a Report from the flat columns. Classes, recommendations
// and suggestions are derived from the stored features against the default
// benchmark; stored comment text is kept as written.
func (f flatRow) toReport(locale string) *report.Report {
	fs := analysis.FeatureSet{
		PitchHz:            f.pitch.Float64,
		TempoBPM:           f.tempo.Float64,
		SpectralCentroidHz: f.centroid.Float64,
		ZeroCrossingRate:   f.zcr.Float64,
	}
	if locale == "" {
		locale = legacyLocale
	}
	r := report.Synthesize(fs, report.DefaultBenchmark(), report.WithLocale(locale))

	// Older rows hold a printed list of floats, which is valid JSON unless
	// it contains nan.
	r.MFCC = []float64{}
	if f.mfcc.Valid {
		var mfcc []float64
		if err := json.Unmarshal([]byte(f.mfcc.String), &mfcc); err == nil {
			r.MFCC = mfcc
		}
	}

	c := &r.Comments
	for i, field := range []*string{
		&c.PitchComment, &c.TempoComment, &c.SpectralComment, &c.ZCRComment,
		&c.PitchComparison, &c.TempoComparison, &c.SpectralComparison,
	} {
		if f.comments[i].Valid && f.comments[i].String != "" {
			*field = f.comments[i].String
		}
	}
	return r
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+sqliteRecordColumns+" FROM analysis_results WHERE id = ?", id)
	rec, err := scanSQLiteRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: sqlite get %d: %w", id, err)
	}
	return rec, nil
}

func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]Record, error) {
	limit, offset = normalizePage(limit, offset)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+sqliteRecordColumns+" FROM analysis_results ORDER BY id DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("store: sqlite list: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("store: sqlite scan: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
