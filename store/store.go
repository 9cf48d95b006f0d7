// Package store persists assessment reports. The analysis_results table
// keeps the flat columns of earlier deployments next to the full report
// document. Tables created without the report column are upgraded in place
// when opened.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-vocal/report"
)

// ErrNotFound is returned by Get when no report has the requested id.
var ErrNotFound = errors.New("store: report not found")

// Record is a persisted report.
type Record struct {
	ID        int64          `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	Report    *report.Report `json:"report"`
}

// Store saves and retrieves reports. Implementations are safe for
// concurrent use.
type Store interface {
	Save(ctx context.Context, r *report.Report) (int64, error)
	Get(ctx context.Context, id int64) (*Record, error)
	// List returns records newest first.
	List(ctx context.Context, limit, offset int) ([]Record, error)
	Ping(ctx context.Context) error
	Close() error
}

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// Config selects and locates the backend.
type Config struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Open connects to the configured backend and applies its schema. The
// "none" driver returns a nil Store and no error.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverNone:
		return nil, nil
	case DriverSQLite, "":
		s, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		s, err := OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return min(limit, maxListLimit), max(offset, 0)
}

// row is the column form of a report shared by both backends.
type row struct {
	mfcc     string
	document []byte
}

func encode(r *report.Report) (row, error) {
	if r == nil {
		return row{}, errors.New("store: nil report")
	}
	mfcc, err := json.Marshal(r.MFCC)
	if err != nil {
		return row{}, fmt.Errorf("store: marshal mfcc: %w", err)
	}
	doc, err := json.Marshal(r)
	if err != nil {
		return row{}, fmt.Errorf("store: marshal report: %w", err)
	}
	return row{mfcc: string(mfcc), document: doc}, nil
}

func decode(doc []byte) (*report.Report, error) {
	var r report.Report
	if err := json.Unmarshal(doc, &r); err != nil {
		return nil, fmt.Errorf("store: unmarshal report: %w", err)
	}
	return &r, nil
}
