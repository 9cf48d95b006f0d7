package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type mockRow struct {
	scanFunc func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

type mockRows struct {
	data [][]any
	idx  int
}

func (r *mockRows) Close()                                       {}
func (r *mockRows) Err() error                                   { return nil }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }

func (r *mockRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *mockRows) Scan(dest ...any) error {
	return assign(r.data[r.idx-1], dest)
}

func assign(row []any, dest []any) error {
	if len(dest) != len(row) {
		return fmt.Errorf("scan: expected %d columns, got %d destinations", len(row), len(dest))
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *int64:
			*d = v.(int64)
		case *[]byte:
			*d = v.([]byte)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported type at index %d: %T", i, dest[i])
		}
	}
	return nil
}

type mockDB struct {
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRowFunc != nil {
		return m.queryRowFunc(ctx, sql, args...)
	}
	return &mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
}

func (m *mockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, sql, args...)
	}
	return &mockRows{}, nil
}

func (m *mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if m.execFunc != nil {
		return m.execFunc(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

func (m *mockDB) Ping(context.Context) error { return nil }

func TestPostgresSave(t *testing.T) {
	var gotArgs []any
	db := &mockDB{
		queryRowFunc: func(_ context.Context, sql string, args ...any) pgx.Row {
			if !strings.Contains(sql, "RETURNING id") {
				t.Errorf("unexpected sql: %s", sql)
			}
			gotArgs = args
			return &mockRow{scanFunc: func(dest ...any) error {
				*dest[0].(*int64) = 7
				return nil
			}}
		},
	}
	s := NewPostgresStore(db)

	id, err := s.Save(context.Background(), sampleReport(250))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id != 7 {
		t.Errorf("id = %d, want 7", id)
	}
	if len(gotArgs) != 14 {
		t.Fatalf("len(args) = %d, want 14", len(gotArgs))
	}
	if gotArgs[0] != 250.0 {
		t.Errorf("pitch arg = %v, want 250", gotArgs[0])
	}
	if gotArgs[12] != "zh" {
		t.Errorf("locale arg = %v, want zh", gotArgs[12])
	}
	if !json.Valid(gotArgs[13].([]byte)) {
		t.Errorf("report arg is not valid JSON")
	}
}

func TestPostgresGet(t *testing.T) {
	doc, err := json.Marshal(sampleReport(180))
	if err != nil {
		t.Fatal(err)
	}
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	db := &mockDB{
		queryRowFunc: func(_ context.Context, _ string, args ...any) pgx.Row {
			if args[0] != int64(3) {
				return &mockRow{scanFunc: func(...any) error { return pgx.ErrNoRows }}
			}
			return &mockRow{scanFunc: func(dest ...any) error {
				return assign([]any{int64(3), doc, created}, dest)
			}}
		},
	}
	s := NewPostgresStore(db)

	rec, err := s.Get(context.Background(), 3)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.ID != 3 || rec.Report.PitchHz != 180 || !rec.CreatedAt.Equal(created) {
		t.Errorf("rec = %+v", rec)
	}

	if _, err := s.Get(context.Background(), 4); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPostgresList(t *testing.T) {
	docA, _ := json.Marshal(sampleReport(300))
	docB, _ := json.Marshal(sampleReport(200))
	now := time.Now()
	var gotArgs []any
	db := &mockDB{
		queryFunc: func(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
			gotArgs = args
			return &mockRows{data: [][]any{
				{int64(2), docA, now},
				{int64(1), docB, now},
			}}, nil
		},
	}
	s := NewPostgresStore(db)

	recs, err := s.List(context.Background(), 0, -5)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 || recs[0].ID != 2 || recs[1].Report.PitchHz != 200 {
		t.Errorf("recs = %+v", recs)
	}
	if gotArgs[0] != defaultListLimit || gotArgs[1] != 0 {
		t.Errorf("page args = %v, want [%d 0]", gotArgs, defaultListLimit)
	}
}

func TestPostgresMigrate(t *testing.T) {
	var ran string
	db := &mockDB{
		execFunc: func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
			ran = sql
			return pgconn.CommandTag{}, nil
		},
	}
	if err := NewPostgresStore(db).Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if !strings.Contains(ran, "CREATE TABLE IF NOT EXISTS analysis_results") {
		t.Errorf("Migrate ran %q", ran)
	}

	failing := &mockDB{
		execFunc: func(context.Context, string, ...any) (pgconn.CommandTag, error) {
			return pgconn.CommandTag{}, errors.New("boom")
		},
	}
	if err := NewPostgresStore(failing).Migrate(context.Background()); err == nil {
		t.Error("Migrate() error = nil, want error")
	}
}

func TestOpenPostgresRequiresDSN(t *testing.T) {
	if _, err := OpenPostgres(context.Background(), ""); err == nil {
		t.Error("OpenPostgres(\"\") error = nil")
	}
}
