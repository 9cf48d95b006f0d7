package store

import (
	"context"
	"errors"

	"github.com/RyanBlaney/sonido-vocal/observe"
	"github.com/RyanBlaney/sonido-vocal/report"
)

// Instrument wraps s so every operation records sonido.store.operations
// and a span. A nil s stays nil.
func Instrument(s Store, m *observe.Metrics) Store {
	if s == nil || m == nil {
		return s
	}
	return &instrumented{next: s, metrics: m}
}

type instrumented struct {
	next    Store
	metrics *observe.Metrics
}

func (i *instrumented) record(ctx context.Context, op string, err error) {
	status := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	i.metrics.RecordStoreOp(ctx, op, status)
}

func (i *instrumented) Save(ctx context.Context, r *report.Report) (id int64, err error) {
	ctx, span := observe.StartSpan(ctx, "store.Save")
	defer func() {
		observe.EndSpan(span, err)
		i.record(ctx, "save", err)
	}()
	return i.next.Save(ctx, r)
}

func (i *instrumented) Get(ctx context.Context, id int64) (rec *Record, err error) {
	ctx, span := observe.StartSpan(ctx, "store.Get")
	defer func() {
		if errors.Is(err, ErrNotFound) {
			observe.EndSpan(span, nil)
		} else {
			observe.EndSpan(span, err)
		}
		i.record(ctx, "get", err)
	}()
	return i.next.Get(ctx, id)
}

func (i *instrumented) List(ctx context.Context, limit, offset int) (recs []Record, err error) {
	ctx, span := observe.StartSpan(ctx, "store.List")
	defer func() {
		observe.EndSpan(span, err)
		i.record(ctx, "list", err)
	}()
	return i.next.List(ctx, limit, offset)
}

func (i *instrumented) Ping(ctx context.Context) error {
	return i.next.Ping(ctx)
}

func (i *instrumented) Close() error {
	return i.next.Close()
}
