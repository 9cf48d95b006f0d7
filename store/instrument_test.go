package store

import (
	"context"
	"path/filepath"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/RyanBlaney/sonido-vocal/observe"
)

func TestInstrumentRecordsOperations(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	base, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "i.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	s := Instrument(base, m)
	defer s.Close()

	ctx := context.Background()
	id, err := s.Save(ctx, sampleReport(220))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := s.Get(ctx, id); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := s.Get(ctx, id+100); err == nil {
		t.Fatal("Get(missing) error = nil")
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	statuses := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "sonido.store.operations" {
				continue
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("unexpected data type %T", met.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
				status, _ := dp.Attributes.Value("status")
				statuses[status.AsString()] += dp.Value
			}
		}
	}
	if total != 3 {
		t.Errorf("total ops = %d, want 3", total)
	}
	if statuses["ok"] != 2 || statuses["not_found"] != 1 {
		t.Errorf("statuses = %v, want ok=2 not_found=1", statuses)
	}
}

func TestInstrumentNil(t *testing.T) {
	if s := Instrument(nil, nil); s != nil {
		t.Errorf("Instrument(nil) = %v, want nil", s)
	}
}
