package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/RyanBlaney/sonido-vocal/logging"
)

func withTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(orig) })
	return exp
}

func TestMiddleware(t *testing.T) {
	exp := withTracer(t)
	m, reader := newTestMetrics(t)

	mux := http.NewServeMux()
	var cid string
	mux.HandleFunc("GET /api/reports/{id}", func(w http.ResponseWriter, r *http.Request) {
		cid = CorrelationID(r.Context())
		w.WriteHeader(http.StatusNotFound)
	})
	handler := Middleware(m, &logging.NoOpLogger{})(mux)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports/7", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if len(cid) != 32 {
		t.Errorf("correlation ID = %q, want 32 hex chars", cid)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != cid {
		t.Errorf("X-Correlation-ID = %q, want %q", got, cid)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "HTTP GET /api/reports/{id}" {
		t.Errorf("span name = %q", spans[0].Name)
	}

	met := findMetric(collect(t, reader), "sonido.http.request.duration")
	if met == nil {
		t.Fatal("metric sonido.http.request.duration not found")
	}
	hist := met.Data.(metricdata.Histogram[float64])
	if len(hist.DataPoints) != 1 {
		t.Fatalf("got %d data points, want 1", len(hist.DataPoints))
	}
	route, _ := hist.DataPoints[0].Attributes.Value(attribute.Key("route"))
	if route.AsString() != "GET /api/reports/{id}" {
		t.Errorf("route attribute = %q, want the mux pattern", route.AsString())
	}
}

func TestEndSpanRecordsError(t *testing.T) {
	exp := withTracer(t)
	_, span := StartSpan(context.Background(), "stage")
	EndSpan(span, context.Canceled)

	spans := exp.GetSpans()
	if len(spans) != 1 || len(spans[0].Events) == 0 {
		t.Fatalf("expected one span with an error event, got %+v", spans)
	}
}
