package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/canaldelcongreso/portal/pkg/upload"
)

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func metricHistogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", o)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	if m.Histogram == nil {
		t.Fatal("expected histogram metric to have Histogram field")
	}
	return m.GetHistogram().GetSampleCount()
}

func newMetricsRouter(m *Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(m.Handler)
	r.Post("/api/upload", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	r.Get("/uploads/*", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func TestMetricsHandler_LabelsByRoutePattern(t *testing.T) {
	m := NewMetrics(WithRegistry(prometheus.NewRegistry()))
	h := newMetricsRouter(m)

	for _, path := range []string{"/uploads/news/a.png", "/uploads/audio/b.mp3"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d", path, rec.Code)
		}
	}

	if got := metricCounterValue(t, m.requestsTotal.WithLabelValues(http.MethodGet, "/uploads/*", "200")); got != 2 {
		t.Fatalf("http_requests_total(GET,/uploads/*,200)=%v, want 2", got)
	}
	if got := metricHistogramCount(t, m.requestDuration.WithLabelValues(http.MethodGet, "/uploads/*")); got != 2 {
		t.Fatalf("http_request_duration_seconds count=%v, want 2", got)
	}
}

func TestMetricsHandler_RecordsStatus(t *testing.T) {
	m := NewMetrics(WithRegistry(prometheus.NewRegistry()))
	h := newMetricsRouter(m)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/upload", nil))

	if got := metricCounterValue(t, m.requestsTotal.WithLabelValues(http.MethodPost, "/api/upload", "400")); got != 1 {
		t.Fatalf("http_requests_total(POST,/api/upload,400)=%v, want 1", got)
	}
}

func TestMetricsHandler_UnmatchedRoute(t *testing.T) {
	m := NewMetrics(WithRegistry(prometheus.NewRegistry()))
	h := newMetricsRouter(m)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wp-admin/setup.php", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if got := metricCounterValue(t, m.requestsTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "404")); got != 1 {
		t.Fatalf("http_requests_total(unmatched)=%v, want 1", got)
	}
}

func TestMetrics_UploadObserver(t *testing.T) {
	m := NewMetrics(WithRegistry(prometheus.NewRegistry()))

	m.Stored(upload.Artifact{Class: upload.ClassAudio, Size: 1024})
	m.Stored(upload.Artifact{Class: upload.ClassAudio, Size: 2048})
	m.Stored(upload.Artifact{Class: upload.ClassImage, Size: 10})
	m.Rejected(upload.CheckSize(upload.ClassImage, 11*upload.MB))
	m.Rejected(upload.CheckType("text/plain"))
	m.Rejected(errors.New("disk full"))

	if got := metricCounterValue(t, m.uploadsTotal.WithLabelValues("audio")); got != 2 {
		t.Fatalf("uploads_total(audio)=%v, want 2", got)
	}
	if got := metricCounterValue(t, m.uploadBytes.WithLabelValues("audio")); got != 3072 {
		t.Fatalf("upload_bytes_total(audio)=%v, want 3072", got)
	}
	if got := metricCounterValue(t, m.uploadsTotal.WithLabelValues("image")); got != 1 {
		t.Fatalf("uploads_total(image)=%v, want 1", got)
	}
	for _, reason := range []string{"too_large", "disallowed_type", "internal"} {
		if got := metricCounterValue(t, m.rejectionsTotal.WithLabelValues(reason)); got != 1 {
			t.Fatalf("upload_rejections_total(%s)=%v, want 1", reason, got)
		}
	}
}

func TestNewMetrics_Options(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(
		WithRegistry(reg),
		WithNamespace("cms"),
		WithSubsystem("media"),
		WithConstLabels(prometheus.Labels{"env": "test"}),
		WithBuckets([]float64{0.1, 1}),
	)
	m.Stored(upload.Artifact{Class: upload.ClassDocument, Size: 1})

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "cms_media_uploads_total" {
			found = true
			lbls := f.GetMetric()[0].GetLabel()
			hasEnv := false
			for _, l := range lbls {
				if l.GetName() == "env" && l.GetValue() == "test" {
					hasEnv = true
				}
			}
			if !hasEnv {
				t.Fatalf("const label env=test missing: %v", lbls)
			}
		}
	}
	if !found {
		t.Fatal("cms_media_uploads_total not registered")
	}
}
