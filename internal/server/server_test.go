package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/canaldelcongreso/portal/internal/config"
	"github.com/canaldelcongreso/portal/pkg/auth"
	"github.com/canaldelcongreso/portal/pkg/upload"
)

var pngData = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}, []byte("pixels")...)

const testSecret = "server-test-secret"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, mutate func(*Deps)) *Server {
	t.Helper()
	cfg := config.New()
	cfg.Storage.Root = t.TempDir()

	store, err := NewStore(cfg)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	deps := Deps{Config: cfg, Logger: discardLogger(), Store: store}
	if mutate != nil {
		mutate(&deps)
	}
	return New(deps)
}

func uploadRequest(t *testing.T, filename, category string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	if category != "" {
		mw.WriteField("type", category)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func signedCookie(t *testing.T) *http.Cookie {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "editor-7",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return &http.Cookie{Name: auth.DefaultCookieName, Value: raw}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestUploadThenServe(t *testing.T) {
	s := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadRequest(t, "portada.png", "news", pngData))
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var res upload.Result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(res.URL, "/uploads/news/") || res.Type != upload.ClassImage {
		t.Fatalf("result = %+v", res)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, res.URL, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET %s status = %d", res.URL, rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), pngData) {
		t.Error("served bytes differ from uploaded bytes")
	}
	if got := rec.Header().Get("Cache-Control"); !strings.Contains(got, "immutable") {
		t.Errorf("Cache-Control = %q", got)
	}
}

func TestStaticNotFound(t *testing.T) {
	s := newTestServer(t, nil)

	for _, p := range []string{"/uploads/news/missing.png", "/uploads/news", "/uploads/%2e%2e/portal.json"} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", p, rec.Code)
		}
	}
}

func TestStaticRelPath(t *testing.T) {
	h := newStaticHandler(nil, "/uploads")

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"/uploads/news/a.png", "news/a.png", true},
		{"/uploads/audio/b.mp3", "audio/b.mp3", true},
		{"/uploads/", "", false},
		{"/other/a.png", "", false},
		{"/uploads/../etc/passwd", "", false},
		{"/uploads/news/./a.png", "", false},
		{"/uploads//etc/passwd", "", false},
		{"/uploads/news\\..\\a.png", "", false},
		{"/uploads/a\x00.png", "", false},
	}
	for _, tt := range tests {
		got, ok := h.relPath(tt.path)
		if got != tt.want || ok != tt.ok {
			t.Errorf("relPath(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}

func TestIsGeneratedName(t *testing.T) {
	if !isGeneratedName("news/3f1c2b8e-9a4d-4c1e-8f2a-1b2c3d4e5f60.png") {
		t.Error("uuid name should be recognized")
	}
	if isGeneratedName("news/logo.png") || isGeneratedName("news/3f1c2b8e-9a4d-4c1e-8f2a-1b2c3d4e5f60") {
		t.Error("non-generated names should not be recognized")
	}
}

func TestUploadRequiresAuthWhenEnabled(t *testing.T) {
	v, err := auth.NewVerifier(testSecret)
	if err != nil {
		t.Fatal(err)
	}
	s := newTestServer(t, func(d *Deps) {
		d.Config.Auth.Enabled = true
		d.Config.Auth.Secret = testSecret
		d.Verifier = v
	})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadRequest(t, "a.png", "", pngData))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error":"Unauthorized"`) {
		t.Errorf("body = %q", rec.Body.String())
	}

	req := uploadRequest(t, "a.png", "", pngData)
	req.AddCookie(signedCookie(t))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestReadyz(t *testing.T) {
	healthy := newTestServer(t, func(d *Deps) {
		d.Checks = map[string]Check{
			"database": func(context.Context) error { return nil },
		}
	})
	rec := httptest.NewRecorder()
	healthy.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	broken := newTestServer(t, func(d *Deps) {
		d.Checks = map[string]Check{
			"database": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		}
	})
	rec = httptest.NewRecorder()
	broken.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "unavailable" || body.Checks["redis"] != "unavailable" || body.Checks["database"] != "ok" {
		t.Errorf("body = %+v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadRequest(t, "a.png", "radio", pngData))
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadRequest(t, "a.bin", "", []byte("????")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("rejected upload status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	out := rec.Body.String()
	for _, want := range []string{
		`portal_http_requests_total{method="POST",route="/api/upload",status="200"} 1`,
		`portal_uploads_total{class="image"} 1`,
		`portal_upload_rejections_total{reason="undeterminable_type"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNewStore(t *testing.T) {
	cfg := config.New()
	cfg.Storage.Root = t.TempDir()
	store, err := NewStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*upload.DiskStore); !ok {
		t.Errorf("disk backend returned %T", store)
	}

	cfg.Storage.Backend = config.BackendS3
	cfg.Storage.S3.Bucket = "media"
	cfg.Storage.S3.Region = "us-east-1"
	cfg.Storage.S3.PublicURL = "https://cdn.example.org"
	store, err = NewStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*upload.S3Store); !ok {
		t.Errorf("s3 backend returned %T", store)
	}

	cfg.Storage.Backend = "ftp"
	if _, err := NewStore(cfg); err == nil {
		t.Error("unknown backend should fail")
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s := newTestServer(t, func(d *Deps) {
		d.Config.Server.Addr = "127.0.0.1:0"
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
