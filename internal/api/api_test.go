package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/promfleet/promfleet/internal/model"
	"github.com/promfleet/promfleet/internal/notify"
	"github.com/promfleet/promfleet/internal/registry"
	"github.com/promfleet/promfleet/internal/signalbus"
	"github.com/promfleet/promfleet/internal/writer"
)

type nopQueue struct{}

func (nopQueue) Enqueue(ctx context.Context, shard model.Shard) error { return nil }

func newTestApi(t *testing.T, store *registry.MemStore, token string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	bus := signalbus.New(signalbus.NewMemoryStore())
	w := writer.New(nopQueue{}, store.ListShards)
	dir := t.TempDir()
	jobs := map[signalbus.Kind]writer.Job{
		signalbus.KindConfig: {Path: filepath.Join(dir, "promfleet.json"), Mode: 0o644, Render: RenderConfig(store)},
		signalbus.KindRules:  {Path: filepath.Join(dir, "promfleet.rule.yml"), Mode: 0o644, Render: RenderRules(store, "http://site")},
		signalbus.KindURLs:   {Path: filepath.Join(dir, "urls.json"), Mode: 0o644, Render: RenderURLs(store)},
	}

	dispatcher := notify.NewDispatcher(notify.NewRegistry(), store, 16, 1, time.Millisecond)
	alertRouter := notify.NewRouter(store, "http://site", map[string][]string{"heartbeat": {"true"}})

	router := gin.New()
	svc := registry.NewService(store, bus, nil, "http://site")
	if _, err := NewApi(store, svc, bus, w, jobs, alertRouter, dispatcher,
		NoopWebhookCache{}, token, "http://site", router); err != nil {
		t.Fatalf("new api: %v", err)
	}
	return router
}

func TestPostAlertsAccepted(t *testing.T) {
	store := registry.NewMemStore()
	router := newTestApi(t, store, "")

	body := `{"status":"firing","commonLabels":{"alertname":"X"},"alerts":[{"status":"firing","labels":{"alertname":"X"}}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	if len(store.Alerts) != 1 {
		t.Errorf("alerts persisted = %d", len(store.Alerts))
	}
	for _, a := range store.Alerts {
		if !strings.Contains(a.Body, `"alertname":"X"`) {
			t.Errorf("raw body not kept verbatim: %q", a.Body)
		}
	}
}

func TestPostAlertsBadJSON(t *testing.T) {
	store := registry.NewMemStore()
	router := newTestApi(t, store, "")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(store.Alerts) != 0 {
		t.Error("malformed payload was persisted")
	}
}

func TestGetConfigRendersWithoutWriting(t *testing.T) {
	store := registry.NewMemStore()
	router := newTestApi(t, store, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/config", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "[") {
		t.Errorf("body = %q, want json array", rec.Body.String())
	}
}

func TestGetRulesAttachmentHeader(t *testing.T) {
	store := registry.NewMemStore()
	router := newTestApi(t, store, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rules", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("content-disposition = %q", cd)
	}
}

func TestPostConfigWritesAndReturns202(t *testing.T) {
	store := registry.NewMemStore()
	gin.SetMode(gin.TestMode)

	bus := signalbus.New(signalbus.NewMemoryStore())
	w := writer.New(nopQueue{}, store.ListShards)
	dir := t.TempDir()
	path := filepath.Join(dir, "promfleet.json")
	jobs := map[signalbus.Kind]writer.Job{
		signalbus.KindConfig: {Path: path, Mode: 0o644, Render: RenderConfig(store)},
	}
	dispatcher := notify.NewDispatcher(notify.NewRegistry(), store, 16, 1, time.Millisecond)
	alertRouter := notify.NewRouter(store, "http://site", nil)
	router := gin.New()
	svc := registry.NewService(store, bus, nil, "http://site")
	if _, err := NewApi(store, svc, bus, w, jobs, alertRouter, dispatcher,
		NoopWebhookCache{}, "", "http://site", router); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/config", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("artifact not written: %v", err)
	}
}

func TestBearerAuthOnExportEndpoints(t *testing.T) {
	store := registry.NewMemStore()
	router := newTestApi(t, store, "secret")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/config", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/config", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status with token = %d", rec.Code)
	}

	// the webhook stays open regardless of the token
	req = httptest.NewRequest(http.MethodPost, "/api/v1/alerts", strings.NewReader(`{"status":"firing","alerts":[]}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("webhook status = %d", rec.Code)
	}
}
