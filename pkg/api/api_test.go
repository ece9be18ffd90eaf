package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/genolytics/labmetrics/pkg/api/reportstore"
	"github.com/genolytics/labmetrics/pkg/config"
)

func setupTestServer(t *testing.T, cfg *config.APIConfig) (*server, http.Handler) {
	t.Helper()

	if cfg == nil {
		cfg = &config.APIConfig{}
	}

	cfg.Database = config.APIDatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteDatabaseConfig{Path: ":memory:"},
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	store := reportstore.NewStore(log, &cfg.Database)
	require.NoError(t, store.Start(context.Background()))
	t.Cleanup(func() { _ = store.Stop() })

	srv := &server{
		log:   log,
		cfg:   cfg,
		store: store,
		done:  make(chan struct{}),
	}

	return srv, srv.buildRouter()
}

func seedSnapshot(t *testing.T, srv *server, id string, generatedAt time.Time) {
	t.Helper()

	payload := `{"id":"` + id + `","billable_count":42}`

	require.NoError(t, srv.store.UpsertSnapshot(context.Background(),
		&reportstore.Snapshot{
			ID:            id,
			GeneratedAt:   generatedAt,
			Path:          "/reports/report-" + id + ".json",
			BillableCount: 42,
			UsageCount:    50,
			Payload:       payload,
			FileModTime:   generatedAt,
			IndexedAt:     time.Now().UTC(),
		}))
}

func TestHandleHealth(t *testing.T) {
	_, router := setupTestServer(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHandleListReports(t *testing.T) {
	srv, router := setupTestServer(t, nil)

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	seedSnapshot(t, srv, "older", base)
	seedSnapshot(t, srv, "newer", base.Add(time.Hour))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports/", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body []snapshotSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 2)
	assert.Equal(t, "newer", body[0].ID)
	assert.Equal(t, 42, body[0].BillableCount)

	// Limit caps the result.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(
		http.MethodGet, "/api/v1/reports/?limit=1", nil,
	))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body, 1)
}

func TestHandleListReports_InvalidLimit(t *testing.T) {
	_, router := setupTestServer(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(
		http.MethodGet, "/api/v1/reports/?limit=banana", nil,
	))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetReport(t *testing.T) {
	srv, router := setupTestServer(t, nil)
	seedSnapshot(t, srv, "abc", time.Now().UTC())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(
		http.MethodGet, "/api/v1/reports/abc", nil,
	))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"abc","billable_count":42}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(
		http.MethodGet, "/api/v1/reports/missing", nil,
	))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleLatestReport(t *testing.T) {
	srv, router := setupTestServer(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(
		http.MethodGet, "/api/v1/reports/latest", nil,
	))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	seedSnapshot(t, srv, "old", base)
	seedSnapshot(t, srv, "new", base.Add(time.Hour))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(
		http.MethodGet, "/api/v1/reports/latest", nil,
	))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"new"`)
}

func TestBasicAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.APIConfig{
		Auth: config.APIAuthConfig{
			Enabled: true,
			Users: []config.BasicAuthUser{
				{Username: "ops", PasswordHash: string(hash)},
			},
		},
	}

	srv, router := setupTestServer(t, cfg)
	seedSnapshot(t, srv, "abc", time.Now().UTC())

	// Health stays public.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Reports require credentials.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(
		http.MethodGet, "/api/v1/reports/abc", nil,
	))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong password is rejected.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/abc", nil)
	req.SetBasicAuth("ops", "wrong")
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid credentials pass.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/reports/abc", nil)
	req.SetBasicAuth("ops", "hunter2")
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := &config.APIConfig{
		Server: config.APIServerConfig{
			RateLimit: config.RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 2,
			},
		},
	}

	srv, router := setupTestServer(t, cfg)
	seedSnapshot(t, srv, "abc", time.Now().UTC())

	var lastCode int

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/abc", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		router.ServeHTTP(rec, req)
		lastCode = rec.Code
	}

	assert.Equal(t, http.StatusTooManyRequests, lastCode)
}

func TestVisitorRegistry(t *testing.T) {
	vr := newVisitorRegistry(60, 2, time.Minute)

	// Burst of 2, then the steady rate applies.
	assert.True(t, vr.take("10.0.0.1"))
	assert.True(t, vr.take("10.0.0.1"))
	assert.False(t, vr.take("10.0.0.1"))

	// Per-IP buckets are independent.
	assert.True(t, vr.take("10.0.0.2"))
}

func TestVisitorRegistryPrunesIdleClients(t *testing.T) {
	vr := newVisitorRegistry(60, 1, time.Minute)

	assert.True(t, vr.take("10.0.0.1"))
	require.Len(t, vr.visitors, 1)

	// Back-date the entry and the prune clock past the TTL.
	vr.mu.Lock()
	vr.visitors["10.0.0.1"].lastSeen = time.Now().Add(-2 * time.Minute)
	vr.lastPrune = time.Now().Add(-2 * time.Minute)
	vr.mu.Unlock()

	assert.True(t, vr.take("10.0.0.2"))

	vr.mu.Lock()
	_, stale := vr.visitors["10.0.0.1"]
	vr.mu.Unlock()

	assert.False(t, stale)
}

func TestExtractIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{
			name:       "remote addr with port",
			remoteAddr: "192.168.1.5:4321",
			want:       "192.168.1.5",
		},
		{
			name:       "x-forwarded-for single",
			remoteAddr: "10.0.0.1:80",
			xff:        "203.0.113.9",
			want:       "203.0.113.9",
		},
		{
			name:       "x-forwarded-for chain takes first",
			remoteAddr: "10.0.0.1:80",
			xff:        "203.0.113.9, 10.0.0.2",
			want:       "203.0.113.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr

			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}

			assert.Equal(t, tt.want, extractIP(req))
		})
	}
}
