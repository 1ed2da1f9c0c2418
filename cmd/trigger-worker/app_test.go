package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"beacon/internal/config"
	"beacon/internal/logger"
	"beacon/pkg/health"
)

func newTestApp(t *testing.T, checks ...health.Checker) *App {
	t.Helper()

	cfg := &config.Config{Server: config.ServerConfig{Enabled: true, Port: 0}}
	app := NewApp(cfg, logger.NopLogger())
	app.health = health.NewRegistry()
	for _, c := range checks {
		app.health.Register(c)
	}
	app.initHTTPServer()
	return app
}

func TestOpsServer_Health(t *testing.T) {
	tests := []struct {
		name       string
		check      error
		wantStatus int
		wantHealth health.Status
	}{
		{name: "healthy", wantStatus: http.StatusOK, wantHealth: health.StatusHealthy},
		{name: "unhealthy", check: errors.New("down"), wantStatus: http.StatusServiceUnavailable, wantHealth: health.StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t, health.NewCheckFunc("consumer", func(context.Context) error { return tt.check }))

			rec := httptest.NewRecorder()
			app.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)

			var body health.Health
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantHealth, body.Status)
			assert.Contains(t, body.Checks, "consumer")
		})
	}
}

func TestOpsServer_Metrics(t *testing.T) {
	app := newTestApp(t)

	rec := httptest.NewRecorder()
	app.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestIgnoreCanceled(t *testing.T) {
	assert.NoError(t, ignoreCanceled(context.Canceled))
	assert.NoError(t, ignoreCanceled(nil))

	boom := errors.New("boom")
	assert.Equal(t, boom, ignoreCanceled(boom))
}

func TestReadEventBody(t *testing.T) {
	const event = `{"event_id":"e1","payload":{}}`

	path := filepath.Join(t.TempDir(), "event.json")
	require.NoError(t, os.WriteFile(path, []byte(event), 0o600))

	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader(event))

	fromData, err := readEventBody(cmd, event, "")
	require.NoError(t, err)
	assert.Equal(t, event, string(fromData))

	fromFile, err := readEventBody(cmd, "", path)
	require.NoError(t, err)
	assert.Equal(t, event, string(fromFile))

	fromStdin, err := readEventBody(cmd, "", "")
	require.NoError(t, err)
	assert.True(t, bytes.Equal([]byte(event), fromStdin))

	_, err = readEventBody(cmd, event, path)
	assert.Error(t, err)
}

func TestOpsServer_PanicIsRecoveredAndLogged(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	cfg := &config.Config{Server: config.ServerConfig{Enabled: true}}
	app := NewApp(cfg, logger.FromZap(zap.New(core)))
	app.health = health.NewRegistry()
	app.initHTTPServer()

	router, ok := app.server.Handler.(*gin.Engine)
	require.True(t, ok)
	router.GET("/boom", func(*gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())

	requests := logs.FilterMessage("HTTP Request").All()
	require.Len(t, requests, 1)
	assert.Equal(t, zap.ErrorLevel, requests[0].Level)
	assert.NotEmpty(t, requests[0].ContextMap()["request_id"])
}

type fixedSnapshot time.Time

func (f fixedSnapshot) LoadedAt() time.Time { return time.Time(f) }

func TestCampaignsCheck(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	tests := []struct {
		name     string
		loadedAt time.Time
		wantErr  string
	}{
		{name: "never loaded", wantErr: "not loaded"},
		{name: "fresh", loadedAt: now.Add(-time.Minute)},
		{name: "stale", loadedAt: now.Add(-4 * time.Minute), wantErr: "4m0s ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := campaignsCheck(fixedSnapshot(tt.loadedAt), time.Minute, clock)
			assert.Equal(t, "campaigns", check.Name())

			err := check.Check(context.Background())
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
