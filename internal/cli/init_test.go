package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincast/internal/config"
	"fincast/internal/log"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Load()
	cfg.SQLiteDBPath = filepath.Join(t.TempDir(), "data", "fincast.db")
	cfg.AMQPURL = ""
	cfg.GoogleSpreadsheetID = ""
	cfg.HTTPAddr = ""
	cfg.EngineConfigFile = ""
	cfg.BatchSchedule = "0 30 2 * * *"
	cfg.CacheMaxEntries = 1000
	cfg.CacheCleanupInterval = 5 * time.Minute
	cfg.LogLevel = "info"
	cfg.LogFormat = "text"
	return cfg
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := testConfig(t)
	cfg.LogLevel = "warn"
	cfg.LogFormat = "json"

	logger := SetupLogger(cfg, &buf)
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
}

func TestBootstrap(t *testing.T) {
	cfg := testConfig(t)
	app, err := Bootstrap(cfg, log.Discard())
	require.NoError(t, err)
	defer app.Close()

	_, err = os.Stat(cfg.SQLiteDBPath)
	assert.NoError(t, err, "database file is created")

	exporter, err := app.Exporter(context.Background())
	require.NoError(t, err)
	assert.Nil(t, exporter, "no spreadsheet configured")

	client, err := app.AMQP()
	require.NoError(t, err)
	assert.Nil(t, client, "no broker configured")

	srv, err := app.HTTPServer()
	require.NoError(t, err)
	assert.Nil(t, srv, "no listen address configured")

	assert.Equal(t, time.Hour, app.Engine.CacheTTL())
	assert.Equal(t, []string{"emergency_first", "tiered", "weighted"}, app.Analysis.Pipeline().Optimizer().Strategies())
}

func TestBootstrap_EngineFile(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "engine.toml")
	require.NoError(t, os.WriteFile(path, []byte("cache_ttl_minutes = 15\nallocation_strategy = \"tiered\"\n"), 0o644))
	cfg.EngineConfigFile = path

	app, err := Bootstrap(cfg, log.Discard())
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, 15*time.Minute, app.Engine.CacheTTL())
	assert.Equal(t, "tiered", app.Analysis.Pipeline().Optimizer().DefaultStrategy())
}

func TestBootstrap_EngineOverride(t *testing.T) {
	cfg := testConfig(t)
	app, err := Bootstrap(cfg, log.Discard(), func(e *config.EngineConfig) {
		e.SimulationSeed = 7
		e.AllocationStrategy = "emergency_first"
	})
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, uint64(7), app.Engine.SimulationSeed)
	assert.Equal(t, "emergency_first", app.Analysis.Pipeline().Optimizer().DefaultStrategy())

	_, err = Bootstrap(testConfig(t), log.Discard(), func(e *config.EngineConfig) {
		e.AllocationStrategy = "greedy"
	})
	assert.Error(t, err)
}

func TestApp_HTTPServer(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.HTTPRateLimit = 10
	cfg.HTTPRequestTimeout = 5 * time.Second

	app, err := Bootstrap(cfg, log.Discard())
	require.NoError(t, err)
	defer app.Close()

	srv, err := app.HTTPServer()
	require.NoError(t, err)
	require.NotNil(t, srv)
	assert.Equal(t, "127.0.0.1:0", srv.Addr)

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/users/ghost/forecast?as_of=2025-03-15", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.NoError(t, srv.Shutdown(context.Background()))
}

func TestBootstrap_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.BatchSchedule = "nightly"
	cfg.AMQPURL = "http://broker"

	_, err := Bootstrap(cfg, log.Discard())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "batch schedule"))
	assert.True(t, strings.Contains(err.Error(), "AMQP URL scheme"))
}
