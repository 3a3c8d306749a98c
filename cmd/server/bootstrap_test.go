package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "data", "partyfinder.sqlite")
	body := "server:\n" +
		"  port: 0\n" +
		"database:\n" +
		"  driver: sqlite\n" +
		"  path: " + dbPath + "\n" +
		"auth:\n" +
		"  jwt:\n" +
		"    secret: bootstrap-test-secret-with-enough-bytes\n" +
		"events:\n" +
		"  relay_schedule: \"@every 1h\"\n"
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(body), 0o600))
	return dir, file
}

func TestLoadApplicationConfig(t *testing.T) {
	dir, file := writeConfig(t)

	cfg, err := loadApplicationConfig(dir)
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "@every 1h", cfg.Events.RelaySchedule)

	cfg, err = loadApplicationConfig(file)
	require.NoError(t, err)
	require.Equal(t, "bootstrap-test-secret-with-enough-bytes", cfg.Auth.JWT.Secret)

	_, err = loadApplicationConfig(filepath.Join(dir, "missing"))
	require.ErrorContains(t, err, "does not exist")
}

func TestBootstrapRuntimeServesReadiness(t *testing.T) {
	dir, _ := writeConfig(t)
	cfg, err := loadApplicationConfig(dir)
	require.NoError(t, err)

	log := zap.NewNop()
	stack, err := bootstrapRuntime(t.Context(), cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), log) })

	require.Nil(t, stack.Redis)
	require.Nil(t, stack.Kafka)
	require.FileExists(t, cfg.Database.Path)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()
	stack.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), `"component":"maintenance"`)

	require.NoError(t, stack.Scheduler.RunOnce(t.Context()))
	jobs := stack.Scheduler.Jobs()
	require.NotEmpty(t, jobs)
	for _, job := range jobs {
		require.Zero(t, job.ConsecutiveFailures, job.LastError)
	}
}

func TestBootstrapRuntimeRejectsUnknownDriver(t *testing.T) {
	dir, _ := writeConfig(t)
	cfg, err := loadApplicationConfig(dir)
	require.NoError(t, err)
	cfg.Database.Driver = "oracle"

	_, err = bootstrapRuntime(t.Context(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "open database")
}
