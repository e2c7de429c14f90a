package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return dir
}

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:3000/api/web/v1", cfg.Backend.BaseURL)
	require.Equal(t, 15*time.Second, cfg.Backend.Timeout)
	require.Equal(t, 10, cfg.Catalog.PageSize)
	require.False(t, cfg.Catalog.PreserveOnError)
	require.Equal(t, 5, cfg.Session.SignIn.MaxFailures)
	require.Equal(t, filepath.Join(dir, "catalog-admin", "session.json"), cfg.Session.StorePath)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	isolate(t)
	p := writeFile(t, t.TempDir(), `
backend:
  baseURL: https://shop.example.com/api/web/v1
  timeout: 3s
firebase:
  apiKey: key-123
catalog:
  pageSize: 25
session:
  signIn:
    blockFor: 1m
`)

	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "https://shop.example.com/api/web/v1", cfg.Backend.BaseURL)
	require.Equal(t, 3*time.Second, cfg.Backend.Timeout)
	require.Equal(t, "key-123", cfg.Firebase.APIKey)
	require.Equal(t, 25, cfg.Catalog.PageSize)
	require.Equal(t, time.Minute, cfg.Session.SignIn.BlockFor)
	// untouched siblings keep defaults
	require.Equal(t, 15*time.Minute, cfg.Session.SignIn.Window)
}

func TestLoad_FoundInConfigDir(t *testing.T) {
	dir := isolate(t)
	cfgDir := filepath.Join(dir, "catalog-admin")
	require.NoError(t, os.MkdirAll(cfgDir, 0o700))
	writeFile(t, cfgDir, "firebase:\n  apiKey: from-dir\n")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "from-dir", cfg.Firebase.APIKey)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	isolate(t)
	p := writeFile(t, t.TempDir(), "backend:\n  baseURL: https://file.example.com/api/web/v1\n")
	t.Setenv("CATALOG_BACKEND_BASEURL", "https://env.example.com/api/web/v1")
	t.Setenv("CATALOG_CATALOG_PRESERVEONERROR", "true")
	t.Setenv("CATALOG_SESSION_SIGNIN_ATTEMPTSPERMINUTE", "3")
	t.Setenv("CATALOG_LOG_LEVEL", "debug")

	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "https://env.example.com/api/web/v1", cfg.Backend.BaseURL)
	require.True(t, cfg.Catalog.PreserveOnError)
	require.Equal(t, 3, cfg.Session.SignIn.AttemptsPerMinute)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	isolate(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	p := writeFile(t, t.TempDir(), "catalog:\n  pageSize: 0\n")
	_, err = Load(p)
	require.ErrorContains(t, err, "pageSize")

	p = writeFile(t, t.TempDir(), "backend:\n  timeout: soon\n")
	_, err = Load(p)
	require.Error(t, err)
}

func TestCanonicalizeEnvKey(t *testing.T) {
	t.Parallel()
	existing := map[string]any{
		"backend": map[string]any{"baseURL": "x"},
		"session": map[string]any{"signIn": map[string]any{"maxFailures": 1}},
	}
	tests := []struct{ in, want string }{
		{"BACKEND_BASEURL", "backend.baseURL"},
		{"SESSION_SIGNIN_MAXFAILURES", "session.signIn.maxFailures"},
		{"METRICS_ADDR", "metrics.addr"},
		{"LOG__LEVEL", "log.level"},
	}
	for _, tt := range tests {
		if got := canonicalizeEnvKey(tt.in, existing); got != tt.want {
			t.Fatalf("canonicalizeEnvKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
