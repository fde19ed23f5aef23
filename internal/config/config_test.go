package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.APIPort)
	assert.Equal(t, EngineMemory, cfg.StoreEngine)
	assert.Equal(t, 50, cfg.DefaultPageSize)
	assert.Equal(t, 200, cfg.MaxPageSize)
	assert.Equal(t, 60*time.Second, cfg.ChecklistCacheTTL)
	assert.Zero(t, cfg.ReconcileInterval)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown engine", map[string]string{"STORE_ENGINE": "postgres"}},
		{"default above max", map[string]string{"DEFAULT_PAGE_SIZE": "500"}},
		{"couchbase without user", map[string]string{"STORE_ENGINE": "couchbase", "COUCHBASE_USERNAME": ""}},
		{"malformed duration", map[string]string{"CURSOR_TTL": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("WARDBOOK_TEST_DOTENV=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("WARDBOOK_TEST_DOTENV") })

	LoadDotEnv(filepath.Join(dir, "missing.env"), path)
	assert.Equal(t, "loaded", os.Getenv("WARDBOOK_TEST_DOTENV"))
}
