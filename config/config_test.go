package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{"CREDITENGINE_PORT", "CREDITENGINE_DB", "CREDITENGINE_REDIS_ADDR", "CREDITENGINE_CATALOG_URL"}
	for _, k := range keys {
		orig, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, orig)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("creditengine", nil)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "credits.db", cfg.DSN)
	assert.Equal(t, "", cfg.RedisAddr)
	assert.Equal(t, "", cfg.CatalogURL)
}

func TestLoad_EnvironmentOverridesDefaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("CREDITENGINE_PORT", "9090")
	os.Setenv("CREDITENGINE_DB", ":memory:")
	os.Setenv("CREDITENGINE_REDIS_ADDR", "localhost:6379")

	cfg, err := Load("creditengine", nil)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, ":memory:", cfg.DSN)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
}

func TestLoad_FlagsWinOverEnvironment(t *testing.T) {
	clearEnv(t)
	os.Setenv("CREDITENGINE_PORT", "9090")

	cfg, err := Load("creditengine", []string{"-port", "7070", "-db", "custom.db"})
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, "custom.db", cfg.DSN)
}

func TestLoad_RejectsUnknownFlag(t *testing.T) {
	clearEnv(t)

	_, err := Load("creditengine", []string{"-bogus", "value"})
	require.Error(t, err)
}
