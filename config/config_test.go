package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(env(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
	assert.False(t, cfg.IsProduction())
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"PORT":             "9090",
		"DB_PATH":          ":memory:",
		"APP_ENV":          "Production",
		"ACCRUAL_INTERVAL": "1h30m",
		"ACCRUAL_ENABLED":  "false",
		"CORS_ORIGINS":     "https://a.example, https://b.example,",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 90*time.Minute, cfg.AccrualInterval)
	assert.False(t, cfg.AccrualEnabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestFromEnv_Malformed(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"port", "PORT", "eighty"},
		{"interval", "ACCRUAL_INTERVAL", "daily"},
		{"enabled", "ACCRUAL_ENABLED", "sometimes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(env(map[string]string{tt.key: tt.val}))
			assert.Error(t, err)
		})
	}
}

func TestLoad_FlagsWinOverEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", "env.db")

	cfg, err := Load([]string{"-port", "3000", "-db", ":memory:"})
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, ":memory:", cfg.DBPath)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Env = "staging"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.AccrualInterval = 0
	assert.Error(t, cfg.Validate())
}
