package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScriptedMemoryDefaults(t *testing.T) {
	t.Setenv("LEGALSIM_SCRIPTED", "true")
	t.Setenv("LEGALSIM_STORE", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "config/models.yaml", cfg.ModelsConfigPath)
	assert.Equal(t, "legal_agent_system", cfg.MongoDatabase)
	assert.Equal(t, 60*time.Second, cfg.CallTimeout)
	assert.Equal(t, 10, cfg.MaxAPISimulations)
	assert.Equal(t, 1, cfg.Parallelism)
	assert.Equal(t, "none", cfg.ReportStorage)
}

func TestLoadMissingCredentialsIsFatal(t *testing.T) {
	t.Setenv("LEGALSIM_SCRIPTED", "false")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("DEEPSEEK_API_KEY", "")
	t.Setenv("QWEN_API_KEY", "")
	t.Setenv("LEGALSIM_STORE", "memory")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestValidate(t *testing.T) {
	base := Config{Scripted: true, Store: StoreNone, Parallelism: 1, MaxAPISimulations: 10}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(c *Config) {}, ""},
		{"mongo without uri", func(c *Config) { c.Store = StoreMongo }, "MONGODB_CONNECTION_STRING"},
		{"postgres without url", func(c *Config) { c.Store = StorePostgres }, "DATABASE_URL"},
		{"unknown store", func(c *Config) { c.Store = "redis" }, "unknown LEGALSIM_STORE"},
		{"s3 without bucket", func(c *Config) { c.ReportStorage = "s3" }, "LEGALSIM_S3_BUCKET"},
		{"zero parallelism", func(c *Config) { c.Parallelism = 0 }, "LEGALSIM_PARALLELISM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvHelpersIgnoreGarbage(t *testing.T) {
	t.Setenv("LEGALSIM_TEST_INT", "abc")
	t.Setenv("LEGALSIM_TEST_BOOL", "maybe")
	t.Setenv("LEGALSIM_TEST_DUR", "soon")

	assert.Equal(t, 7, envInt("LEGALSIM_TEST_INT", 7))
	assert.True(t, envBool("LEGALSIM_TEST_BOOL", true))
	assert.Equal(t, time.Second, envDuration("LEGALSIM_TEST_DUR", time.Second))
}
