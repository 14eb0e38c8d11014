package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medconnect-service/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", "memory")
	t.Setenv("STORE_BACKEND", "memory")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, int64(3), cfg.Limits.AIMessages)
	assert.Equal(t, int64(1), cfg.Limits.Appointments)
	assert.Equal(t, "echo", cfg.AI.Provider)
	assert.False(t, cfg.NeedsPostgres())
	assert.False(t, cfg.Development())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("FREE_AI_MESSAGES", "5")
	t.Setenv("LEDGER_BACKEND", "mongo")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.True(t, cfg.Development())
	assert.Equal(t, int64(5), cfg.Limits.AIMessages)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.NeedsPostgres(), "store backend still defaults to postgres")
}

func TestValidate(t *testing.T) {
	valid := func() config.AppConfig {
		return config.AppConfig{
			LedgerBackend: config.BackendMemory,
			StoreBackend:  config.BackendMemory,
			Limits:        config.LimitsConfig{AIMessages: 3, Appointments: 1},
			AI:            config.AIConfig{Provider: "echo"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*config.AppConfig)
		wantErr bool
	}{
		{name: "valid", mutate: func(*config.AppConfig) {}},
		{name: "unknown ledger", mutate: func(c *config.AppConfig) { c.LedgerBackend = "sqlite" }, wantErr: true},
		{name: "mongo store unsupported", mutate: func(c *config.AppConfig) { c.StoreBackend = config.BackendMongo }, wantErr: true},
		{name: "zero free cap", mutate: func(c *config.AppConfig) { c.Limits.Appointments = 0 }, wantErr: true},
		{name: "unknown provider", mutate: func(c *config.AppConfig) { c.AI.Provider = "llama" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
