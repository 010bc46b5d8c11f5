package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"LEDGER_BACKEND", "DATABASE_PATH", "SERVER_ADDR", "INITIAL_BALANCE", "CORS_ALLOWED_ORIGINS", "RECONCILE_INTERVAL", "PRICES_FILE"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, "ledger.db", cfg.Database.Path)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSAllowedOrigins)
	assert.True(t, cfg.Ledger.InitialBalance.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, time.Duration(0), cfg.Ledger.ReconcileInterval)
	assert.Equal(t, defaultRandomStringURL, cfg.Ledger.RandomStringURL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", "MEMORY")
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("INITIAL_BALANCE", "250.5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("RECONCILE_INTERVAL", "1m")
	t.Setenv("ENRICHMENT_CONCURRENCY", "4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.True(t, cfg.Ledger.InitialBalance.Equal(decimal.RequireFromString("250.5")))
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, time.Minute, cfg.Ledger.ReconcileInterval)
	assert.Equal(t, 4, cfg.Ledger.EnrichmentConcurrency)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown backend", map[string]string{"LEDGER_BACKEND": "redis"}},
		{"postgres without dsn", map[string]string{"LEDGER_BACKEND": "postgres", "POSTGRES_DSN": ""}},
		{"mongo without uri", map[string]string{"LEDGER_BACKEND": "mongo", "MONGO_URI": ""}},
		{"bad duration", map[string]string{"LEDGER_BACKEND": "memory", "DB_PING_TIMEOUT": "soon"}},
		{"bad initial balance", map[string]string{"LEDGER_BACKEND": "memory", "INITIAL_BALANCE": "lots"}},
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
