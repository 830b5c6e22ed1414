package app

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/siteadmin/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	require.Equal(t, "siteadmin", cfg.Issuer)
	require.Equal(t, DriverSQLite, cfg.DatabaseDriver)
	require.Equal(t, 30*time.Minute, cfg.SessionTTL)
	require.Equal(t, 2*time.Second, cfg.AuditWriteTimeout)
	require.Zero(t, cfg.AuditRetention)
	require.Equal(t, cryptox.KDFv1, cfg.KDF())
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("ADMIN_DATABASE_DRIVER", "postgres")
	t.Setenv("ADMIN_DATABASE_URL", "postgres://localhost/siteadmin")
	t.Setenv("ADMIN_KDF_VERSION", "2")
	t.Setenv("ADMIN_KDF_ITERATIONS", "210000")
	t.Setenv("AUDIT_RETENTION", "720h")
	t.Setenv("HOUSEKEEPING_INTERVAL", "15")
	t.Setenv("PORT", "not-a-number")

	cfg := LoadConfig()

	require.Equal(t, DriverPostgres, cfg.DatabaseDriver)
	require.Equal(t, cryptox.KDFParams{Version: 2, Iterations: 210000, KeyLength: 64}, cfg.KDF())
	require.Equal(t, 720*time.Hour, cfg.AuditRetention)
	require.Equal(t, 15*time.Minute, cfg.HousekeepingInterval)
	require.Equal(t, 8080, cfg.Port)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.DatabaseDriver = "mysql" }},
		{"postgres without url", func(c *Config) { c.DatabaseDriver = DriverPostgres; c.DatabaseURL = "" }},
		{"zero iterations", func(c *Config) { c.KDFIterations = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadConfig()
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
