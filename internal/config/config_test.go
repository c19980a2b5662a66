package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server:    ServerConfig{Port: "8080", Env: "development"},
		Database:  DatabaseConfig{Driver: DriverPostgres, Host: "localhost", Port: "5432", Name: "loans", User: "u", Password: "p", SSLMode: "disable"},
		Scheduler: SchedulerConfig{Timezone: "UTC"},
		Business:  BusinessConfig{MaxTerms: 360, DelinquencyThreshold: 2},
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://user:pass@db:5432/loans?sslmode=disable")
	t.Setenv("SERVER_READ_TIMEOUT", "3s")
	t.Setenv("MAX_TERMS", "120")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://user:pass@db:5432/loans?sslmode=disable", cfg.Database.DSN())
	assert.Equal(t, 120, cfg.Business.MaxTerms)
	assert.Equal(t, 2, cfg.Business.DelinquencyThreshold)
	assert.Equal(t, 10*time.Minute, cfg.Redis.CacheTTL)
	assert.False(t, cfg.RedisEnabled())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*Config)
		errorContains string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:          "missing port",
			mutate:        func(c *Config) { c.Server.Port = "" },
			errorContains: "SERVER_PORT",
		},
		{
			name:          "unknown driver",
			mutate:        func(c *Config) { c.Database.Driver = "mysql" },
			errorContains: "DATABASE_DRIVER",
		},
		{
			name: "sqlite without path",
			mutate: func(c *Config) {
				c.Database.Driver = DriverSQLite
				c.Database.URL = ""
			},
			errorContains: "DATABASE_URL",
		},
		{
			name:          "non-positive max terms",
			mutate:        func(c *Config) { c.Business.MaxTerms = 0 },
			errorContains: "MAX_TERMS",
		},
		{
			name:          "non-positive delinquency threshold",
			mutate:        func(c *Config) { c.Business.DelinquencyThreshold = -1 },
			errorContains: "DELINQUENCY_THRESHOLD",
		},
		{
			name:          "bad timezone",
			mutate:        func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" },
			errorContains: "SCHEDULER_TIMEZONE",
		},
		{
			name: "production requires jwt secret",
			mutate: func(c *Config) {
				c.Server.Env = "production"
			},
			errorContains: "JWT_SECRET",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errorContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "postgres://u:p@localhost:5432/loans?sslmode=disable", cfg.Database.DSN())

	sqlite := DatabaseConfig{Driver: DriverSQLite, URL: "/tmp/loans.db"}
	assert.Equal(t, "/tmp/loans.db", sqlite.DSN())
	assert.Equal(t, "sqlite3:///tmp/loans.db", sqlite.MigrationURL())
}
