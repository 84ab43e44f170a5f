package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AGRO_AUTH_SECRET", "s3cret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 0.20, cfg.Pricing.CommissionRate)
	assert.Equal(t, 0.1, cfg.Pricing.DefaultProductRating)
	assert.Equal(t, 0.5, cfg.Pricing.RegistrationRating)
	assert.Equal(t, "Nigeria", cfg.Pricing.DefaultListingLocation)
	assert.Equal(t, "NGN", cfg.Pricing.Currency)
	assert.Equal(t, 2*time.Second, cfg.Payment.Delay)
	assert.Equal(t, "checkout-completed", cfg.Kafka.Topic)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"*"}, cfg.HTTP.AllowedOrigins)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AGRO_AUTH_SECRET", "s3cret")
	t.Setenv("AGRO_HTTP_PORT", "9090")
	t.Setenv("AGRO_STORE_BACKEND", "mongo")
	t.Setenv("AGRO_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("AGRO_PRICING_COMMISSION_RATE", "0.15")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, BackendMongo, cfg.Store.Backend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 0.15, cfg.Pricing.CommissionRate)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("AGRO_AUTH_SECRET=from-file\nAGRO_LOG_LEVEL=debug\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("AGRO_AUTH_SECRET")
		os.Unsetenv("AGRO_LOG_LEVEL")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Auth.Secret)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("AGRO_AUTH_SECRET", "")
	os.Unsetenv("AGRO_AUTH_SECRET")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			HTTP:    HTTP{Port: 8080, RateLimit: 1, RateBurst: 1},
			Store:   Store{Backend: BackendMemory},
			Auth:    Auth{Secret: "x"},
			Pricing: Pricing{CommissionRate: 0.2, DefaultProductRating: 0.1, RegistrationRating: 0.5},
			Clients: Clients{IdleTimeout: time.Minute, CleanupInterval: time.Second},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Store.Backend = "sqlite" }, "unknown store backend"},
		{"bad port", func(c *Config) { c.HTTP.Port = 70000 }, "invalid http port"},
		{"commission above one", func(c *Config) { c.Pricing.CommissionRate = 1.5 }, "commission rate"},
		{"negative rating", func(c *Config) { c.Pricing.RegistrationRating = -1 }, "registration rating"},
		{"rating above five", func(c *Config) { c.Pricing.DefaultProductRating = 6 }, "default product rating"},
		{"zero idle timeout", func(c *Config) { c.Clients.IdleTimeout = 0 }, "idle timeout"},
		{"zero rate", func(c *Config) { c.HTTP.RateLimit = 0 }, "rate limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
