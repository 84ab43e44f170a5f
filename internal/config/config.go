package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const envPrefix = "AGRO"

const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
)

type Config struct {
	HTTP    HTTP
	Store   Store
	Mongo   Mongo
	Redis   Redis
	Kafka   Kafka
	Auth    Auth
	Payment Payment
	Pricing Pricing
	Clients Clients
	Log     Log
}

type HTTP struct {
	Port           int           `envconfig:"PORT" default:"8080"`
	ReadTimeout    time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout   time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	RateLimit      float64       `envconfig:"RATE_LIMIT" default:"20"`
	RateBurst      int           `envconfig:"RATE_BURST" default:"40"`
	AllowedOrigins []string      `envconfig:"ALLOWED_ORIGINS" default:"*"`
}

type Store struct {
	// Backend is "memory" or "mongo".
	Backend string `envconfig:"BACKEND" default:"memory"`
}

type Mongo struct {
	URI         string `envconfig:"URI" default:"mongodb://localhost:27017"`
	Database    string `envconfig:"DATABASE" default:"agromarket"`
	MaxPoolSize uint64 `envconfig:"MAX_POOL_SIZE" default:"100"`
	MinPoolSize uint64 `envconfig:"MIN_POOL_SIZE" default:"10"`
}

type Redis struct {
	// Addr empty runs an in-process Redis, for local development only.
	Addr     string `envconfig:"ADDR"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0"`
}

type Kafka struct {
	Brokers []string `envconfig:"BROKERS"`
	Topic   string   `envconfig:"TOPIC" default:"checkout-completed"`
	GroupID string   `envconfig:"GROUP_ID" default:"order-consumer"`
}

type Auth struct {
	Secret       string        `envconfig:"SECRET" required:"true"`
	TokenTTL     time.Duration `envconfig:"TOKEN_TTL" default:"720h"`
	PrincipalTTL time.Duration `envconfig:"PRINCIPAL_TTL" default:"720h"`
	BcryptCost   int           `envconfig:"BCRYPT_COST" default:"10"`
}

type Payment struct {
	Delay              time.Duration `envconfig:"DELAY" default:"2s"`
	ChargeTimeout      time.Duration `envconfig:"CHARGE_TIMEOUT" default:"10s"`
	BreakerFailures    uint32        `envconfig:"BREAKER_FAILURES" default:"5"`
	BreakerOpenTimeout time.Duration `envconfig:"BREAKER_OPEN_TIMEOUT" default:"30s"`
	// AlwaysSucceed disables simulated refusals.
	AlwaysSucceed bool `envconfig:"ALWAYS_SUCCEED" default:"false"`
}

type Pricing struct {
	CommissionRate         float64 `envconfig:"COMMISSION_RATE" default:"0.20"`
	DefaultProductRating   float64 `envconfig:"DEFAULT_PRODUCT_RATING" default:"0.1"`
	RegistrationRating     float64 `envconfig:"REGISTRATION_RATING" default:"0.5"`
	DefaultListingLocation string  `envconfig:"DEFAULT_LISTING_LOCATION" default:"Nigeria"`
	Currency               string  `envconfig:"CURRENCY" default:"NGN"`
}

type Clients struct {
	IdleTimeout     time.Duration `envconfig:"IDLE_TIMEOUT" default:"30m"`
	CleanupInterval time.Duration `envconfig:"CLEANUP_INTERVAL" default:"1m"`
}

type Log struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"json"`
}

// Load reads an optional .env file, then AGRO_* variables. Variables
// already set in the environment win over the file.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "failed to load .env")
	}

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process environment")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendMongo:
	default:
		return errors.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return errors.Errorf("invalid http port %d", c.HTTP.Port)
	}
	if c.HTTP.RateLimit <= 0 || c.HTTP.RateBurst <= 0 {
		return errors.New("rate limit and burst must be positive")
	}
	if c.Auth.Secret == "" {
		return errors.New("auth secret is required")
	}
	if c.Pricing.CommissionRate < 0 || c.Pricing.CommissionRate > 1 {
		return errors.Errorf("commission rate %v out of range [0,1]", c.Pricing.CommissionRate)
	}
	for name, r := range map[string]float64{
		"default product rating": c.Pricing.DefaultProductRating,
		"registration rating":    c.Pricing.RegistrationRating,
	} {
		if r < 0 || r > 5 {
			return errors.Errorf("%s %v out of range [0,5]", name, r)
		}
	}
	if c.Clients.IdleTimeout <= 0 || c.Clients.CleanupInterval <= 0 {
		return errors.New("client idle timeout and cleanup interval must be positive")
	}
	return nil
}
