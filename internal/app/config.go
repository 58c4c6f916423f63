package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the catalog API configuration, loadable from environment
// variables (KART_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (KART_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string `default:"" usage:"Base URL prepended to relative product image paths" flag:"image-base-url"`
	SlugFilter   SlugFilterConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// SlugFilterConfig controls the bloom filter of known product slugs.
type SlugFilterConfig struct {
	Refresh time.Duration `default:"1m" usage:"How often the slug filter is rebuilt" flag:"slug-filter-refresh"`
}

// RateLimitConfig controls the per-client rate limiter. With RedisAddr set
// the window is shared by every replica, otherwise it is kept in memory.
type RateLimitConfig struct {
	Max       int           `default:"100" usage:"Max requests per window"`
	Window    time.Duration `default:"1m"  usage:"Rate limit window duration"`
	RedisAddr string        `default:"" usage:"Redis address for a shared rate limit window" flag:"ratelimit-redis-addr"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, then applies platform defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "KART",
		Files:     []string{"config.yaml", "/etc/kart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set KART_DATABASE_URL or DATABASE_URL")
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return errors.Errorf("rate limit must be positive, got %d per %s", c.RateLimit.Max, c.RateLimit.Window)
	}
	if c.SlugFilter.Refresh <= 0 {
		return errors.Errorf("slug filter refresh must be positive, got %s", c.SlugFilter.Refresh)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided DATABASE_URL and PORT onto the
// KART_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
