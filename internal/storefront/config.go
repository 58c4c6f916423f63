package storefront

import (
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the storefront CLI configuration, loadable from environment
// variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	CatalogURL string        `default:"http://localhost:8080" usage:"Catalog API base URL" flag:"catalog-url"`
	Slug       string        `usage:"Slug of the product to open" flag:"slug"`
	Add        int           `default:"0" usage:"How many times to press add-to-cart" flag:"add"`
	Session    string        `default:"" usage:"Cart session id; a new one is generated when empty" flag:"session"`
	RedisAddr  string        `default:"" usage:"Redis address for the session cart; in memory when empty" flag:"redis-addr"`
	Timeout    time.Duration `default:"10s" usage:"Catalog request timeout" flag:"timeout"`
}

// LoadConfig loads configuration from environment variables, flags and YAML
// config files.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STOREFRONT",
		Files:     []string{"storefront.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Slug == "" {
		return errors.New("product slug is required: set --slug or STOREFRONT_SLUG")
	}
	if c.Add < 0 {
		return errors.Errorf("add count must not be negative, got %d", c.Add)
	}
	return nil
}
