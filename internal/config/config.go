// Package config reads the fdbctl TOML configuration file: storage
// root, the environment variable holding the KEK, and the query cache's
// TTL.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the decoded shape of an fdb CLI config file.
type Config struct {
	StorageRoot string `toml:"storage_root"`
	KEKEnv      string `toml:"kek_env"`
	CacheTTL    string `toml:"cache_ttl"`
}

// Load reads and decodes the config file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes TOML content from r into a Config.
func Parse(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if cfg.StorageRoot == "" {
		return nil, fmt.Errorf("config: storage_root is required")
	}
	return &cfg, nil
}

// KEK resolves the configured KEK environment variable to its value. An
// unset or empty KEKEnv means the store opens with no KEK: tables with
// encrypted columns will fail CryptoRequired on first use.
func (c *Config) KEK() []byte {
	if c.KEKEnv == "" {
		return nil
	}
	if v := os.Getenv(c.KEKEnv); v != "" {
		return []byte(v)
	}
	return nil
}

// CacheExpiration parses CacheTTL as a Go duration string. An empty or
// unparseable value means cache entries never expire by age.
func (c *Config) CacheExpiration() time.Duration {
	if c.CacheTTL == "" {
		return 0
	}
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil {
		return 0
	}
	return d
}
