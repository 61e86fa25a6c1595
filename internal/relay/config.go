package relay

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// DefaultAddr is where the relay listens when nothing else is configured.
const DefaultAddr = "127.0.0.1:6142"

// Config holds the relay's runtime options.
type Config struct {
	// Addr is the TCP bind address.
	Addr string `toml:"addr"`

	// LogLevel is one of ERROR, WARNING, NOTICE, INFO, DEBUG.
	LogLevel string `toml:"log_level"`

	// LogFile receives log output; empty means stdout.
	LogFile string `toml:"log_file"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Addr:     DefaultAddr,
		LogLevel: "INFO",
	}
}

// LoadConfig reads a TOML config file over the defaults. An empty path
// returns the defaults untouched.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("relay: read config: %w", err)
	}
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("relay: parse config: %w", err)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return cfg, nil
}
