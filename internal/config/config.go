// Package config loads the server's configuration from defaults, an
// optional YAML file, environment variables, and CLI flags, in that
// increasing order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix environment variables must carry to be
// picked up, e.g. JALDIS_PORT.
const EnvPrefix = "JALDIS_"

// Config is the server's full configuration surface. Address, Port,
// and Backlog are exactly the {address, port, backlog} struct
// spec.md §6 names; the rest are operational additions.
type Config struct {
	Address         string        `koanf:"address"`
	Port            uint16        `koanf:"port"`
	Backlog         int           `koanf:"backlog"`
	LogLevel        string        `koanf:"log_level"`
	SweepInterval   time.Duration `koanf:"sweep_interval"`
	SweepSampleSize int           `koanf:"sweep_sample_size"`
}

// Default returns the configuration used when no file, env, or flag
// overrides any field.
func Default() Config {
	return Config{
		Address:         "0.0.0.0",
		Port:            6379,
		Backlog:         1024,
		LogLevel:        "info",
		SweepInterval:   time.Second,
		SweepSampleSize: 20,
	}
}

// Loader accumulates configuration sources on top of Default() and
// unmarshals the result into a Config.
type Loader struct {
	k *koanf.Koanf
}

// NewLoader creates a Loader seeded with the default values.
func NewLoader() (*Loader, error) {
	k := koanf.New(".")
	def := Default()
	flat := map[string]any{
		"address":           def.Address,
		"port":              def.Port,
		"backlog":           def.Backlog,
		"log_level":         def.LogLevel,
		"sweep_interval":    def.SweepInterval,
		"sweep_sample_size": def.SweepSampleSize,
	}
	if err := k.Load(confmap.Provider(flat, "."), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}
	return &Loader{k: k}, nil
}

// LoadFile merges a YAML file's contents over whatever is currently
// loaded. A missing path is a no-op.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("config: load file %s: %w", path, err)
	}
	return nil
}

// LoadEnv merges JALDIS_-prefixed environment variables, e.g.
// JALDIS_SWEEP_SAMPLE_SIZE maps to sweep_sample_size.
func (l *Loader) LoadEnv() error {
	transform := func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ToLower(s)
	}
	if err := l.k.Load(env.Provider(EnvPrefix, ".", transform), nil); err != nil {
		return fmt.Errorf("config: load env: %w", err)
	}
	return nil
}

// LoadFlags merges explicit CLI flag overrides, the highest-priority
// source. Only non-zero-value entries should be passed.
func (l *Loader) LoadFlags(overrides map[string]any) error {
	if len(overrides) == 0 {
		return nil
	}
	if err := l.k.Load(confmap.Provider(overrides, "."), nil); err != nil {
		return fmt.Errorf("config: load flags: %w", err)
	}
	return nil
}

// Build unmarshals everything loaded so far into a Config.
func (l *Loader) Build() (Config, error) {
	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}
