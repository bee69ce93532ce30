package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// SessionConfig holds the practice defaults a family starts from.
type SessionConfig struct {
	CardCount          int           `koanf:"card_count" validate:"gte=1"`
	HardCardPercentage int           `koanf:"hard_card_percentage" validate:"gte=0,lte=100"`
	PendingTTL         time.Duration `koanf:"pending_ttl" validate:"gt=0"`
}

// Config is the resolved application configuration: defaults, then the
// yaml file, then FLASHFAM_* environment variables, then flags.
type Config struct {
	Listen   string        `koanf:"listen" validate:"required"`
	DataDir  string        `koanf:"data_dir" validate:"required"`
	ReposDir string        `koanf:"repos_dir" validate:"required"`
	LogLevel string        `koanf:"log_level" validate:"oneof=debug info warn error"`
	Session  SessionConfig `koanf:"session"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:   ":8420",
		DataDir:  "data",
		ReposDir: "repos",
		LogLevel: "info",
		Session: SessionConfig{
			CardCount:          10,
			HardCardPercentage: 30,
			PendingTTL:         6 * time.Hour,
		},
	}
}

// Load layers the config sources on top of the defaults and validates
// the result. The file is optional; environment keys use double
// underscores for nesting (FLASHFAM_SESSION__CARD_COUNT).
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider("FLASHFAM_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "FLASHFAM_"))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return cfg, fmt.Errorf("failed to load environment config: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return cfg, fmt.Errorf("failed to load flag config: %w", err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
