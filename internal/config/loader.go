package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// envPrefix namespaces inventoryd environment variables.
	envPrefix = "INVENTORYD_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// Load loads configuration from the optional YAML file at configPath, then
// overrides with environment variables.
//
// Environment variables use the INVENTORYD_ prefix with underscore-separated
// section paths:
//
//	INVENTORYD_SERVER_PORT        -> server.port
//	INVENTORYD_COPILOT_API_KEY    -> copilot.api_key
//	INVENTORYD_SEARCH_ENGINE      -> search.engine
//
// A missing config file is not an error; defaults plus environment apply.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	cfg := Default()

	if configPath != "" {
		info, err := os.Stat(configPath)
		switch {
		case os.IsNotExist(err):
			// Fall through to env-only loading.
		case err != nil:
			return nil, fmt.Errorf("stat config file: %w", err)
		default:
			if info.Size() > maxConfigFileSize {
				return nil, fmt.Errorf("%w: config file %s exceeds %d bytes", ErrInvalidConfig, configPath, maxConfigFileSize)
			}
			content, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
			}
		}
	}

	// Environment overrides. INVENTORYD_SERVER_PORT becomes server.port.
	// Multi-word leaf keys keep their underscores because section names are
	// single words (server, copilot, search, ...).
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(s, "_", 2)
		if len(parts) == 2 {
			return parts[0] + "." + parts[1]
		}
		return s
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
