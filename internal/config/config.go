// Package config loads and writes config.json, per §6.3. The teacher
// reads TOML via github.com/BurntSushi/toml; this repo's config
// interoperates with the host assistant's JSON settings and the
// auto-trim hook's JSON stdin protocol, so it uses encoding/json
// instead — the one teacher dependency this module drops entirely (see
// DESIGN.md). The loader keeps the teacher's shape: a DefaultConfig(), a
// Load() that merges a found file over defaults, and the home-expansion
// helpers kept in spirit from write.go.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// AutoTrimConfig controls the auto-trim hook's behavior, per §6.3/§6.4.
type AutoTrimConfig struct {
	Threshold          int `json:"threshold"`
	SizeThresholdBytes int `json:"sizeThresholdBytes"`
	MaxBackups         int `json:"maxBackups"`
}

// Config holds all cmv configuration.
type Config struct {
	ClaudeCliPath  string         `json:"claude_cli_path,omitempty"`
	DefaultProject string         `json:"default_project,omitempty"`
	AutoTrim       AutoTrimConfig `json:"autoTrim"`
}

// DefaultConfig returns config with the defaults named in §6.3.
func DefaultConfig() Config {
	return Config{
		AutoTrim: AutoTrimConfig{
			Threshold:          500,
			SizeThresholdBytes: 600_000,
			MaxBackups:         5,
		},
	}
}

// ConfigDir returns the cmv config directory path. Uses
// $XDG_CONFIG_HOME/cmv if set, otherwise ~/.config/cmv.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cmv")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "cmv")
}

func configPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// Load reads config.json from the standard path, falling back to
// defaults for any field the file omits.
func Load() (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath())
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", configPath(), err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", configPath(), err)
	}

	cfg.ClaudeCliPath = expandHome(cfg.ClaudeCliPath)
	cfg.DefaultProject = expandHome(cfg.DefaultProject)
	if cfg.AutoTrim.Threshold < 50 {
		cfg.AutoTrim.Threshold = 50
	}

	return cfg, nil
}

func expandHome(path string) string {
	if path == "" || path[:1] != "~" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	if len(path) > 1 && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}
