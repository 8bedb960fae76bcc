package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WriteDefault writes a default config.json for defaultProject if none
// exists yet, or updates default_project in an existing one, preserving
// its other fields. Returns the config path and one of
// "created"/"updated"/"unchanged".
func WriteDefault(defaultProject string) (string, string, error) {
	dir := ConfigDir()
	path := filepath.Join(dir, "config.json")
	portable := CompressHome(defaultProject)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", "", fmt.Errorf("create config dir: %w", err)
		}
		cfg := DefaultConfig()
		cfg.DefaultProject = portable
		if err := writeConfigFile(path, cfg); err != nil {
			return "", "", err
		}
		return path, "created", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return "", "", fmt.Errorf("parse existing config: %w", err)
	}

	if cfg.DefaultProject == portable {
		return path, "unchanged", nil
	}
	cfg.DefaultProject = portable
	if err := writeConfigFile(path, cfg); err != nil {
		return "", "", err
	}
	return path, "updated", nil
}

func writeConfigFile(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// CompressHome replaces $HOME prefix with ~/ for portable config values.
func CompressHome(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if strings.HasPrefix(path, home+"/") {
		return "~/" + path[len(home)+1:]
	}
	if path == home {
		return "~"
	}
	return path
}
