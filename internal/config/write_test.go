package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteDefault_CreatesConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path, action, err := WriteDefault("/home/user/project")
	if err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	if action != "created" {
		t.Errorf("action = %q, want %q", action, "created")
	}

	want := filepath.Join(dir, "cmv", "config.json")
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("unmarshal written config: %v", err)
	}
	if cfg.DefaultProject != "/home/user/project" {
		t.Errorf("DefaultProject = %q", cfg.DefaultProject)
	}
	if cfg.AutoTrim.Threshold != 500 {
		t.Errorf("AutoTrim.Threshold = %d, want default 500", cfg.AutoTrim.Threshold)
	}
}

func TestWriteDefault_UpdatesExistingProject(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	configDir := filepath.Join(dir, "cmv")
	os.MkdirAll(configDir, 0o755)

	existing := filepath.Join(configDir, "config.json")
	os.WriteFile(existing, []byte(`{"default_project":"/old/project","autoTrim":{"threshold":300,"sizeThresholdBytes":500000,"maxBackups":4}}`), 0o644)

	path, action, err := WriteDefault("/new/project")
	if err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	if action != "updated" {
		t.Errorf("action = %q, want %q", action, "updated")
	}
	if path != existing {
		t.Errorf("path = %q, want %q", path, existing)
	}

	data, _ := os.ReadFile(existing)
	var cfg Config
	json.Unmarshal(data, &cfg)

	if cfg.DefaultProject != "/new/project" {
		t.Error("default_project not updated")
	}
	if cfg.AutoTrim.Threshold != 300 {
		t.Error("existing autoTrim settings were lost on update")
	}
}

func TestWriteDefault_UnchangedExisting(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	configDir := filepath.Join(dir, "cmv")
	os.MkdirAll(configDir, 0o755)

	existing := filepath.Join(configDir, "config.json")
	original := `{"default_project":"/some/path","autoTrim":{"threshold":500,"sizeThresholdBytes":600000,"maxBackups":5}}`
	os.WriteFile(existing, []byte(original), 0o644)

	_, action, err := WriteDefault("/some/path")
	if err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	if action != "unchanged" {
		t.Errorf("action = %q, want %q", action, "unchanged")
	}
}

func TestCompressHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}

	tests := []struct {
		input string
		want  string
	}{
		{home + "/project", "~/project"},
		{"/tmp/other", "/tmp/other"},
		{home, "~"},
	}

	for _, tt := range tests {
		got := CompressHome(tt.input)
		if got != tt.want {
			t.Errorf("CompressHome(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
