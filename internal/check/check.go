// Package check implements the health-check report a CLI runs to
// sanity-check the engine's home directory, master index, host layout
// discovery, and hook registration. Grounded on the teacher's
// internal/check/check.go (Result/Report/Status shape, aligned-column
// Format rendering), generalized from vault/Obsidian/enrichment checks
// to snapshot-store/host-layout/hook checks.
package check

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/suykerbuyk/cmv/internal/config"
	"github.com/suykerbuyk/cmv/internal/layout"
)

// Status represents the outcome of a single check.
type Status int

const (
	Pass Status = iota
	Warn
	Fail
)

func (s Status) String() string {
	switch s {
	case Pass:
		return "pass"
	case Warn:
		return "warn"
	case Fail:
		return "FAIL"
	default:
		return "unknown"
	}
}

// Result holds the outcome of a single check.
type Result struct {
	Name   string
	Status Status
	Detail string
}

// Report aggregates all check results.
type Report struct {
	Results []Result
}

// HasFailures returns true if any result has Fail status.
func (r Report) HasFailures() bool {
	for _, res := range r.Results {
		if res.Status == Fail {
			return true
		}
	}
	return false
}

// Format returns the human-readable report string.
func (r Report) Format() string {
	if len(r.Results) == 0 {
		return "cmv check\n\n  no checks ran\n"
	}

	maxName := 0
	for _, res := range r.Results {
		if len(res.Name) > maxName {
			maxName = len(res.Name)
		}
	}

	var b strings.Builder
	b.WriteString("cmv check\n\n")

	var passed, warnings, failures int
	for _, res := range r.Results {
		switch res.Status {
		case Pass:
			passed++
		case Warn:
			warnings++
		case Fail:
			failures++
		}
		fmt.Fprintf(&b, "  %-4s  %-*s  %s\n", res.Status, maxName, res.Name, res.Detail)
	}

	fmt.Fprintf(&b, "\n%d passed, %d warning, %d failure\n", passed, warnings, failures)
	return b.String()
}

// CheckConfig reports the resolved config path. Always passes — broken
// JSON is caught by config.Load before we get here.
func CheckConfig() Result {
	cfgPath := filepath.Join(config.ConfigDir(), "config.json")
	return Result{
		Name:   "config",
		Status: Pass,
		Detail: config.CompressHome(cfgPath),
	}
}

// CheckHomeDir checks whether the engine's home directory exists.
func CheckHomeDir(homeDir string) Result {
	if info, err := os.Stat(homeDir); err == nil && info.IsDir() {
		return Result{Name: "home", Status: Pass, Detail: config.CompressHome(homeDir)}
	}
	return Result{Name: "home", Status: Warn, Detail: homeDir + " not found (fresh install)"}
}

// CheckIndex validates the master index.json file.
func CheckIndex(homeDir string) Result {
	path := filepath.Join(homeDir, "index.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{Name: "index", Status: Warn, Detail: "index.json not found yet"}
	}

	var parsed struct {
		Snapshots map[string]json.RawMessage `json:"snapshots"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return Result{Name: "index", Status: Fail, Detail: "index.json invalid JSON"}
	}

	return Result{Name: "index", Status: Pass, Detail: fmt.Sprintf("index.json (%d snapshots)", len(parsed.Snapshots))}
}

// CheckAutoTrimLog validates the auto-trim-log.json ring buffer.
func CheckAutoTrimLog(homeDir string) Result {
	path := filepath.Join(homeDir, "auto-trim-log.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{Name: "auto-trim-log", Status: Warn, Detail: "auto-trim-log.json not found yet"}
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return Result{Name: "auto-trim-log", Status: Fail, Detail: "auto-trim-log.json invalid JSON"}
	}
	return Result{Name: "auto-trim-log", Status: Pass, Detail: fmt.Sprintf("%d entries", len(entries))}
}

// CheckAutoBackups checks whether the auto-backups directory exists and
// reports the archive count.
func CheckAutoBackups(homeDir string) Result {
	dir := filepath.Join(homeDir, "auto-backups")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Result{Name: "auto-backups", Status: Warn, Detail: "auto-backups/ not found (fresh install)"}
	}
	return Result{Name: "auto-backups", Status: Pass, Detail: fmt.Sprintf("auto-backups/ (%d files)", len(entries))}
}

// CheckHostProjects checks whether the host assistant's projects/
// directory is discoverable.
func CheckHostProjects(hostHome string) Result {
	dir := layout.ProjectsDir(hostHome)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Result{Name: "host-projects", Status: Fail, Detail: dir + " not found"}
	}
	return Result{Name: "host-projects", Status: Pass, Detail: fmt.Sprintf("%d project directories", len(entries))}
}

// CheckHook checks whether "cmv hook" is configured in
// ~/.claude/settings.json.
func CheckHook() Result {
	home, err := os.UserHomeDir()
	if err != nil {
		return Result{Name: "hook", Status: Warn, Detail: "cannot determine home directory"}
	}
	path := filepath.Join(home, ".claude", "settings.json")
	return checkHookFile(path)
}

func checkHookFile(path string) Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{Name: "hook", Status: Warn, Detail: config.CompressHome(path) + " not found"}
	}
	if strings.Contains(string(data), "cmv hook") {
		return Result{Name: "hook", Status: Pass, Detail: "cmv hook found in " + config.CompressHome(path)}
	}
	return Result{Name: "hook", Status: Fail, Detail: "cmv hook not found in " + config.CompressHome(path)}
}

// Run executes all checks against the engine's home directory and the
// host assistant's home directory, and returns a report.
func Run(homeDir, hostHome string) Report {
	var results []Result

	results = append(results, CheckConfig())
	results = append(results, CheckHomeDir(homeDir))
	results = append(results, CheckIndex(homeDir))
	results = append(results, CheckAutoTrimLog(homeDir))
	results = append(results, CheckAutoBackups(homeDir))
	results = append(results, CheckHostProjects(hostHome))
	results = append(results, CheckHook())

	return Report{Results: results}
}
