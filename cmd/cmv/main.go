package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/suykerbuyk/cmv/internal/analyze"
	"github.com/suykerbuyk/cmv/internal/archive"
	"github.com/suykerbuyk/cmv/internal/check"
	"github.com/suykerbuyk/cmv/internal/config"
	"github.com/suykerbuyk/cmv/internal/hook"
	"github.com/suykerbuyk/cmv/internal/layout"
	"github.com/suykerbuyk/cmv/internal/logging"
	"github.com/suykerbuyk/cmv/internal/pricing"
	"github.com/suykerbuyk/cmv/internal/reader"
	"github.com/suykerbuyk/cmv/internal/store"
	"github.com/suykerbuyk/cmv/internal/trim"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fatal("load config: %v", err)
	}

	log := logging.New(logging.Options{Level: os.Getenv("CMV_LOG_LEVEL")})

	switch os.Args[1] {
	case "hook":
		event := flagValue(os.Args[2:], "--event")
		hook.Handle(homeDir(), cfg, event, &log)

	case "install-hook":
		if err := hook.Install(); err != nil {
			fatal("%v", err)
		}

	case "uninstall-hook":
		if err := hook.Uninstall(); err != nil {
			fatal("%v", err)
		}

	case "check":
		report := check.Run(homeDir(), hostHome())
		fmt.Print(report.Format())
		if report.HasFailures() {
			os.Exit(1)
		}

	case "config":
		cmdConfig(os.Args[2:])

	case "discover-sessions":
		cmdDiscoverSessions(os.Args[2:], &log)

	case "find-session":
		cmdFindSession(os.Args[2:], &log)

	case "create-snapshot":
		cmdCreateSnapshot(os.Args[2:], &log)

	case "delete-snapshot":
		cmdDeleteSnapshot(os.Args[2:], &log)

	case "list-snapshots":
		cmdListSnapshots(os.Args[2:], &log)

	case "get-snapshot":
		cmdGetSnapshot(os.Args[2:], &log)

	case "tree":
		cmdTree(os.Args[2:], &log)

	case "create-branch":
		cmdCreateBranch(os.Args[2:], &log)

	case "delete-branch":
		cmdDeleteBranch(os.Args[2:], &log)

	case "trim":
		cmdTrim(os.Args[2:])

	case "analyze":
		cmdAnalyze(os.Args[2:])

	case "cache-impact":
		cmdCacheImpact(os.Args[2:])

	case "export-snapshot":
		cmdExportSnapshot(os.Args[2:], &log)

	case "import-snapshot":
		cmdImportSnapshot(os.Args[2:], &log)

	case "version":
		fmt.Printf("cmv v%s\n", version)

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `cmv v%s — Claude Code conversation version control

Usage:
  cmv discover-sessions [--project <path>] [--active-only]
  cmv find-session <id-or-prefix>
  cmv create-snapshot <name> [--session <id>] [--description <text>] [--tag <tag>]...
  cmv delete-snapshot <name>
  cmv list-snapshots
  cmv get-snapshot <name>
  cmv tree
  cmv create-branch <snapshot> [--name <branch>] [--trim] [--threshold <n>] [--message <text>]
  cmv delete-branch <snapshot> <branch>
  cmv trim <src.jsonl> <dst.jsonl> [--threshold <n>]
  cmv analyze <transcript.jsonl>
  cmv cache-impact <transcript.jsonl> --model <name> [--hit-rate <0-1>]
  cmv export-snapshot <name> <dst.cmv>
  cmv import-snapshot <src.cmv> [--name <name>]
  cmv hook [--event <name>]       Hook mode (reads stdin from Claude Code)
  cmv install-hook                Register the auto-trim hook in settings.json
  cmv uninstall-hook              Remove the auto-trim hook from settings.json
  cmv check                       Run the engine health check
  cmv config init [project]       Write a default config.json
  cmv version                     Print version
  cmv help                        Show this help

Hook integration (settings.json):
  {"type": "command", "command": "cmv hook"}

Configuration: ~/.config/cmv/config.json
Engine home:   ~/.cmv (override with CMV_HOME)
`, version)
}

func flagValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "cmv: "+format+"\n", args...)
	os.Exit(1)
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal("marshal output: %v", err)
	}
	fmt.Println(string(data))
}

// homeDir resolves the engine's home directory: CMV_HOME if set, else
// ~/.cmv, distinct from both the host assistant's ~/.claude and cmv's own
// ~/.config/cmv settings directory.
func homeDir() string {
	if override := os.Getenv("CMV_HOME"); override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil {
		fatal("determine home directory: %v", err)
	}
	return filepath.Join(home, ".cmv")
}

// hostHome resolves the host assistant's home directory, per
// internal/layout's CLAUDE_CONFIG_DIR override convention.
func hostHome() string {
	h, err := layout.HomeDir()
	if err != nil {
		fatal("determine host home directory: %v", err)
	}
	return h
}

func newStore(log *zerolog.Logger) *store.Store {
	s := store.New(homeDir(), log)
	if err := s.Init(); err != nil {
		fatal("init store: %v", err)
	}
	return s
}

func newReader(log *zerolog.Logger) *reader.Reader {
	r := reader.New(hostHome(), log)
	if err := os.MkdirAll(homeDir(), 0o755); err != nil {
		return r
	}
	cache, err := reader.OpenCache(filepath.Join(homeDir(), "discover-cache.db"))
	if err != nil {
		nopLog := logging.OrNop(log)
		nopLog.Warn().Err(err).Msg("discovery cache unavailable, falling back to uncached counting")
		return r
	}
	return r.WithCache(cache)
}

func cmdConfig(args []string) {
	if len(args) == 0 || args[0] != "init" {
		fatal("usage: cmv config init [project-path]")
	}
	project := ""
	if len(args) > 1 {
		project = args[1]
	}
	path, status, err := config.WriteDefault(project)
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("%s: %s\n", status, path)
}

func cmdDiscoverSessions(args []string, log *zerolog.Logger) {
	fs := flag.NewFlagSet("discover-sessions", flag.ExitOnError)
	project := fs.String("project", "", "restrict to one project path")
	activeOnly := fs.Bool("active-only", false, "only actively in-use sessions")
	fs.Parse(args)

	r := newReader(log)
	var filter *reader.Filter
	if *project != "" || *activeOnly {
		filter = &reader.Filter{ProjectPath: *project, ActiveOnly: *activeOnly}
	}
	found, err := r.DiscoverSessions(filter)
	if err != nil {
		fatal("%v", err)
	}
	printJSON(found)
}

func cmdFindSession(args []string, log *zerolog.Logger) {
	if len(args) < 1 {
		fatal("usage: cmv find-session <id-or-prefix>")
	}
	r := newReader(log)
	found, err := r.FindSession(args[0])
	if err != nil {
		fatal("%v", err)
	}
	printJSON(found)
}

func cmdCreateSnapshot(args []string, log *zerolog.Logger) {
	fs := flag.NewFlagSet("create-snapshot", flag.ExitOnError)
	session := fs.String("session", "", "source session id (default: most recently modified)")
	description := fs.String("description", "", "snapshot description")
	var tags stringSlice
	fs.Var(&tags, "tag", "tag (repeatable)")
	var rest []string
	for fs.Parse(args); fs.NArg() > 0; fs.Parse(args) {
		rest = append(rest, fs.Arg(0))
		args = fs.Args()[1:]
	}
	if len(rest) < 1 {
		fatal("usage: cmv create-snapshot <name> [--session <id>] [--description <text>] [--tag <tag>]...")
	}

	s := newStore(log)
	r := newReader(log)
	result, err := s.CreateSnapshot(r, store.CreateSnapshotParams{
		Name:            rest[0],
		SourceSessionID: *session,
		Description:     *description,
		Tags:            tags,
	})
	if err != nil {
		fatal("%v", err)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	printJSON(result.Snapshot)
}

func cmdDeleteSnapshot(args []string, log *zerolog.Logger) {
	if len(args) < 1 {
		fatal("usage: cmv delete-snapshot <name>")
	}
	s := newStore(log)
	if err := s.DeleteSnapshot(args[0]); err != nil {
		fatal("%v", err)
	}
	fmt.Printf("deleted: %s\n", args[0])
}

func cmdListSnapshots(args []string, log *zerolog.Logger) {
	s := newStore(log)
	snaps, err := s.ListSnapshots()
	if err != nil {
		fatal("%v", err)
	}
	printJSON(snaps)
}

func cmdGetSnapshot(args []string, log *zerolog.Logger) {
	if len(args) < 1 {
		fatal("usage: cmv get-snapshot <name>")
	}
	s := newStore(log)
	snap, err := s.GetSnapshot(args[0])
	if err != nil {
		fatal("%v", err)
	}
	printJSON(snap)
}

func cmdTree(args []string, log *zerolog.Logger) {
	s := newStore(log)
	tree, err := s.BuildTree()
	if err != nil {
		fatal("%v", err)
	}
	printJSON(tree)
}

func cmdCreateBranch(args []string, log *zerolog.Logger) {
	fs := flag.NewFlagSet("create-branch", flag.ExitOnError)
	name := fs.String("name", "", "branch name (default: new session id)")
	doTrim := fs.Bool("trim", false, "trim while materializing the branch")
	threshold := fs.Int("threshold", 0, "stub threshold when --trim is set")
	message := fs.String("message", "", "orientation message to append")
	var rest []string
	for fs.Parse(args); fs.NArg() > 0; fs.Parse(args) {
		rest = append(rest, fs.Arg(0))
		args = fs.Args()[1:]
	}
	if len(rest) < 1 {
		fatal("usage: cmv create-branch <snapshot> [--name <branch>] [--trim] [--threshold <n>] [--message <text>]")
	}

	s := newStore(log)
	result, err := s.CreateBranch(hostHome(), store.CreateBranchParams{
		SnapshotName:       rest[0],
		BranchName:         *name,
		Trim:               *doTrim,
		TrimThreshold:      *threshold,
		OrientationMessage: *message,
	})
	if err != nil {
		fatal("%v", err)
	}
	printJSON(result)
}

func cmdDeleteBranch(args []string, log *zerolog.Logger) {
	if len(args) < 2 {
		fatal("usage: cmv delete-branch <snapshot> <branch>")
	}
	s := newStore(log)
	if err := s.DeleteBranch(hostHome(), args[0], args[1]); err != nil {
		fatal("%v", err)
	}
	fmt.Printf("deleted branch %s from %s\n", args[1], args[0])
}

func cmdTrim(args []string) {
	fs := flag.NewFlagSet("trim", flag.ExitOnError)
	threshold := fs.Int("threshold", 0, "stub threshold")
	var rest []string
	for fs.Parse(args); fs.NArg() > 0; fs.Parse(args) {
		rest = append(rest, fs.Arg(0))
		args = fs.Args()[1:]
	}
	if len(rest) < 2 {
		fatal("usage: cmv trim <src.jsonl> <dst.jsonl> [--threshold <n>]")
	}

	metrics, err := trim.Trim(rest[0], rest[1], trim.Options{Threshold: *threshold})
	if err != nil {
		fatal("%v", err)
	}
	printJSON(metrics)
}

func cmdAnalyze(args []string) {
	if len(args) < 1 {
		fatal("usage: cmv analyze <transcript.jsonl>")
	}
	result, err := analyze.Analyze(args[0])
	if err != nil {
		fatal("%v", err)
	}
	printJSON(result)
}

func cmdCacheImpact(args []string) {
	fs := flag.NewFlagSet("cache-impact", flag.ExitOnError)
	model := fs.String("model", "", "pricing model name")
	hitRate := fs.Float64("hit-rate", 0, "steady-state cache hit rate (0-1)")
	var rest []string
	for fs.Parse(args); fs.NArg() > 0; fs.Parse(args) {
		rest = append(rest, fs.Arg(0))
		args = fs.Args()[1:]
	}
	if len(rest) < 1 || *model == "" {
		fatal("usage: cmv cache-impact <transcript.jsonl> --model <name> [--hit-rate <0-1>]")
	}

	analysis, err := analyze.Analyze(rest[0])
	if err != nil {
		fatal("%v", err)
	}
	report, err := pricing.Analyze(analysis, *model, *hitRate)
	if err != nil {
		fatal("%v", err)
	}
	printJSON(report)
}

func cmdExportSnapshot(args []string, log *zerolog.Logger) {
	if len(args) < 2 {
		fatal("usage: cmv export-snapshot <name> <dst.cmv>")
	}
	s := newStore(log)
	if err := archive.ExportSnapshot(s, args[0], args[1]); err != nil {
		fatal("%v", err)
	}
	fmt.Printf("exported %s -> %s\n", args[0], args[1])
}

func cmdImportSnapshot(args []string, log *zerolog.Logger) {
	fs := flag.NewFlagSet("import-snapshot", flag.ExitOnError)
	name := fs.String("name", "", "override the imported snapshot's name")
	var rest []string
	for fs.Parse(args); fs.NArg() > 0; fs.Parse(args) {
		rest = append(rest, fs.Arg(0))
		args = fs.Args()[1:]
	}
	if len(rest) < 1 {
		fatal("usage: cmv import-snapshot <src.cmv> [--name <name>]")
	}

	s := newStore(log)
	snap, err := archive.ImportSnapshot(s, rest[0], *name)
	if err != nil {
		fatal("%v", err)
	}
	printJSON(snap)
}

// stringSlice implements flag.Value for repeatable --tag flags.
type stringSlice []string

func (s *stringSlice) String() string {
	return fmt.Sprint([]string(*s))
}

func (s *stringSlice) Set(value string) error {
	*s = append(*s, value)
	return nil
}
