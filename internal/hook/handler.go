// Package hook implements the auto-trim hook protocol of §6.4: the host
// assistant invokes this on PreCompact (trim before the host's own
// auto-compaction) and PostToolUse (size-gated), and the hook must never
// surface an error to the host — any failure anywhere in the path exits
// silently. Grounded on the teacher's internal/hook/handler.go (stdin
// timeout read, event dispatch by hook_event_name) and setup.go (hook
// registration), re-pointed at PreCompact/PostToolUse and calling
// internal/trim + internal/store instead of internal/session.Capture.
package hook

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/suykerbuyk/cmv/internal/config"
	"github.com/suykerbuyk/cmv/internal/store"
	"github.com/suykerbuyk/cmv/internal/trim"
)

const stdinTimeout = 5 * time.Second

// Input is the JSON object the host assistant sends to hooks via stdin,
// per §6.4.
type Input struct {
	SessionID      string `json:"session_id"`
	TranscriptPath string `json:"transcript_path"`
	Trigger        string `json:"trigger"`
	CWD            string `json:"cwd"`
}

// Handle runs the hook protocol end to end. It never returns an error —
// every failure is logged (if a logger is provided) and swallowed, per
// §6.4 step 7 and §7's "hook path, any: swallowed" policy.
func Handle(homeDir string, cfg config.Config, event string, log *zerolog.Logger) {
	input, err := readStdin()
	if err != nil {
		logDebug(log, "read hook stdin", err)
		return
	}
	if input.Trigger == "" {
		input.Trigger = event
	}

	if err := run(homeDir, cfg, input, log); err != nil {
		logDebug(log, "auto-trim hook", err)
	}
}

func run(homeDir string, cfg config.Config, input *Input, log *zerolog.Logger) error {
	if input.TranscriptPath == "" {
		return fmt.Errorf("no transcript_path in hook input")
	}

	info, err := os.Stat(input.TranscriptPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat transcript: %w", err)
	}

	if input.Trigger == "PostToolUse" && info.Size() < int64(cfg.AutoTrim.SizeThresholdBytes) {
		return nil
	}

	s := store.New(homeDir, log)
	if err := s.Init(); err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	backupPath, err := s.RotateBackup(input.SessionID, input.TranscriptPath, cfg.AutoTrim.MaxBackups)
	if err != nil {
		return fmt.Errorf("rotate backup: %w", err)
	}

	tmpPath := input.TranscriptPath + ".cmv-trim-tmp"
	metrics, err := trim.Trim(input.TranscriptPath, tmpPath, trim.Options{Threshold: cfg.AutoTrim.Threshold, Log: log})
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("trim transcript: %w", err)
	}

	if err := os.Rename(tmpPath, input.TranscriptPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("publish trimmed transcript: %w", err)
	}

	var reduction float64
	if metrics.OriginalBytes > 0 {
		reduction = 100 * float64(metrics.OriginalBytes-metrics.TrimmedBytes) / float64(metrics.OriginalBytes)
	}

	return s.AppendAutoTrimLog(store.AutoTrimLogEntry{
		Timestamp:        time.Now().UTC(),
		SessionID:        input.SessionID,
		Trigger:          input.Trigger,
		OriginalBytes:    metrics.OriginalBytes,
		TrimmedBytes:     metrics.TrimmedBytes,
		ReductionPercent: reduction,
		BackupPath:       backupPath,
	})
}

func logDebug(log *zerolog.Logger, op string, err error) {
	if log == nil {
		return
	}
	log.Debug().Err(err).Str("op", op).Msg("auto-trim hook error swallowed")
}

func readStdin() (*Input, error) {
	done := make(chan []byte, 1)
	errCh := make(chan error, 1)

	go func() {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			errCh <- err
			return
		}
		done <- data
	}()

	var data []byte
	select {
	case data = <-done:
	case err := <-errCh:
		return nil, err
	case <-time.After(stdinTimeout):
		return nil, fmt.Errorf("stdin read timeout")
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("empty stdin")
	}

	var input Input
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("parse stdin JSON: %w", err)
	}
	return &input, nil
}
