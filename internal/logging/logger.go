// Package logging provides leveled logging and tick tracing for heatup.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - A TickLogger for structured JSONL snapshot traces of a run
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/criticalsim/heatup/internal/models"
)

// LevelTrace is a custom slog level below Debug for full content logging.
// At this level, per-tick controller decisions and other verbose content are
// included.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Label the custom trace level
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// TickLogger writes per-tick snapshots to a JSONL file, one line per tick.
// It is safe for concurrent use. A nil TickLogger is safe to use; all
// methods are no-ops on nil receiver.
type TickLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewTickLogger creates a tick logger appending to path. An empty path
// disables tick logging and returns nil. Returns nil if the file cannot be
// opened. All methods are nil-safe.
func NewTickLogger(path string) *TickLogger {
	if path == "" {
		return nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}

	return &TickLogger{file: f}
}

// Log writes one snapshot as a single JSONL line. The simulated time is part
// of the snapshot itself; no wall-clock field is added, so a replayed run
// produces a byte-identical log. Safe to call on nil receiver.
func (tl *TickLogger) Log(snap *models.Snapshot) {
	if tl == nil || tl.file == nil || snap == nil {
		return
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	data = append(data, '\n')
	_, _ = tl.file.Write(data)
}

// Close closes the underlying file. Safe to call on nil receiver.
func (tl *TickLogger) Close() {
	if tl == nil || tl.file == nil {
		return
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()

	tl.file.Close()
	tl.file = nil
}
