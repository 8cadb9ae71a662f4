package logger

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default output capture constants
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
	DefaultTailLines  = 40 // lines kept in memory per target
)

// Config describes where a target's merged stdout/stderr goes.
// If Path is empty and Dir is set, the file is Dir/<name>.log.
// Rotation parameters follow lumberjack semantics.
type Config struct {
	Dir        string `json:"dir" mapstructure:"dir"`                   // base directory for capture files
	Path       string `json:"path" mapstructure:"path"`                 // explicit file path overrides Dir
	MaxSizeMB  int    `json:"max_size_mb" mapstructure:"max_size_mb"`   // megabytes before rotation (default 10)
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups"`   // number of backups to keep (default 3)
	MaxAgeDays int    `json:"max_age_days" mapstructure:"max_age_days"` // days to keep (default 7)
	Compress   bool   `json:"compress" mapstructure:"compress"`         // gzip rotated files
	TailLines  int    `json:"tail_lines" mapstructure:"tail_lines"`     // lines retained for the timeout report (default 40)
}

// Enabled reports whether output should be written to a file.
func (c Config) Enabled() bool { return c.Dir != "" || c.Path != "" }

// FilePath returns the capture file for the named target, or "" when disabled.
func (c Config) FilePath(name string) string {
	if c.Path != "" {
		return c.Path
	}
	if c.Dir == "" {
		return ""
	}
	return filepath.Join(c.Dir, fmt.Sprintf("%s.log", name))
}

// Writer returns a rotating writer for the merged output of the named target.
// It returns nil when file capture is not configured.
func (c Config) Writer(name string) io.WriteCloser {
	path := c.FilePath(name)
	if path == "" {
		return nil
	}
	return &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

// Tail returns the configured number of tail lines, applying the default.
func (c Config) Tail() int { return valOr(c.TailLines, DefaultTailLines) }

// Merge overlays non-zero fields of o on top of c.
func (c Config) Merge(o Config) Config {
	if o.Dir != "" {
		c.Dir = o.Dir
	}
	if o.Path != "" {
		c.Path = o.Path
	}
	if o.MaxSizeMB != 0 {
		c.MaxSizeMB = o.MaxSizeMB
	}
	if o.MaxBackups != 0 {
		c.MaxBackups = o.MaxBackups
	}
	if o.MaxAgeDays != 0 {
		c.MaxAgeDays = o.MaxAgeDays
	}
	if o.Compress {
		c.Compress = true
	}
	if o.TailLines != 0 {
		c.TailLines = o.TailLines
	}
	return c
}

// ParseLevel maps a textual level to slog.Level. Unknown values fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds the diagnostic logger used by the harness.
func New(w io.Writer, level slog.Level, color bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if color {
		return slog.New(NewColorTextHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
