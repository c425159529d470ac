// Package logging builds the slog logger used by the command line shell.
// Attributes that look like credentials are redacted before they reach the
// handler.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const (
	FormatJSON = "json"
	FormatText = "text"
)

// Options configures New.
type Options struct {
	Level     string
	Format    string
	AddSource bool
}

// New returns a logger writing to w.
func New(w io.Writer, opts Options) (*slog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	hopts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   opts.AddSource,
		ReplaceAttr: replaceAttr,
	}
	var h slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", FormatJSON:
		h = slog.NewJSONHandler(w, hopts)
	case FormatText:
		h = slog.NewTextHandler(w, hopts)
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
	return slog.New(h), nil
}

// ParseLevel accepts debug, info, warn and error. The empty string means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	return Redact(a)
}
