package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"wattwise/internal/infra/config"
)

// New builds the process logger from configuration. The second return
// value closes a file sink and must be deferred; for stdout and stderr
// it is a no-op. Unknown levels and formats fall back to info/text
// rather than failing startup.
func New(cfg config.LoggerConfig) (*slog.Logger, func() error, error) {
	sink, closer, err := openSink(cfg.Output)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output %q: %w", cfg.Output, err)
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(sink, opts)
	} else {
		handler = slog.NewTextHandler(sink, opts)
	}

	return slog.New(handler), closer, nil
}

// parseLevel accepts the slog level names plus "warning".
func parseLevel(s string) slog.Level {
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// openSink maps the output target to a writer. Anything that is not
// "stdout" or "stderr" is treated as a file path, created 0600 since
// turn logs can carry conversation fragments.
func openSink(output string) (io.Writer, func() error, error) {
	keepOpen := func() error { return nil }

	switch strings.ToLower(output) {
	case "stdout":
		return os.Stdout, keepOpen, nil
	case "stderr", "":
		return os.Stderr, keepOpen, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	}
}
