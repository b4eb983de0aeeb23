package logging

import (
	"io"
	"log/slog"
	"os"
)

// sensitiveKeys are attribute keys whose string values carry a phone
// number or similar second factor.
var sensitiveKeys = map[string]struct{}{
	"destination":   {},
	"second_factor": {},
}

// New creates a JSON slog logger on stdout configured at the provided level.
// If the level string is invalid it defaults to info. attrs are attached to
// every record.
func New(level string, attrs ...slog.Attr) *slog.Logger {
	return NewWithWriter(os.Stdout, level, attrs...)
}

// NewWithWriter is New writing to w.
func NewWithWriter(w io.Writer, level string, attrs ...slog.Attr) *slog.Logger {
	lvl := new(slog.LevelVar)
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl.Set(slog.LevelInfo)
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl, ReplaceAttr: redact})
	return slog.New(handler.WithAttrs(attrs))
}

// Discard returns a logger that drops all output. Useful for tests.
func Discard() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[a.Key]; ok && a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, MaskPhone(a.Value.String()))
	}
	return a
}
