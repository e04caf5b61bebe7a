// Package log builds the structured loggers used across fdbridge.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// TimeFormat is the timestamp layout of log records.
const TimeFormat = "2006/01/02 15:04:05.000000"

// Options configures New.
type Options struct {
	// Level is the minimum level logged.
	Level slog.Level

	// File is appended to when set; otherwise records go to Writer.
	File string

	// Writer receives records when File is empty. Defaults to os.Stderr.
	Writer io.Writer
}

// Logger is a slog.Logger that owns its output file.
type Logger struct {
	*slog.Logger
	file *os.File
}

// New creates a text logger with a microsecond timestamp format.
func New(opts Options) (*Logger, error) {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	var file *os.File
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		file, w = f, f
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: opts.Level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.String(slog.TimeKey, a.Value.Time().Format(TimeFormat))
			}
			return a
		},
	})

	return &Logger{Logger: slog.New(handler), file: file}, nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Session returns a child logger tagging records with the session id.
func (l *Logger) Session(id string) *slog.Logger {
	return l.With("session", id)
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Chunk renders protocol text for a log attribute: escapes visible, cut to
// max bytes.
func Chunk(text string, max int) string {
	cut := ""
	if max > 0 && len(text) > max {
		text, cut = text[:max], fmt.Sprintf("...(%d more)", len(text)-max)
	}
	encoded := fmt.Sprintf("%q", text)
	return encoded[1:len(encoded)-1] + cut
}
