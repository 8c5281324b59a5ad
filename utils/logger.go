package utils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/lmittmann/tint"
)

const timeFormat = "2006-01-02 15:04:05"

// LoggerOptions configures the sinks a Logger writes to.
type LoggerOptions struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string
	// Console receives colored output. Defaults to os.Stdout.
	Console io.Writer
	// FilePath, when set, mirrors every entry to an uncolored UTF-8 log file.
	FilePath string
	// Fluent, when non-nil, receives every entry as a {level,msg} record.
	Fluent *fluent.Fluent
	// FluentTag is appended to the client TagPrefix. Defaults to "log".
	FluentTag string
}

// Logger provides leveled, printf-style logging throughout the application.
type Logger struct {
	sinks     []*slog.Logger
	file      *os.File
	fluent    *fluent.Fluent
	fluentTag string
	level     slog.Level
}

// NewLogger creates a Logger with a colored console sink and the optional
// file and Fluent Bit sinks from opts.
func NewLogger(opts LoggerOptions) (*Logger, error) {
	level := ParseLevel(opts.Level)
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	l := &Logger{
		level:     level,
		fluent:    opts.Fluent,
		fluentTag: opts.FluentTag,
	}
	l.sinks = append(l.sinks, slog.New(tint.NewHandler(console, &tint.Options{
		Level:      level,
		TimeFormat: timeFormat,
	})))

	if opts.FilePath != "" {
		f, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("logger: open log file %q: %w", opts.FilePath, err)
		}
		l.file = f
		l.sinks = append(l.sinks, slog.New(tint.NewHandler(f, &tint.Options{
			Level:      level,
			TimeFormat: timeFormat,
			NoColor:    true,
		})))
	}
	if l.fluentTag == "" {
		l.fluentTag = "log"
	}

	return l, nil
}

// NewDiscardLogger returns a Logger that drops everything. Used in tests.
func NewDiscardLogger() *Logger {
	l, _ := NewLogger(LoggerOptions{Console: io.Discard, Level: "error"})
	return l
}

// ParseLevel maps a level name to a slog level, defaulting to info.
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

func (l *Logger) Info(format string, args ...any) {
	l.log(slog.LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(slog.LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log(slog.LevelError, format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.log(slog.LevelDebug, format, args...)
}

func (l *Logger) log(level slog.Level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	for _, s := range l.sinks {
		s.Log(context.Background(), level, msg)
	}
	if l.fluent != nil && level >= l.level {
		// fluent errors surface on the console sink only, to avoid recursion
		if err := l.fluent.Post(l.fluentTag, map[string]string{
			"level": level.String(),
			"msg":   msg,
		}); err != nil {
			l.sinks[0].Warn("fluent post failed", "err", err)
		}
	}
}

// Close releases the log file and the Fluent Bit connection, if any.
func (l *Logger) Close() error {
	var err error
	if l.fluent != nil {
		err = l.fluent.Close()
	}
	if l.file != nil {
		if ferr := l.file.Close(); ferr != nil && err == nil {
			err = ferr
		}
	}
	return err
}
