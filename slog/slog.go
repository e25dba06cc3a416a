// Package slog provides structured logging, wrapping [log/slog] with
// environment driven configuration of levels and formats and loggers carried
// on contexts.
package slog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
)

type (
	// A Handler handles log records produced by a Logger.
	Handler = slog.Handler

	// HandlerOptions are options for the handlers created by [NewHandler].
	HandlerOptions = slog.HandlerOptions

	// Level determines the importance or severity of a log record
	Level = slog.Level

	// Logger represents a logger instance with its own context.
	// It extends Go's slog.Logger by adding new methods, like [Logger.Fatal].
	Logger struct {
		*slog.Logger
	}

	// Format determines the output format of the log records
	Format string

	// Config represents log configuration.
	Config struct {
		Level  Level
		Format Format
	}
)

// All available log levels
const (
	LevelInfo    Level = slog.LevelInfo
	LevelDebug   Level = slog.LevelDebug
	LevelWarn    Level = slog.LevelWarn
	LevelError   Level = slog.LevelError
	LevelDisable Level = math.MaxInt
)

// All available log formats
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Default configurations
const (
	DefaultLevel  = LevelInfo
	DefaultFormat = FormatText
)

// Fatal is equivalent to [Logger.Error] followed by a call to os.Exit(1).
func (l *Logger) Fatal(msg string, args ...any) {
	l.Error(msg, args...)
	os.Exit(1)
}

// With calls Logger.With returning a new Logger instance.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{l.Logger.With(args...)}
}

// LoadConfig loads the log Config of a program from environment variables
// prefixed with its name, a program "ORMKIT" reads "ORMKIT_LOG_LEVEL" and "ORMKIT_LOG_FMT".
//
// Available log levels are: "debug", "info", "warn", "error", "disable".
// Available log formats are: "text", "json".
// Unset variables get the default values.
func LoadConfig(name string) (Config, error) {
	level, err := ParseLevel(os.Getenv(name + "_LOG_LEVEL"))
	if err != nil {
		return Config{}, err
	}
	format, err := ParseFormat(os.Getenv(name + "_LOG_FMT"))
	if err != nil {
		return Config{}, err
	}
	return Config{Level: level, Format: format}, nil
}

// New creates a new Logger with the given non-nil Handler.
func New(h Handler) *Logger {
	return &Logger{slog.New(h)}
}

// NewHandler creates a handler writing records of at least cfg.Level to w in cfg.Format.
func NewHandler(w io.Writer, cfg Config) (Handler, error) {
	opts := &HandlerOptions{Level: cfg.Level}
	switch cfg.Format {
	case FormatText:
		return slog.NewTextHandler(w, opts), nil
	case FormatJSON:
		return slog.NewJSONHandler(w, opts), nil
	}
	return nil, fmt.Errorf("unknown log format: %q", cfg.Format)
}

// Configure changes the default logger, writing to stderr.
// It should be called as soon as possible, usually on the main of your program.
func Configure(cfg Config) error {
	h, err := NewHandler(os.Stderr, cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(h))
	return nil
}

// Info calls Logger.Info on the default logger.
func Info(msg string, args ...any) {
	slog.Info(msg, args...)
}

// Debug calls Logger.Debug on the default logger.
func Debug(msg string, args ...any) {
	slog.Debug(msg, args...)
}

// Warn calls Logger.Warn on the default logger.
func Warn(msg string, args ...any) {
	slog.Warn(msg, args...)
}

// Error calls Logger.Error on the default logger.
func Error(msg string, args ...any) {
	slog.Error(msg, args...)
}

// Fatal is equivalent to Error() followed by a call to os.Exit(1).
func Fatal(msg string, args ...any) {
	Error(msg, args...)
	os.Exit(1)
}

// Default returns a [Logger] using the default handler.
func Default() *Logger {
	return &Logger{slog.Default()}
}

// FromCtx gets the [Logger] associated with the given context. A default [Logger] is
// returned if the context has no [Logger] associated with it.
func FromCtx(ctx context.Context) *Logger {
	if log, ok := ctx.Value(loggerKey).(*Logger); ok {
		return log
	}
	return Default()
}

// NewContext creates a new [context.Context] with the given [Logger] associated with it.
// Call [FromCtx] to retrieve the [Logger].
func NewContext(ctx context.Context, log *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, log)
}

type key int

const loggerKey key = 0

// ParseLevel parses the string and returns the corresponding [Level], empty means [DefaultLevel].
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "":
		return DefaultLevel, nil
	case "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "disable":
		return LevelDisable, nil
	}
	return 0, fmt.Errorf("invalid log level: %q", level)
}

// ParseFormat parses the string and returns the corresponding [Format], empty means [DefaultFormat].
func ParseFormat(format string) (Format, error) {
	switch f := Format(strings.ToLower(format)); f {
	case "":
		return DefaultFormat, nil
	case FormatText, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown log format: %q", format)
}
