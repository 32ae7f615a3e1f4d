package utils

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel enumerates severity tiers.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (l LogLevel) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "UNKNOWN"
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case DEBUG:
		return zerolog.DebugLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	case FATAL:
		return zerolog.FatalLevel
	}
	return zerolog.InfoLevel
}

// ParseLogLevel accepts debug|info|warn|warning|error (any case).
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG, nil
	case "", "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	}
	return INFO, fmt.Errorf("unknown log level %q", s)
}

// Logger is a concurrency-safe, levelled logger used across the pipeline.
type Logger struct {
	inner zerolog.Logger
	file  *os.File
}

// LogOptions controls where log lines go.
type LogOptions struct {
	Level    LogLevel
	FilePath string
	// Quiet drops the stdout writer; used when a terminal UI owns the screen.
	Quiet bool
}

var (
	globalLogger *Logger
	logOnce      sync.Once
)

// InitLogger creates the singleton logger. Call once at startup.
func InitLogger(opts LogOptions) *Logger {
	logOnce.Do(func() {
		var writers []io.Writer
		if !opts.Quiet {
			writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05.000"})
		}

		var f *os.File
		if opts.FilePath != "" {
			var err error
			f, err = os.OpenFile(opts.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err == nil {
				writers = append(writers, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not open log file %s: %v\n", opts.FilePath, err)
			}
		}
		if len(writers) == 0 {
			writers = append(writers, io.Discard)
		}

		zerolog.TimeFieldFormat = time.RFC3339Nano
		inner := zerolog.New(zerolog.MultiLevelWriter(writers...)).
			Level(opts.Level.zerolog()).
			With().Timestamp().Logger()
		globalLogger = &Logger{inner: inner, file: f}
	})
	return globalLogger
}

// L returns the global logger, initialising a stdout logger at INFO when
// InitLogger has not been called (tests, library use).
func L() *Logger {
	return InitLogger(LogOptions{Level: INFO})
}

// Close closes the log file, if any.
func (l *Logger) Close() {
	if l.file != nil {
		_ = l.file.Close()
	}
}

// With returns a child logger tagging every line with component=name.
func (l *Logger) With(component string) *Logger {
	return &Logger{inner: l.inner.With().Str("component", component).Logger()}
}

func (l *Logger) Debug(f string, a ...any) { l.inner.Debug().Msgf(f, a...) }
func (l *Logger) Info(f string, a ...any)  { l.inner.Info().Msgf(f, a...) }
func (l *Logger) Warn(f string, a ...any)  { l.inner.Warn().Msgf(f, a...) }
func (l *Logger) Error(f string, a ...any) { l.inner.Error().Msgf(f, a...) }

// Fatal logs and exits with status 1.
func (l *Logger) Fatal(f string, a ...any) { l.inner.Fatal().Msgf(f, a...) }
