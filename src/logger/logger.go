package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// -----------------------------------------------------------------------------

// Logger provides structured logging functionality
type Logger struct {
	name   string
	logger zerolog.Logger
}

// -----------------------------------------------------------------------------

// NewLogger creates a console Logger writing to stdout at the given level
func NewLogger(level string, name string) *Logger {
	out := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}
	return NewLoggerWithWriter(out, level, name)
}

// -----------------------------------------------------------------------------

// NewLoggerWithWriter is NewLogger with an explicit sink (tests use io.Discard)
func NewLoggerWithWriter(w io.Writer, level string, name string) *Logger {
	zl := zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Str("component", name).Logger()
	return &Logger{name: name, logger: zl}
}

// -----------------------------------------------------------------------------

// Nop returns a Logger that discards everything
func Nop() *Logger {
	return &Logger{name: "nop", logger: zerolog.Nop()}
}

// -----------------------------------------------------------------------------

// ParseLevel maps the config level names onto zerolog levels. Unknown means INFO.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARNING", "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "CRITICAL":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// -----------------------------------------------------------------------------

// Named derives a logger for a sub-component, keeping the level and sink
func (l *Logger) Named(name string) *Logger {
	return &Logger{
		name:   name,
		logger: l.logger.With().Str("component", name).Logger(),
	}
}

// -----------------------------------------------------------------------------

// With attaches a key/value pair to every entry of the returned logger
func (l *Logger) With(key, value string) *Logger {
	return &Logger{
		name:   l.name,
		logger: l.logger.With().Str(key, value).Logger(),
	}
}

// -----------------------------------------------------------------------------

func (l *Logger) Name() string {
	return l.name
}

// -----------------------------------------------------------------------------

// Debug logs diagnostic messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.logger.Debug().Msg(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Warning logs recoverable problems
func (l *Logger) Warning(format string, args ...interface{}) {
	l.logger.Warn().Msg(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.logger.Info().Msg(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.logger.Error().Msg(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.logger.WithLevel(zerolog.FatalLevel).Msg(fmt.Sprintf(format, args...))
	os.Exit(1)
}
