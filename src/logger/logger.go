package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"market-dashboard/src/models"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// -----------------------------------------------------------------------------

var (
	sinksMu sync.Mutex
	sinks   = make(map[string]io.Writer)
)

// -----------------------------------------------------------------------------

// Logger is a named component logger backed by zerolog
type Logger struct {
	name   string
	logger zerolog.Logger
	exit   func(int)
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance. A nil config logs to stdout at INFO.
func NewLogger(config *models.MConfig, name string) *Logger {
	level := zerolog.InfoLevel
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}

	if config != nil {
		level = ParseLevel(config.LogLevel)
		if config.LogFile != "" {
			out = zerolog.MultiLevelWriter(out, fileSink(config.LogFile))
		}
	}

	return newWithWriter(out, level, name)
}

// -----------------------------------------------------------------------------

// NewWithWriter builds a logger on an arbitrary writer, mostly for tests
func NewWithWriter(w io.Writer, level string, name string) *Logger {
	return newWithWriter(w, ParseLevel(level), name)
}

func newWithWriter(w io.Writer, level zerolog.Level, name string) *Logger {
	return &Logger{
		name:   name,
		logger: zerolog.New(w).Level(level).With().Timestamp().Str("component", name).Logger(),
		exit:   os.Exit,
	}
}

// -----------------------------------------------------------------------------

// fileSink returns one rotating writer per path so components share the file
func fileSink(path string) io.Writer {
	sinksMu.Lock()
	defer sinksMu.Unlock()

	if w, ok := sinks[path]; ok {
		return w
	}
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     14,
		Compress:   true,
	}
	sinks[path] = w
	return w
}

// -----------------------------------------------------------------------------

// ParseLevel maps config level names onto zerolog levels
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

// Name returns the component name
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
	l.exit(1)
}
