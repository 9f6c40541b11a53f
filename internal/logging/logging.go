// Package logging builds the diagnostic logger. Script output never goes
// through it.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/unkn0wn-root/zest/internal/config"
)

const timeFormat = "2006-01-02 15:04:05.000"

// Logger pairs the zerolog logger with whatever must be closed when the
// process exits.
type Logger struct {
	zerolog.Logger
	closers []io.Closer
}

// New builds a logger from cfg. Console output goes to stderr. With
// neither a file nor the console configured the logger discards
// everything.
func New(cfg config.LogSettings, stderr io.Writer) (*Logger, error) {
	if stderr == nil {
		stderr = os.Stderr
	}
	level := parseLevel(cfg.Level)

	var (
		writers []io.Writer
		closers []io.Closer
	)
	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: stderr, TimeFormat: timeFormat, NoColor: true})
	}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, err
		}
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    5,
			MaxAge:     30,
			MaxBackups: 3,
			LocalTime:  true,
		}
		writers = append(writers, rotating)
		closers = append(closers, rotating)
	}
	if len(writers) == 0 || level == zerolog.Disabled {
		return Nop(), nil
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	return &Logger{Logger: zl, closers: closers}, nil
}

func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

func (l *Logger) Close() error {
	var first error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	l.closers = nil
	return first
}

func parseLevel(raw string) zerolog.Level {
	switch raw {
	case config.LogLevelDebug:
		return zerolog.DebugLevel
	case config.LogLevelWarn:
		return zerolog.WarnLevel
	case config.LogLevelError:
		return zerolog.ErrorLevel
	case config.LogLevelDisabled:
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
