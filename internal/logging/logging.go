// Package logging sets up the process-wide zerolog logger: console, session
// log file and an optional Graylog (GELF) sink.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
	"github.com/webarportal/portal/internal/config"
)

// AppName prefixes session log files.
const AppName = "portal"

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, appName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", appName, sessionStart.Format("20060102_150405")),
	)
}

// ParseLevel maps a config level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "TRACE":
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetLevel changes the global level at runtime.
func SetLevel(level string) zerolog.Level {
	lvl := ParseLevel(level)
	zerolog.SetGlobalLevel(lvl)
	return lvl
}

// Session owns the outputs behind a configured logger.
type Session struct {
	Logger  zerolog.Logger
	LogPath string

	file    *os.File
	graylog *gelf.Writer
}

// Setup builds the logger described by cfg. Console output goes to console
// (os.Stdout when nil).
func Setup(cfg config.LoggingConfig, console io.Writer) (*Session, error) {
	if console == nil {
		console = os.Stdout
	}

	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	s := &Session{}
	writers := []io.Writer{
		// console format with colors
		zerolog.ConsoleWriter{
			Out:        console,
			TimeFormat: time.RFC3339,
		},
	}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create logs dir: %w", err)
		}
		s.LogPath = LogFilePath(cfg.Dir, AppName, time.Now())
		f, err := os.OpenFile(s.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		s.file = f
		// console format without colors to file
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        f,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		})
	}

	if cfg.GraylogEnabled {
		gw, err := gelf.NewWriter(cfg.GraylogAddress)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to create graylog writer: %w", err)
		}
		gw.Facility = AppName
		s.graylog = gw
		writers = append(writers, gw)
	}

	s.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	s.Logger.Info().Str("loglevel", zerolog.GlobalLevel().String()).Msg("Logging set up")
	return s, nil
}

// Close flushes and closes the file and graylog outputs.
func (s *Session) Close() error {
	var firstErr error
	if s.graylog != nil {
		if err := s.graylog.Close(); err != nil {
			firstErr = err
		}
		s.graylog = nil
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.file = nil
	}
	return firstErr
}
