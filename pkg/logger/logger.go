// Package logger provides structured logging on top of zerolog.
package logger

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

type Logger struct {
	logger *zerolog.Logger
}

// New builds a Logger writing JSON to stdout at the given level.
// Unknown levels fall back to info.
func New(level string) *Logger {
	var l zerolog.Level

	switch strings.ToLower(level) {
	case "debug":
		l = zerolog.DebugLevel
	case "info":
		l = zerolog.InfoLevel
	case "warn", "warning":
		l = zerolog.WarnLevel
	case "error":
		l = zerolog.ErrorLevel
	default:
		l = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(l)

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	return &Logger{logger: &logger}
}

func (l *Logger) Debug(message string, args ...any) {
	l.msg(l.logger.Debug(), message, args...)
}

func (l *Logger) Info(message string, args ...any) {
	l.msg(l.logger.Info(), message, args...)
}

func (l *Logger) Warn(message string, args ...any) {
	l.msg(l.logger.Warn(), message, args...)
}

func (l *Logger) Error(message any, args ...any) {
	if err, ok := message.(error); ok && len(args) == 0 {
		l.logger.Error().Msg(err.Error())
		return
	}
	l.msg(l.logger.Error(), fmt.Sprint(message), args...)
}

// Fatal logs the message and exits with status 1.
func (l *Logger) Fatal(message any, args ...any) {
	l.msg(l.logger.Fatal(), fmt.Sprint(message), args...)
}

func (l *Logger) msg(e *zerolog.Event, message string, args ...any) {
	if len(args) == 0 {
		e.Msg(message)
		return
	}
	e.Msgf(message, args...)
}
