// Package cclog is a thin, leveled wrapper around log/slog.
//
// Mirrors the teacher's convention of a small `log` package exposing
// package-level Print/Printf/Errorf helpers rather than threading a logger
// instance through every call site.
package cclog

import (
	"fmt"
	"log/slog"
	"os"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// SetLevel adjusts the minimum level emitted by the package logger.
func SetLevel(level slog.Level) {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func Print(args ...interface{}) {
	logger.Info(fmt.Sprint(args...))
}

func Printf(format string, args ...interface{}) {
	logger.Info(fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...interface{}) {
	logger.Debug(fmt.Sprintf(format, args...))
}

func Warnf(format string, args ...interface{}) {
	logger.Warn(fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...interface{}) {
	logger.Error(fmt.Sprintf(format, args...))
}

func Error(args ...interface{}) {
	logger.Error(fmt.Sprint(args...))
}

// Fatal logs at error level and terminates the process. Reserved for
// unrecoverable startup failures (manifest parse, schema reconciliation).
func Fatal(args ...interface{}) {
	logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}

func Fatalf(format string, args ...interface{}) {
	logger.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
