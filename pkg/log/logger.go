// Package log provides structured logging for tabfit model-selection runs.
//
// The front-end is Go's log/slog with a JSON handler; a wrapping handler
// extracts cockroachdb/errors stack traces into a dedicated attribute so
// failed fits can be debugged from log output alone. Warnings raised through
// pkg/errors are bridged to zerolog for structured emission.
package log

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/tabfit/pkg/errors"
)

// SetupLogger installs the default slog logger for the library.
func SetupLogger(loglevel string) {
	ops := slog.HandlerOptions{
		AddSource: true,
		Level:     ToLogLevel(loglevel),
	}
	handler := slog.NewJSONHandler(os.Stdout, &ops)
	errFmtHandler := WrapByErrFmtHandler(handler)
	slog.SetDefault(slog.New(errFmtHandler))
}

// ToLogLevel converts a level name to a slog.Level.
func ToLogLevel(level string) slog.Level {
	switch level {
	case "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		panic(fmt.Sprintf("invalid log level :%s", level))
	}
}

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}

// InstallWarningLogger routes pkg/errors warnings through a zerolog logger.
// Warning types that implement zerolog.LogObjectMarshaler are emitted as
// structured objects.
func InstallWarningLogger(logger zerolog.Logger) {
	errors.SetZerologWarnFunc(func(warning error) {
		event := logger.Warn()
		if marshaler, ok := warning.(zerolog.LogObjectMarshaler); ok {
			event.Object("warning", marshaler).Msg(warning.Error())
			return
		}
		event.Msg(warning.Error())
	})
}
