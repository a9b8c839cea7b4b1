// Package cli provides utility functions for the PhotoDrop command line applications.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/photodrop/photodrop/internal/constants"
)

// ParseLevel converts a LOG_LEVEL value into a slog.Level.
//
// Accepted names are DEBUG, INFO, WARNING (or WARN) and ERROR, in any case.
// An empty name selects the default level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "":
		return constants.DefaultLogLevel, nil
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARNING", "WARN":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}

// logLevel is the level of the active handler, shared so SetVerbosity can
// adjust JSON handlers after they are installed.
var logLevel = &slog.LevelVar{}

// SetSlog sets the logging level and format for the default logger.
func SetSlog(level slog.Level, jsonLogs bool) {
	logLevel.Set(level)
	if jsonLogs {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
		return
	}

	slog.SetLogLoggerLevel(level)
}

// DisableLogging silences the default logger entirely. Used when LOG=0.
func DisableLogging() {
	slog.SetDefault(slog.New(slog.DiscardHandler))
}

// SetVerbosity makes the default logger more verbose based on the verbose
// flag count: one -v asks for INFO, two or more for DEBUG. It never hides
// records the configured level already lets through.
func SetVerbosity(verbosity int) {
	var want slog.Level
	switch verbosity {
	case 0:
		return
	case 1:
		want = slog.LevelInfo
	default:
		want = slog.LevelDebug
	}

	if want >= logLevel.Level() {
		return
	}

	logLevel.Set(want)
	slog.SetLogLoggerLevel(want)
}
