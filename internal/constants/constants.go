// Package constants defines the constants shared across the PhotoDrop service.
package constants

import "log/slog"

var (
	// Version is the version of the service.
	Version = "Dev"
)

const (
	// WebServiceCmdName is the name of the web service command.
	WebServiceCmdName = "photodrop-web-service"

	// DefaultLogLevel is the log level used when LOG_LEVEL is not set.
	DefaultLogLevel = slog.LevelInfo

	// DefaultPhotosDir is the directory photo archives are served from.
	DefaultPhotosDir = "photos"

	// DefaultIndexFile is the page served at the root of the service.
	DefaultIndexFile = "static/index.html"

	// DefaultListenPort is the port the web service listens on.
	DefaultListenPort = 8080

	// DefaultMetricsPort is the port the Prometheus metrics listener uses.
	DefaultMetricsPort = 2112

	// DefaultThrottleKBps is the default bandwidth cap per download in KiB/s.
	// 0 means unlimited.
	DefaultThrottleKBps = 0
)

// Environment variables kept from the original container contract. They are
// bound in addition to the PHOTODROP_WEB_SERVICE_* ones so existing
// deployments keep working.
const (
	// EnvLog disables all log output when set to "0".
	EnvLog = "LOG"

	// EnvLogLevel selects the log severity (DEBUG, INFO, WARNING, ERROR).
	EnvLogLevel = "LOG_LEVEL"

	// EnvThrottleKBps caps the bandwidth of a single download in KiB/s.
	EnvThrottleKBps = "THROTTLE_KBPS"

	// EnvPhotosDir overrides the photo archives root directory.
	EnvPhotosDir = "PHOTOS_DIR"
)
