package daemon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type AppConfig = appConfig

// Config returns the configuration of the app for tests.
func (a *App) Config() AppConfig {
	return a.config
}

// NewForTests creates a new App with a temporary configuration file generated
// from conf, prepended to args.
func NewForTests(t *testing.T, conf *AppConfig, args ...string) *App {
	t.Helper()

	if conf == nil {
		conf = &AppConfig{}
	}
	p := GenerateTestConfig(t, conf)

	argsWithConf := []string{"--config", p}
	argsWithConf = append(argsWithConf, args...)

	a, err := New()
	require.NoError(t, err, "Setup: could not create app")
	a.cmd.SetArgs(argsWithConf)
	return a
}

// GenerateTestConfig writes a temporary YAML configuration file from the non
// zero fields of origConf, and returns its path.
func GenerateTestConfig(t *testing.T, origConf *AppConfig) string {
	t.Helper()

	conf := map[string]any{}
	if origConf.Verbosity > 0 {
		conf["verbosity"] = origConf.Verbosity
	}
	if origConf.LogLevel != "" {
		conf["log-level"] = origConf.LogLevel
	}
	if origConf.JSONLogs {
		conf["json-logs"] = true
	}

	daemon := map[string]any{}
	if origConf.Daemon.ConfigPath != "" {
		daemon["configpath"] = origConf.Daemon.ConfigPath
	}
	if origConf.Daemon.PhotosDir != "" {
		daemon["photosdir"] = origConf.Daemon.PhotosDir
	}
	if origConf.Daemon.IndexFile != "" {
		daemon["indexfile"] = origConf.Daemon.IndexFile
	}
	if origConf.Daemon.ThrottleKBps > 0 {
		daemon["throttlekbps"] = origConf.Daemon.ThrottleKBps
	}
	if origConf.Daemon.ReadTimeout > 0 {
		daemon["readtimeout"] = origConf.Daemon.ReadTimeout.String()
	}
	if origConf.Daemon.ListenHost != "" {
		daemon["listenhost"] = origConf.Daemon.ListenHost
	}
	if origConf.Daemon.MetricsHost != "" {
		daemon["metricshost"] = origConf.Daemon.MetricsHost
	}
	if len(daemon) > 0 {
		conf["daemon"] = daemon
	}

	d, err := yaml.Marshal(conf)
	require.NoError(t, err, "Setup: could not marshal configuration for tests")

	confPath := filepath.Join(t.TempDir(), "testconfig.yaml")
	require.NoError(t, os.WriteFile(confPath, d, 0600), "Setup: could not write configuration for tests")

	return confPath
}

// SetArgs replaces the arguments of the root command.
func (a *App) SetArgs(args ...string) {
	a.cmd.SetArgs(args)
}
