// Package daemon provides the PhotoDrop web service daemon.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/photodrop/photodrop/internal/cli"
	"github.com/photodrop/photodrop/internal/config"
	"github.com/photodrop/photodrop/internal/constants"
	"github.com/photodrop/photodrop/internal/webservice"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// App represents the application.
type App struct {
	cmd    *cobra.Command
	viper  *viper.Viper
	config appConfig

	daemon *webservice.Server

	ready chan struct{}
}

// appConfig holds the configuration for the application.
type appConfig struct {
	Verbosity int
	Log       bool
	LogLevel  string `mapstructure:"log-level"`
	JSONLogs  bool   `mapstructure:"json-logs"`

	Daemon webservice.StaticConfig
}

// New creates a new App instance with default values.
func New() (*App, error) {
	a := App{ready: make(chan struct{})}

	a.cmd = &cobra.Command{
		Use:           constants.WebServiceCmdName,
		Short:         "PhotoDrop web service",
		Long:          "PhotoDrop web service streaming zip archives of photo directories to clients over HTTP.",
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Command parsing has been successful. Returns to not print usage anymore.
			a.cmd.SilenceUsage = true
			cli.SetVerbosity(a.config.Verbosity) // Set verbosity before loading config
			if err := cli.InitViperConfig(constants.WebServiceCmdName, a.cmd, a.viper); err != nil {
				return err
			}
			if err := cli.BindContainerEnv(a.viper); err != nil {
				return err
			}
			if err := a.viper.Unmarshal(&a.config, func(dc *mapstructure.DecoderConfig) {
				// LOG=1 and THROTTLE_KBPS=512 arrive as strings.
				dc.WeaklyTypedInput = true
			}); err != nil {
				return fmt.Errorf("unable to decode configuration into struct: %w", err)
			}

			if err := a.setupLogging(); err != nil {
				return err
			}
			slog.Info("got app config", "config", a.config)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a.cmd.SilenceUsage = true

			return a.run()
		},
	}
	a.viper = viper.New()
	a.cmd.CompletionOptions.HiddenDefaultCmd = true

	installRootCmd(&a)
	cli.InstallConfigFlag(a.cmd)

	if err := a.viper.BindPFlags(a.cmd.PersistentFlags()); err != nil {
		return nil, err
	}

	a.installVersion()

	return &a, nil
}

func installRootCmd(app *App) {
	cmd := app.cmd

	defaultConf := webservice.StaticConfig{
		ConfigPath: "",
		PhotosDir:  constants.DefaultPhotosDir,
		IndexFile:  constants.DefaultIndexFile,

		ThrottleKBps: constants.DefaultThrottleKBps,

		ReadTimeout:    5 * time.Second,
		IdleTimeout:    time.Minute,
		MaxHeaderBytes: 1 << 13, // 8 KB

		RequestRate:  5,
		RequestBurst: 10,

		ListenPort:  constants.DefaultListenPort,
		MetricsPort: constants.DefaultMetricsPort,
	}

	cmd.PersistentFlags().CountVarP(&app.config.Verbosity, "verbose", "v", "issue INFO (-v), DEBUG (-vv)")
	cmd.PersistentFlags().BoolVar(&app.config.Log, "log", true, "enable log output (LOG)")
	cmd.PersistentFlags().StringVar(&app.config.LogLevel, "log-level", "INFO", "log level: DEBUG, INFO, WARNING or ERROR (LOG_LEVEL)")
	cmd.PersistentFlags().BoolVar(&app.config.JSONLogs, "json-logs", false, "emit logs as JSON")

	// Daemon flags
	cmd.Flags().StringVar(&app.config.Daemon.ConfigPath, "daemon-config", defaultConf.ConfigPath, "path to the runtime configuration file")
	cmd.Flags().StringVar(&app.config.Daemon.PhotosDir, "photos-dir", defaultConf.PhotosDir, "directory to serve photo archives from (PHOTOS_DIR)")
	cmd.Flags().StringVar(&app.config.Daemon.IndexFile, "index-file", defaultConf.IndexFile, "path to the landing page")
	cmd.Flags().IntVar(&app.config.Daemon.ThrottleKBps, "throttle-kbps", defaultConf.ThrottleKBps, "bandwidth cap per download in KiB/s, 0 for unlimited (THROTTLE_KBPS)")

	cmd.Flags().DurationVar(&app.config.Daemon.ReadTimeout, "read-timeout", defaultConf.ReadTimeout, "read timeout for HTTP server")
	cmd.Flags().DurationVar(&app.config.Daemon.IdleTimeout, "idle-timeout", defaultConf.IdleTimeout, "idle timeout for HTTP server")
	cmd.Flags().IntVar(&app.config.Daemon.MaxHeaderBytes, "max-header-bytes", defaultConf.MaxHeaderBytes, "maximum header bytes for HTTP server")

	cmd.Flags().Float64Var(&app.config.Daemon.RequestRate, "request-rate", defaultConf.RequestRate, "allowed requests per second per client IP")
	cmd.Flags().IntVar(&app.config.Daemon.RequestBurst, "request-burst", defaultConf.RequestBurst, "allowed request burst per client IP")

	cmd.Flags().StringVar(&app.config.Daemon.ListenHost, "listen-host", defaultConf.ListenHost, "host to listen on")
	cmd.Flags().IntVar(&app.config.Daemon.ListenPort, "listen-port", defaultConf.ListenPort, "port to listen on")

	cmd.Flags().StringVar(&app.config.Daemon.MetricsHost, "metrics-host", defaultConf.MetricsHost, "host for the metrics endpoint")
	cmd.Flags().IntVar(&app.config.Daemon.MetricsPort, "metrics-port", defaultConf.MetricsPort, "port for the metrics endpoint")

	err := cmd.MarkFlagFilename("daemon-config")
	if err != nil {
		// This should never happen.
		panic(fmt.Sprintf("failed to mark daemon-config flag as filename: %v", err))
	}

	err = cmd.MarkFlagDirname("photos-dir")
	if err != nil {
		// This should never happen.
		panic(fmt.Sprintf("failed to mark photos-dir flag as dirname: %v", err))
	}
}

// setupLogging configures the default logger from the LOG, LOG_LEVEL and
// verbosity settings.
func (a *App) setupLogging() error {
	level, err := cli.ParseLevel(a.config.LogLevel)
	if err != nil {
		return err
	}

	cli.SetSlog(level, a.config.JSONLogs)
	cli.SetVerbosity(a.config.Verbosity)
	if !a.config.Log {
		cli.DisableLogging()
	}
	return nil
}

// Run executes the command and associated process, returning an error if any.
func (a App) Run() error {
	return a.cmd.Execute()
}

// UsageError returns if the error is a command parsing or runtime one.
func (a App) UsageError() bool {
	return !a.cmd.SilenceUsage
}

// Hup prints all goroutine stack traces and return false to signal you shouldn't quit.
func (a App) Hup() (shouldQuit bool) {
	buf := make([]byte, 1<<16)
	runtime.Stack(buf, true)
	fmt.Printf("%s", buf)
	return false
}

// Quit gracefully shuts down the daemon.
func (a *App) Quit() {
	a.WaitReady()
	if a.daemon != nil {
		a.daemon.Quit(false)
	}
}

// WaitReady waits for the daemon to be ready.
func (a *App) WaitReady() {
	<-a.ready
}

// RootCmd returns the root command.
func (a App) RootCmd() cobra.Command {
	return *a.cmd
}

func (a *App) run() (err error) {
	if a.config.Daemon.ConfigPath != "" {
		a.config.Daemon.ConfigPath, err = filepath.Abs(a.config.Daemon.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to get absolute path for runtime config file: %v", err)
		}
	}
	dConf := a.config.Daemon
	cm := config.New(dConf.ConfigPath)
	a.daemon, err = webservice.New(context.Background(), cm, dConf)
	close(a.ready)
	if err != nil {
		return fmt.Errorf("failed to create server: %v", err)
	}

	return a.daemon.Run()
}
