// Package webservice provides an HTTP server that streams zip archives of
// photo directories to clients.
package webservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/photodrop/photodrop/internal/webservice/handlers"
	"github.com/photodrop/photodrop/internal/webservice/metrics"
	"github.com/photodrop/photodrop/internal/webservice/middleware"
	"github.com/photodrop/photodrop/internal/zipstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Server is a struct that holds the HTTP servers and their configuration.
type Server struct {
	primary       *http.Server
	metricsServer *http.Server
	cm            dConfigManager

	mu          sync.RWMutex
	primaryAddr net.Addr
	metricsAddr net.Addr

	// This context is used to interrupt any action.
	// It must be the parent of gracefulCtx.
	ctx    context.Context
	cancel context.CancelFunc

	// This context initiates the graceful shutdown path.
	gracefulCtx    context.Context
	gracefulCancel context.CancelFunc
}

// StaticConfig holds the static configuration for the server.
type StaticConfig struct {
	ConfigPath string
	PhotosDir  string
	IndexFile  string

	ThrottleKBps int

	ReadTimeout    time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	RequestRate  float64
	RequestBurst int

	ListenHost string
	ListenPort int

	MetricsHost string
	MetricsPort int
}

type dConfigManager interface {
	Load() error
	Watch(context.Context) (<-chan struct{}, <-chan error, error)
	ThrottleKBps() int
	IsBlocked(string) bool
}

// New creates a new Server instance with the given config manager and static configuration.
func New(ctx context.Context, cm dConfigManager, sc StaticConfig) (*Server, error) {
	if err := cm.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load runtime configuration: %v", err)
		}
		// The service must keep serving without the ops file.
		slog.Warn("Runtime configuration file not found, using defaults", "path", sc.ConfigPath)
	}

	archiver, err := zipstream.New()
	if err != nil {
		return nil, fmt.Errorf("failed to set up the archiver: %v", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	gCtx, gCancel := context.WithCancel(ctx)

	s := Server{
		cm:     cm,
		ctx:    ctx,
		cancel: cancel,

		gracefulCtx:    gCtx,
		gracefulCancel: gCancel}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	mm := metrics.New(registry)
	downloads := metrics.NewDownloads(registry)

	archiveHandler := mm.Monitor("archive", handlers.NewArchive(cm, archiver, downloads, sc.PhotosDir, sc.ThrottleKBps))
	limiter := middleware.New(rate.Limit(sc.RequestRate), sc.RequestBurst)

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", mm.Monitor("index", handlers.NewIndex(sc.IndexFile)))
	mux.Handle("GET /archive/{hash}", limiter.RateLimit(archiveHandler))
	mux.Handle("GET /archive/{hash}/{$}", limiter.RateLimit(archiveHandler))
	mux.Handle("GET /favicon.ico", mm.Monitor("favicon", http.HandlerFunc(handlers.FaviconHandler)))
	mux.Handle("GET /version", mm.Monitor("version", http.HandlerFunc(handlers.VersionHandler)))

	// No write timeout and no per-request deadline: throttled archive
	// downloads are legitimately long-lived streams.
	s.primary = &http.Server{
		Addr:           fmt.Sprintf("%s:%d", sc.ListenHost, sc.ListenPort),
		ReadTimeout:    sc.ReadTimeout,
		IdleTimeout:    sc.IdleTimeout,
		Handler:        mux,
		MaxHeaderBytes: sc.MaxHeaderBytes,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	s.metricsServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", sc.MetricsHost, sc.MetricsPort),
		ReadTimeout: sc.ReadTimeout,
		Handler:     metricsMux,
	}

	return &s, nil
}

// Run starts the HTTP servers and listens for incoming requests.
func (s *Server) Run() error {
	slog.Info("Starting server", "addr", s.primary.Addr, "metrics_addr", s.metricsServer.Addr)

	// already asked to quit?
	select {
	case <-s.gracefulCtx.Done():
		return errors.New("server is already shutting down")
	default:
	}

	_, watchErr, err := s.cm.Watch(s.gracefulCtx)
	if err != nil {
		return fmt.Errorf("failed to start watching runtime configuration: %v", err)
	}

	ln, err := net.Listen("tcp", s.primary.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("failed to listen on %s: %v", s.primary.Addr, err)
	}
	mln, err := net.Listen("tcp", s.metricsServer.Addr)
	if err != nil {
		ln.Close()
		s.cancel()
		return fmt.Errorf("failed to listen on %s: %v", s.metricsServer.Addr, err)
	}

	s.mu.Lock()
	s.primaryAddr = ln.Addr()
	s.metricsAddr = mln.Addr()
	s.mu.Unlock()

	serverErr := make(chan error, 2)
	go func() {
		if err := s.primary.Serve(ln); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()
	go func() {
		if err := s.metricsServer.Serve(mln); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	for {
		select {
		case <-s.gracefulCtx.Done():
			slog.Info("Graceful shutdown initiated")
			// use parent ctx so a later s.cancel() unblocks Shutdown immediately,
			// aborting in-flight downloads.
			err := s.primary.Shutdown(s.ctx)
			errM := s.metricsServer.Shutdown(s.ctx)
			s.cancel()
			if err = errors.Join(err, errM); err != nil {
				slog.Error("Graceful shutdown failed", "err", err)
				return err
			}
			slog.Info("Server shut down gracefully")
			return nil

		case err := <-serverErr:
			slog.Error("Server encountered error", "err", err)
			errC := errors.Join(s.primary.Close(), s.metricsServer.Close())
			s.cancel()
			return errors.Join(err, errC)

		case err, ok := <-watchErr:
			if !ok {
				// The watcher closes its error channel once shutdown begins.
				// Keep serving and let the graceful path drain the downloads.
				watchErr = nil
				continue
			}
			slog.Error("Config watcher encountered unrecoverable error", "err", err)
			errC := errors.Join(s.primary.Close(), s.metricsServer.Close())
			s.cancel()

			return errors.Join(err, errC)
		}
	}
}

// Quit shuts down the HTTP servers, gracefully unless force is set.
func (s *Server) Quit(force bool) {
	defer s.cancel()

	if force {
		s.primary.Close()
		s.metricsServer.Close()
		s.cancel()
	} else {
		s.gracefulCancel()
	}
	slog.Info("Server quit")
}
