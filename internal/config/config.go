// Package config provides a runtime configuration manager that loads and
// watches a JSON configuration file.
//
// The runtime configuration covers the settings an operator may want to
// change without restarting the service: the bandwidth cap and the list of
// archives withdrawn from download.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Provider is an interface that defines methods to access configuration values.
type Provider interface {
	ThrottleKBps() int
	IsBlocked(hash string) bool
}

// Conf represents the runtime configuration structure.
type Conf struct {
	ThrottleKBps    int      `json:"throttleKBps"`
	BlockedArchives []string `json:"blockedArchives"`
}

// Manager is a struct that manages the runtime configuration.
type Manager struct {
	config     Conf
	blocked    map[string]struct{}
	lock       sync.RWMutex
	configPath string

	log *slog.Logger
}

type options struct {
	Logger *slog.Logger
}

// Options represents an optional function to override Manager default values.
type Options func(*options)

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Options {
	return func(o *options) {
		o.Logger = l
	}
}

// New creates a new configuration manager with the specified path.
//
// An empty path is valid and results in a manager that always returns the
// zero configuration.
func New(path string, args ...Options) *Manager {
	opts := options{
		Logger: slog.Default(),
	}

	for _, opt := range args {
		opt(&opts)
	}

	return &Manager{
		configPath: path,
		log:        opts.Logger,
	}
}

// Load reads the configuration from the specified file and updates the internal state.
func (cm *Manager) Load() error {
	if cm.configPath == "" {
		return nil
	}

	file, err := os.Open(cm.configPath)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	defer file.Close()

	var newConfig Conf
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&newConfig); err != nil {
		return fmt.Errorf("decoding config JSON: %w", err)
	}

	blocked := make(map[string]struct{}, len(newConfig.BlockedArchives))
	for _, name := range newConfig.BlockedArchives {
		blocked[name] = struct{}{}
	}

	cm.lock.Lock()
	cm.config = newConfig
	cm.blocked = blocked
	cm.lock.Unlock()

	cm.log.Info("Configuration loaded", "config", cm.config)
	return nil
}

// Watch starts watching the configuration file for changes.
//
// It returns two channels: one for configuration changes which result in a successful load and another for unrecoverable watcher errors.
func (cm *Manager) Watch(ctx context.Context) (changes <-chan struct{}, errors <-chan error, err error) {
	changesCh := make(chan struct{}, 1)
	errorsCh := make(chan error, 1)

	if cm.configPath == "" {
		// Nothing to watch. Keep the channels open until the context is done
		// so the caller sees the same lifecycle either way.
		go func() {
			defer close(changesCh)
			defer close(errorsCh)
			<-ctx.Done()
		}()
		return changesCh, errorsCh, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create watcher: %v", err)
	}

	configDir, _ := filepath.Split(cm.configPath)
	if configDir == "" {
		configDir = "."
	}
	if err := watcher.Add(configDir); err != nil {
		watcher.Close()
		return nil, nil, fmt.Errorf("failed to add directory %s to watcher: %v", configDir, err)
	}

	cm.log.Info("Watching configuration directory", "dir", configDir)

	go func() {
		defer close(changesCh)
		defer close(errorsCh)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				cm.log.Info("Configuration watcher stopped")
				return
			case event, ok := <-watcher.Events:
				if !ok {
					errorsCh <- fmt.Errorf("watcher events channel closed unexpectedly")
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}

				if event.Name != cm.configPath {
					continue
				}

				cm.log.Debug("Configuration file changed. Reloading...")
				if err := cm.Load(); err != nil {
					cm.log.Warn("Error reloading config, keeping previous state", "err", err)
					continue
				}

				select {
				case changesCh <- struct{}{}:
				default:
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					errorsCh <- fmt.Errorf("watcher errors channel closed unexpectedly")
					return
				}
				cm.log.Warn("Watcher error", "err", err)
			}
		}
	}()

	return changesCh, errorsCh, nil
}

// ThrottleKBps returns the bandwidth cap from the configuration.
// 0 means no runtime override is in place.
func (cm *Manager) ThrottleKBps() int {
	cm.lock.RLock()
	defer cm.lock.RUnlock()
	return cm.config.ThrottleKBps
}

// IsBlocked reports whether the archive has been withdrawn from download.
func (cm *Manager) IsBlocked(hash string) bool {
	cm.lock.RLock()
	defer cm.lock.RUnlock()
	_, ok := cm.blocked[hash]
	return ok
}
