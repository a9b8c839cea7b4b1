package config_test

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/photodrop/photodrop/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()

	tmpFile := filepath.Join(t.TempDir(), "runtime.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0600), "Setup: failed to write temp config file")
	return tmpFile
}

func TestLoad(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		content   string
		emptyPath bool
		noFile    bool

		wantErr         bool
		wantNotExistErr bool
		wantThrottle    int
		wantBlocked     []string
		wantNotBlocked  []string
	}{
		"Valid config": {
			content:        `{"throttleKBps": 512, "blockedArchives": ["foo", "bar"]}`,
			wantThrottle:   512,
			wantBlocked:    []string{"foo", "bar"},
			wantNotBlocked: []string{"baz"},
		},
		"Empty object": {
			content:        `{}`,
			wantNotBlocked: []string{"foo"},
		},
		"Empty path is a no-op": {
			emptyPath:      true,
			wantNotBlocked: []string{"foo"},
		},
		"Invalid JSON errors": {
			content: `{"throttleKBps": 512`,
			wantErr: true,
		},
		"Missing file errors with not exist": {
			noFile:          true,
			wantErr:         true,
			wantNotExistErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var path string
			switch {
			case tc.emptyPath:
				path = ""
			case tc.noFile:
				path = filepath.Join(t.TempDir(), "nonexistent.json")
			default:
				path = createTempConfigFile(t, tc.content)
			}

			cm := config.New(path)
			err := cm.Load()
			if tc.wantErr {
				require.Error(t, err, "Load should return an error")
				if tc.wantNotExistErr {
					require.ErrorIs(t, err, fs.ErrNotExist, "Load error should report the missing file")
				}
				return
			}
			require.NoError(t, err, "Load should not return an error")

			assert.Equal(t, tc.wantThrottle, cm.ThrottleKBps(), "unexpected throttle")
			for _, name := range tc.wantBlocked {
				assert.True(t, cm.IsBlocked(name), "%s should be blocked", name)
			}
			for _, name := range tc.wantNotBlocked {
				assert.False(t, cm.IsBlocked(name), "%s should not be blocked", name)
			}
		})
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	t.Parallel()

	tmpFile := createTempConfigFile(t, `{"throttleKBps": 100}`)

	cm := config.New(tmpFile)
	require.NoError(t, cm.Load(), "Setup: initial load failed")
	require.Equal(t, 100, cm.ThrottleKBps())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, errs, err := cm.Watch(ctx)
	require.NoError(t, err, "Watch should not fail to start")

	require.NoError(t, os.WriteFile(tmpFile, []byte(`{"throttleKBps": 200, "blockedArchives": ["beta"]}`), 0600),
		"Setup: failed to write updated config")

	select {
	case <-changes:
	case err := <-errs:
		require.NoError(t, err, "watcher should not report an error")
	case <-time.After(5 * time.Second):
		require.Fail(t, "timed out waiting for a config reload")
	}

	assert.Equal(t, 200, cm.ThrottleKBps(), "throttle should be updated")
	assert.True(t, cm.IsBlocked("beta"), "beta should be blocked after reload")
}

func TestWatchKeepsStateOnBadReload(t *testing.T) {
	t.Parallel()

	tmpFile := createTempConfigFile(t, `{"throttleKBps": 100}`)

	cm := config.New(tmpFile)
	require.NoError(t, cm.Load(), "Setup: initial load failed")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, _, err := cm.Watch(ctx)
	require.NoError(t, err, "Watch should not fail to start")

	require.NoError(t, os.WriteFile(tmpFile, []byte(`{"thro`), 0600), "Setup: failed to write broken config")

	// The watcher has no success signal to wait on here, give it a moment.
	time.Sleep(500 * time.Millisecond)

	assert.Equal(t, 100, cm.ThrottleKBps(), "previous state should be kept on a failed reload")
}

func TestWatchEmptyPathStopsWithContext(t *testing.T) {
	t.Parallel()

	cm := config.New("")
	ctx, cancel := context.WithCancel(context.Background())

	changes, errs, err := cm.Watch(ctx)
	require.NoError(t, err, "Watch should not fail with an empty path")

	cancel()

	select {
	case _, ok := <-changes:
		assert.False(t, ok, "changes channel should be closed")
	case <-time.After(2 * time.Second):
		require.Fail(t, "changes channel should close once the context is done")
	}
	select {
	case _, ok := <-errs:
		assert.False(t, ok, "errors channel should be closed")
	case <-time.After(2 * time.Second):
		require.Fail(t, "errors channel should close once the context is done")
	}
}

func TestConcurrentReadsDuringReload(t *testing.T) {
	t.Parallel()

	tmpFile := createTempConfigFile(t, `{"throttleKBps": 1}`)
	cm := config.New(tmpFile)
	require.NoError(t, cm.Load(), "Setup: initial load failed")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = os.WriteFile(tmpFile, []byte(`{"throttleKBps": 2, "blockedArchives": ["x"]}`), 0600)
			_ = cm.Load()
		}
	}()

	for i := 0; i < 100; i++ {
		_ = cm.ThrottleKBps()
		_ = cm.IsBlocked("x")
	}
	<-done
}
