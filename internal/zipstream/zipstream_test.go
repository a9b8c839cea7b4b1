package zipstream_test

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/photodrop/photodrop/internal/testutils"
	"github.com/photodrop/photodrop/internal/zipstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresZip(t *testing.T) {
	testutils.RequireZip(t)

	a, err := zipstream.New()
	require.NoError(t, err, "New should find the zip utility")
	require.NotNil(t, a)
}

func TestStreamProducesValidArchive(t *testing.T) {
	t.Parallel()
	testutils.RequireZip(t)

	dir := t.TempDir()
	wantFiles := map[string]string{
		"1.jpg":        "first photo",
		"2.jpg":        "second photo",
		"nested/3.jpg": "third photo",
	}
	for name, content := range wantFiles {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0700), "Setup: could not create directory")
		require.NoError(t, os.WriteFile(p, []byte(content), 0600), "Setup: could not write photo")
	}

	a, err := zipstream.New()
	require.NoError(t, err, "Setup: New should not fail")

	var buf bytes.Buffer
	require.NoError(t, a.Stream(context.Background(), dir, &buf), "Stream should not fail")

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err, "output should be a readable zip archive")

	got := make(map[string]string)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err, "could not open archived file")
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err, "could not read archived file")
		got[f.Name] = string(data)
	}

	assert.Equal(t, wantFiles, got, "archive should contain exactly the photos")
}

func TestStreamMissingDirErrors(t *testing.T) {
	t.Parallel()
	testutils.RequireZip(t)

	a, err := zipstream.New()
	require.NoError(t, err, "Setup: New should not fail")

	var buf bytes.Buffer
	err = a.Stream(context.Background(), filepath.Join(t.TempDir(), "nope"), &buf)
	require.Error(t, err, "Stream of a missing directory should fail")
}

// cancellingWriter cancels the context on the first write, simulating a
// client that goes away mid-download.
type cancellingWriter struct {
	cancel context.CancelFunc
}

func (w *cancellingWriter) Write(p []byte) (int, error) {
	w.cancel()
	return len(p), nil
}

func TestStreamCancelledContextKillsZip(t *testing.T) {
	t.Parallel()
	testutils.RequireZip(t)

	dir := t.TempDir()
	// Enough data that zip cannot finish in a single write.
	big := bytes.Repeat([]byte("not very compressible 1234567890"), 1<<16)
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), big, 0600), "Setup: could not write photo")
	}

	a, err := zipstream.New()
	require.NoError(t, err, "Setup: New should not fail")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- a.Stream(ctx, dir, &cancellingWriter{cancel: cancel})
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled, "Stream should report the cancellation")
	case <-time.After(10 * time.Second):
		require.Fail(t, "Stream should have returned after the context was cancelled")
	}
}
