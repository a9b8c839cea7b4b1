// Package zipstream produces zip archives of directories as a byte stream.
//
// Archives are built by the system zip utility, the same one the deployment
// image installs, so the bytes on the wire match what the tool produces. The
// archive is never materialized on disk: zip writes to stdout and stdout is
// piped straight to the caller.
package zipstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/ubuntu/decorate"
)

// Archiver streams zip archives of directories.
type Archiver struct {
	zipPath   string
	waitDelay time.Duration
}

// New returns an Archiver, or an error when the zip utility is not installed.
func New() (*Archiver, error) {
	path, err := exec.LookPath("zip")
	if err != nil {
		return nil, fmt.Errorf("zip utility not found in PATH: %w", err)
	}

	return &Archiver{
		zipPath:   path,
		waitDelay: 5 * time.Second,
	}, nil
}

// Stream writes a zip archive of the contents of dir to w.
//
// The archive is produced incrementally so w may be a network connection.
// Cancelling ctx kills the zip process; Stream then returns the context
// error rather than the resulting exit error.
func (a *Archiver) Stream(ctx context.Context, dir string, w io.Writer) (err error) {
	defer decorate.OnError(&err, "could not stream archive of %s", dir)

	var stderr strings.Builder
	cmd := exec.CommandContext(ctx, a.zipPath, "-r", "-", ".")
	cmd.Dir = dir
	cmd.Stdout = w
	cmd.Stderr = &stderr
	// Give zip a moment to exit after the kill before releasing its pipes.
	cmd.WaitDelay = a.waitDelay

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("zip exited with code %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return err
	}

	return nil
}
