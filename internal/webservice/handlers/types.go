package handlers

import (
	"context"
	"io"
)

// ConfigProvider is an interface that defines the runtime configuration access methods used by the handlers.
type ConfigProvider interface {
	ThrottleKBps() int      // ThrottleKBps returns the runtime bandwidth cap override in KiB/s, 0 when unset.
	IsBlocked(string) bool  // IsBlocked reports whether an archive has been withdrawn from download.
}

// Streamer writes an archive of the contents of dir to w.
type Streamer interface {
	Stream(ctx context.Context, dir string, w io.Writer) error
}
