// Package throttle limits the bandwidth of streamed responses.
package throttle

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// ChunkSize is the largest write forwarded in a single limiter reservation.
const ChunkSize = 32 * 1024

// NewWriter wraps w so that writes do not exceed kbps kibibytes per second.
//
// A kbps of 0 or less returns w unchanged. The returned writer aborts with
// the context error once ctx is cancelled, so a gone client stops the stream.
func NewWriter(ctx context.Context, w io.Writer, kbps int) io.Writer {
	if kbps <= 0 {
		return w
	}

	bytesPerSecond := kbps * 1024
	burst := ChunkSize
	if bytesPerSecond < burst {
		burst = bytesPerSecond
	}

	return &writer{
		ctx:     ctx,
		w:       w,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), burst),
	}
}

type writer struct {
	ctx     context.Context
	w       io.Writer
	limiter *rate.Limiter
}

// Write forwards p in burst-sized chunks, waiting on the limiter before each.
func (tw *writer) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		chunk := p
		if len(chunk) > tw.limiter.Burst() {
			chunk = chunk[:tw.limiter.Burst()]
		}

		if err := tw.limiter.WaitN(tw.ctx, len(chunk)); err != nil {
			return written, err
		}

		n, err := tw.w.Write(chunk)
		written += n
		if err != nil {
			return written, err
		}
		p = p[len(chunk):]
	}
	return written, nil
}
