// Package handlers provides the HTTP handlers for the web service.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
	"github.com/photodrop/photodrop/internal/throttle"
	"github.com/photodrop/photodrop/internal/webservice/metrics"
)

// archiveNameRe matches names that cannot escape the photos directory.
var archiveNameRe = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9._-]*$`)

const archiveGoneMsg = "Archive does not exist or has been removed"

// Archive is a handler streaming zip archives of photo directories.
type Archive struct {
	config    ConfigProvider
	archiver  Streamer
	downloads *metrics.Downloads

	photosDir string
	// Static bandwidth cap in KiB/s. A runtime config override wins when set.
	throttleKBps int
}

// NewArchive creates a new Archive handler serving directories under photosDir.
func NewArchive(cfg ConfigProvider, archiver Streamer, downloads *metrics.Downloads, photosDir string, throttleKBps int) *Archive {
	return &Archive{
		config:       cfg,
		archiver:     archiver,
		downloads:    downloads,
		photosDir:    photosDir,
		throttleKBps: throttleKBps,
	}
}

// ServeHTTP handles incoming HTTP requests for archive downloads.
func (h *Archive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	metrics.ApplyLabels(r)

	reqID := uuid.New().String()
	hash := r.PathValue("hash")
	log := slog.With("req_id", reqID, "archive", hash)

	if !archiveNameRe.MatchString(hash) {
		http.Error(w, archiveGoneMsg, http.StatusNotFound)
		log.Info("Rejected invalid archive name")
		return
	}

	if h.config.IsBlocked(hash) {
		http.Error(w, "Archive is not available for download", http.StatusForbidden)
		log.Info("Rejected blocked archive")
		return
	}

	dir := filepath.Join(h.photosDir, hash)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		http.Error(w, archiveGoneMsg, http.StatusNotFound)
		log.Info("Archive directory not found", "dir", dir)
		return
	}

	kbps := h.throttleKBps
	if dyn := h.config.ThrottleKBps(); dyn > 0 {
		kbps = dyn
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", hash+".zip"))
	w.Header().Set("Cache-Control", "no-cache")

	log.Info("Download started", "throttle_kbps", kbps)
	h.downloads.Started()

	out := throttle.NewWriter(r.Context(), &flushWriter{w: w}, kbps)
	counter := &countingWriter{w: out}

	err = h.archiver.Stream(r.Context(), dir, counter)
	h.downloads.AddBytes(counter.n)

	switch {
	case err == nil:
		h.downloads.Completed()
		log.Info("Download finished", "bytes", counter.n)
	case r.Context().Err() != nil || errors.Is(err, context.Canceled):
		h.downloads.Interrupted()
		log.Info("Download was interrupted", "bytes", counter.n)
	default:
		h.downloads.Failed()
		log.Error("Download failed", "bytes", counter.n, "err", err)
		// Headers are long gone. Abort the connection so the client cannot
		// mistake a truncated stream for a complete archive.
		panic(http.ErrAbortHandler)
	}
}

// flushWriter flushes after every write so bytes reach the client while the
// archive is still being produced.
type flushWriter struct {
	w http.ResponseWriter
}

func (fw *flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if err == nil {
		if f, ok := fw.w.(http.Flusher); ok {
			f.Flush()
		}
	}
	return n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
