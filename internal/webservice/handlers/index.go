package handlers

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/photodrop/photodrop/internal/webservice/metrics"
)

// Index serves the landing page.
type Index struct {
	path string
}

// NewIndex creates an Index handler serving the page stored at path.
func NewIndex(path string) *Index {
	return &Index{path: path}
}

// ServeHTTP handles incoming HTTP requests for the landing page.
//
// The page is read from disk on every request so it can be edited without
// restarting the service.
func (h *Index) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	metrics.ApplyLabels(r)

	data, err := os.ReadFile(h.path)
	if err != nil {
		http.Error(w, "Index page unavailable", http.StatusInternalServerError)
		slog.Error("Could not read index page", "path", h.path, "err", err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(data); err != nil {
		slog.Debug("Could not write index page", "err", err)
	}
}

// FaviconHandler answers favicon requests with an empty response.
func FaviconHandler(w http.ResponseWriter, r *http.Request) {
	metrics.ApplyLabels(r)
	w.WriteHeader(http.StatusNoContent)
}
