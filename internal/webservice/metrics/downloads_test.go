package metrics_test

import (
	"testing"

	"github.com/photodrop/photodrop/internal/webservice/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloads(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	d := metrics.NewDownloads(reg)

	// Three downloads: one completes, one is interrupted, one fails.
	d.Started()
	d.Started()
	d.Started()
	d.AddBytes(1024)
	d.Completed()
	d.AddBytes(512)
	d.Interrupted()
	d.Failed()

	want := map[string]string{
		"photodrop_downloads_in_flight":         "photodrop_downloads_in_flight 0",
		"photodrop_downloads_completed_total":   "photodrop_downloads_completed_total 1",
		"photodrop_downloads_interrupted_total": "photodrop_downloads_interrupted_total 1",
		"photodrop_downloads_failed_total":      "photodrop_downloads_failed_total 1",
		"photodrop_download_bytes_total":        "photodrop_download_bytes_total 1536",
	}

	for metric, wantLine := range want {
		b, err := testutil.CollectAndFormat(reg, expfmt.TypeTextPlain, metric)
		require.NoError(t, err, "Failed to collect %s", metric)
		assert.Contains(t, string(b), wantLine, "unexpected value for %s", metric)
	}
}

func TestDownloadsInFlight(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	d := metrics.NewDownloads(reg)

	d.Started()
	d.Started()

	b, err := testutil.CollectAndFormat(reg, expfmt.TypeTextPlain, "photodrop_downloads_in_flight")
	require.NoError(t, err, "Failed to collect in flight gauge")
	assert.Contains(t, string(b), "photodrop_downloads_in_flight 2")
}
