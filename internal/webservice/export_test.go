package webservice

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/photodrop/photodrop/internal/config"
	"github.com/stretchr/testify/require"
)

type DConfigManager = dConfigManager

// GenerateTestRuntimeConfig generates a temporary runtime config file for testing.
func GenerateTestRuntimeConfig(t *testing.T, conf *config.Conf) string {
	t.Helper()

	d, err := json.Marshal(conf)
	require.NoError(t, err, "Setup: failed to marshal runtime config for tests")
	confPath := filepath.Join(t.TempDir(), "runtime-testconfig.json")
	require.NoError(t, os.WriteFile(confPath, d, 0600), "Setup: failed to write runtime config for tests")

	return confPath
}

// PrimaryAddr returns the true address of the primary server.
func (s *Server) PrimaryAddr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.primaryAddr
}

// MetricsAddr returns the true address of the metrics server.
func (s *Server) MetricsAddr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metricsAddr
}
