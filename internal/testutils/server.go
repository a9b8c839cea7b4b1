package testutils

import (
	"fmt"
	"net"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// PortOpen checks if a port is open on the specified TCP host.
func PortOpen(t *testing.T, host string, port int) bool {
	t.Helper()

	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, fmt.Sprint(port)), 100*time.Millisecond)
	if err != nil {
		return false
	}
	defer conn.Close()
	return true
}

// WaitForPortClosed waits for a port to be closed on the specified TCP host.
func WaitForPortClosed(t *testing.T, host string, port int, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !PortOpen(t, host, port) {
			return
		}
		time.Sleep(50 * time.Millisecond) // Small delay before retrying
	}
	assert.Fail(t, "Timeout waiting for port to close", "host: %s, port: %d", host, port)
}

// RequireZip skips the test when the zip utility is not installed.
func RequireZip(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("zip"); err != nil {
		t.Skip("zip utility not available, skipping")
	}
}
