package singleinstance

import (
	"os"
	"strconv"
)

const (
	defaultPortStart = 49500
	defaultPortEnd   = 49550

	envPortStart = "SINGLEINSTANCE_PORT_START"
	envPortEnd   = "SINGLEINSTANCE_PORT_END"
)

// getPortRange returns the configured TCP port range. The environment
// variables hold inclusive integer bounds. Falls back to the defaults
// when unset or invalid, and clamps to [1024, 65535].
func getPortRange() (int, int) {
	start := defaultPortStart
	end := defaultPortEnd
	if v := os.Getenv(envPortStart); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			start = n
		}
	}
	if v := os.Getenv(envPortEnd); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			end = n
		}
	}
	if start < 1024 {
		start = 1024
	}
	if end > 65535 {
		end = 65535
	}
	if end < start {
		start, end = end, start
	}
	return start, end
}

// GetPortRangeForDebug exposes the current effective port range for logging.
func GetPortRangeForDebug() (int, int) { return getPortRange() }
