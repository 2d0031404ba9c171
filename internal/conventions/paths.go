package conventions

import "path/filepath"

const (
	// DefaultDataDir is the default inflight data directory name (relative to home).
	DefaultDataDir = ".inflight"
	// HistoryDBFile is the outcome history SQLite database filename.
	HistoryDBFile = "inflight.db"

	// EnvPrefix is the prefix of the environment variables that set the CLI flags.
	EnvPrefix = "INFLIGHT"
	// IntegrationEnv enables the integration tests when set.
	IntegrationEnv = "INFLIGHT_INTEGRATION"

	// MetricsPath is the HTTP path the Prometheus metrics are served on.
	MetricsPath = "/metrics"
)

// HistoryDBPath returns the outcome history database path inside a data directory.
func HistoryDBPath(dataDir string) string {
	return filepath.Join(dataDir, HistoryDBFile)
}

// DefaultHistoryDBPath returns the default outcome history database path for a home directory.
func DefaultHistoryDBPath(homeDir string) string {
	return HistoryDBPath(filepath.Join(homeDir, DefaultDataDir))
}
