package constants

import "time"

const (
	// Remote worker API defaults. The worker is the single source of truth
	// for backup artifacts and enforces the system-wide single-flight lock.
	DefaultWorkerURL     = "https://127.0.0.1:8107"
	WorkerRequestTimeout = 30 * time.Second
	MinWorkerVersion     = "1.2.0"

	// Orchestration cadence.
	PollInterval    = 300 * time.Millisecond
	ConflictBackoff = 5 * time.Second
	JobTimeout      = 10 * time.Minute

	ServerAPIPort = ":8117"

	HTTPReadTimeout    = 10 * time.Second
	HTTPWriteTimeout   = 5 * time.Minute
	HTTPIdleTimeout    = 5 * time.Minute
	HTTPMaxHeaderBytes = 1 << 20
	HTTPRateLimit      = 100.0
	HTTPRateBurst      = 200

	WSWriteTimeout = 10 * time.Second

	CertFile = "/etc/podvault/server.pem"
	KeyFile  = "/etc/podvault/server.key"

	AppConfigFile = "/etc/podvault/config.toml"
	LockFilePath  = "/var/run/podvault.lock"
	LogFilePath   = "/var/log/podvault/podvault.log"
)
