package server

import "time"

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Addr               string `json:"addr" yaml:"addr"`
	MaxUploadBytes     int64  `json:"max_upload_bytes" yaml:"max_upload_bytes"`
	ArtifactTTLSeconds int    `json:"artifact_ttl_seconds" yaml:"artifact_ttl_seconds"` // Unclaimed reply audio is deleted after this long.
	ReadTimeoutSeconds int    `json:"read_timeout_seconds" yaml:"read_timeout_seconds"`
	ShutdownSeconds    int    `json:"shutdown_seconds" yaml:"shutdown_seconds"`
	SessionLogDir      string `json:"session_log_dir" yaml:"session_log_dir"` // Per-session .jsonl logs. Empty disables them.
}

// DefaultConfig returns a ServerConfig with sensible defaults.
func DefaultConfig() ServerConfig {
	return ServerConfig{
		Addr:               ":8080",
		MaxUploadBytes:     20 << 20,
		ArtifactTTLSeconds: 600,
		ReadTimeoutSeconds: 60,
		ShutdownSeconds:    10,
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
