// Package config loads client configuration from the environment.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the runtime settings for the captioning client.
type Config struct {
	// APIBase is the base URL of the captioning backend, e.g. http://127.0.0.1:8000.
	APIBase string
	// SignalingURL is the base URL of the WebRTC signaling server used to
	// build per-run video links. Loopback hostnames are rewritten to the
	// API host so links work across container/host boundaries.
	SignalingURL string
	// CollectorURL is the websocket endpoint of the system metrics collector.
	CollectorURL string
	// AlertMode enables yes/no caption scanning and alert tagging on run cards.
	AlertMode bool
	// DefaultPrompt is used when a run is started without a prompt.
	DefaultPrompt string
	// DefaultRTSP pre-fills the stream source for new runs.
	DefaultRTSP string
}

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist the error can be ignored;
// system env and defaults still apply.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// FromEnv builds a Config from LIVECAP_* environment variables, falling back
// to defaults suitable for a local deployment.
func FromEnv() Config {
	return Config{
		APIBase:       GetEnv("LIVECAP_API", "http://127.0.0.1:8000"),
		SignalingURL:  GetEnv("LIVECAP_SIGNALING_URL", ""),
		CollectorURL:  GetEnv("LIVECAP_COLLECTOR_URL", "ws://127.0.0.1:8000/ws/clients"),
		AlertMode:     GetEnvBool("LIVECAP_ALERT_MODE", false),
		DefaultPrompt: GetEnv("LIVECAP_DEFAULT_PROMPT", "Describe what you see in one sentence."),
		DefaultRTSP:   GetEnv("LIVECAP_DEFAULT_RTSP", ""),
	}
}

// GetEnv returns the value of the environment variable named by key, or
// fallback if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by
// key, or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvBool returns the boolean value of the environment variable named by
// key, or fallback if the variable is unset or not parseable.
func GetEnvBool(key string, fallback bool) bool {
	if s := os.Getenv(key); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return fallback
}
