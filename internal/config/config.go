// internal/config/config.go
package config

import (
	"os"
	"strconv"
)

// Config holds everything the surrounding process can tune.
type Config struct {
	// Addr is the TCP listen endpoint for the WebSocket server.
	Addr string

	// QueueSize bounds each connection's outbound event queue. A player
	// whose queue overflows is treated as slow and dropped.
	QueueSize int

	// RedisAddr enables the command journal when non-empty.
	RedisAddr    string
	RedisDB      int
	JournalQueue string
}

// Load reads the configuration from the environment, applying defaults.
func Load() Config {
	return Config{
		Addr:         getEnv("TABLETOP_ADDR", "127.0.0.1:9001"),
		QueueSize:    getEnvInt("TABLETOP_QUEUE_SIZE", 256),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		RedisDB:      getEnvInt("REDIS_DB", 0),
		JournalQueue: os.Getenv("JOURNAL_QUEUE_NAME"),
	}
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt parses an environment variable as an integer, else a default.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
