package config

import (
	"os"
	"strconv"
)

// Config captures process configuration. Values are read once at startup and
// threaded through constructors; nothing here is ambient state.
type Config struct {
	Addr        string
	DatabaseURL string
	RedisAddr   string

	// PersonAPIURL is the base URL of the upstream person info service.
	PersonAPIURL string

	// DefaultPageSize bounds summary queries when the caller gives none.
	DefaultPageSize int
	// PersonBatchSize caps how many CRNs one upstream resolution call carries.
	PersonBatchSize int
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:            getenv("CASEWORK_ADDR", ":8080"),
		DatabaseURL:     getenv("CASEWORK_DATABASE_URL", ""),
		RedisAddr:       getenv("CASEWORK_REDIS_ADDR", ""),
		PersonAPIURL:    getenv("CASEWORK_PERSON_API_URL", ""),
		DefaultPageSize: getint("CASEWORK_DEFAULT_PAGE_SIZE", 10),
		PersonBatchSize: getint("CASEWORK_PERSON_BATCH_SIZE", 500),
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
