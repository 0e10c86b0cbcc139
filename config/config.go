// Package config centralizes the process flags and environment variables
// cmd/server/main.go starts from, extended with a database DSN and a
// Redis address the way SPEC_FULL.md's ambient stack calls for.
package config

import (
	"flag"
	"os"
	"strconv"
)

// Config holds every setting the server entrypoint needs to wire its
// store, cache, and catalog ports.
type Config struct {
	Port       int
	DSN        string // SQLite DSN/path; ":memory:" for an in-memory database
	RedisAddr  string // empty disables cache invalidation
	CatalogURL string // empty disables the contracted-service catalog check
}

// Load parses args against a fresh flag.FlagSet and layers it over
// environment-variable defaults, flags winning when both are set. name
// is the program name flag.FlagSet reports in usage/error output.
func Load(name string, args []string) (*Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	port := fs.Int("port", getEnvInt("CREDITENGINE_PORT", 8080), "HTTP server port")
	dsn := fs.String("db", getEnv("CREDITENGINE_DB", "credits.db"), "SQLite database path")
	redisAddr := fs.String("redis-addr", getEnv("CREDITENGINE_REDIS_ADDR", ""), "Redis address for cache invalidation (empty disables it)")
	catalogURL := fs.String("catalog-url", getEnv("CREDITENGINE_CATALOG_URL", ""), "Base URL of the contracted-service catalog (empty disables the check)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return &Config{
		Port:       *port,
		DSN:        *dsn,
		RedisAddr:  *redisAddr,
		CatalogURL: *catalogURL,
	}, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
