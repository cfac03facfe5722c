// Package config provides configuration management for the care gateway.
// It handles loading configuration from environment variables with sensible
// defaults and validates the configuration so the service starts safely.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - ORG_ID: Organization identifier stamped on audit records (default: default)
//
// Redis Configuration (shared rate limit coordination):
//   - REDIS_ADDRESS: Redis server address; empty means the limiter runs
//     permanently on the per-process fallback counter
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//
// Rate Limiting & Audit:
//   - RATE_LIMIT_ENABLED: Enable admission control (default: true)
//   - VIOLATION_BUFFER_SIZE: Violation ring buffer capacity (default: 100)
//   - AUDIT_FLUSH_INTERVAL: Violation flush interval (default: 60s)
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the care gateway.
type Config struct {
	Port     string // Server port number
	LogLevel string // Logging level (debug, info, warn, error)
	OrgID    string // Organization identifier for audit records

	// Redis configuration for shared rate limit coordination
	RedisAddress  string // Redis server address (host:port); empty disables shared enforcement
	RedisPassword string // Redis authentication password
	RedisDB       string // Redis database number (0-15)
	RedisPoolSize string // Redis connection pool size

	// Admission control and audit configuration
	RateLimitEnabled    bool   // Whether admission control is enabled
	ViolationBufferSize string // Violation ring buffer capacity
	AuditFlushInterval  string // Violation flush interval (e.g. "60s", "1m")
}

// Load creates a new Config instance with values loaded from environment
// variables. It does not validate; call Validate before use.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		OrgID:    getEnv("ORG_ID", "default"),

		RedisAddress:  os.Getenv("REDIS_ADDRESS"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),

		RateLimitEnabled:    getEnvBool("RATE_LIMIT_ENABLED", true),
		ViolationBufferSize: getEnv("VIOLATION_BUFFER_SIZE", "100"),
		AuditFlushInterval:  getEnv("AUDIT_FLUSH_INTERVAL", "60s"),
	}
}

// Validate ensures the configuration is usable. A missing Redis address is
// not an error (the limiter degrades to the per-process fallback with a
// startup warning); malformed numeric values are.
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid PORT %q: %w", c.Port, err)
	}

	db, err := strconv.Atoi(c.RedisDB)
	if err != nil || db < 0 || db > 15 {
		return fmt.Errorf("invalid REDIS_DB %q: must be 0-15", c.RedisDB)
	}

	if _, err := strconv.Atoi(c.RedisPoolSize); err != nil {
		return fmt.Errorf("invalid REDIS_POOL_SIZE %q: %w", c.RedisPoolSize, err)
	}

	size, err := strconv.Atoi(c.ViolationBufferSize)
	if err != nil || size <= 0 {
		return fmt.Errorf("invalid VIOLATION_BUFFER_SIZE %q: must be a positive integer", c.ViolationBufferSize)
	}

	interval, err := time.ParseDuration(c.AuditFlushInterval)
	if err != nil || interval <= 0 {
		return fmt.Errorf("invalid AUDIT_FLUSH_INTERVAL %q: must be a positive duration", c.AuditFlushInterval)
	}

	return nil
}

// RedisDBInt returns the parsed Redis database number.
func (c *Config) RedisDBInt() int {
	db, _ := strconv.Atoi(c.RedisDB)
	return db
}

// RedisPoolSizeInt returns the parsed Redis pool size.
func (c *Config) RedisPoolSizeInt() int {
	size, _ := strconv.Atoi(c.RedisPoolSize)
	return size
}

// ViolationBufferSizeInt returns the parsed violation buffer capacity.
func (c *Config) ViolationBufferSizeInt() int {
	size, _ := strconv.Atoi(c.ViolationBufferSize)
	return size
}

// AuditFlushIntervalDuration returns the parsed flush interval.
func (c *Config) AuditFlushIntervalDuration() time.Duration {
	interval, _ := time.ParseDuration(c.AuditFlushInterval)
	return interval
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
