// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// SchedulerConfig provides settings for the asynq stage-event transport.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetAsynqMaxRetry() int
}

// HTTPConfig provides settings for the intake HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetIntakeRateLimit() float64
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	IsMinIOEnabled() bool
}

// MatterAPIConfig provides settings for the case-management API client.
type MatterAPIConfig interface {
	GetMatterAPIURL() string
	GetMatterAPIToken() string
	GetMatterAPIRequestsPerSecond() float64
	GetMatterAPITimeout() time.Duration
}

// AddressConfig provides settings for the address-validation API client.
type AddressConfig interface {
	GetAddressAPIURL() string
	GetAddressAPIKey() string
	IsAddressValidationEnabled() bool
}

// SagaConfig provides settings for the provisioning saga.
type SagaConfig interface {
	GetPolicyFile() string
	GetJurisdiction() string
	GetPhoneRegion() string
	GetDefaultContactID() string
	GetPagePause() time.Duration
	GetReportContactMismatch() bool
	GetInclusiveOffsets() bool
}

// SweepConfig provides settings for the stalled-saga sweeper.
type SweepConfig interface {
	GetSweepInterval() time.Duration
	GetStalledAfter() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                        string
	HTTPAddr                   string
	IntakeRateLimit            float64
	DatabaseURL                string
	MigrationsEnabled          bool
	RedisURL                   string
	RedisTLSInsecure           bool
	AsynqQueueName             string
	AsynqConcurrency           int
	AsynqMaxRetry              int
	MinIOEndpoint              string
	MinIOAccessKey             string
	MinIOSecretKey             string
	MinIOUseSSL                bool
	MinIOMaxFileSize           int64
	MatterAPIURL               string
	MatterAPIToken             string
	MatterAPIRequestsPerSecond float64
	MatterAPITimeout           time.Duration
	AddressAPIURL              string
	AddressAPIKey              string
	PolicyFile                 string
	Jurisdiction               string
	PhoneRegion                string
	DefaultContactID           string
	PagePause                  time.Duration
	ReportContactMismatch      bool
	InclusiveOffsets           bool
	SweepInterval              time.Duration
	StalledAfter               time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool  { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string  { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int   { return c.AsynqConcurrency }
func (c *Config) GetAsynqMaxRetry() int      { return c.AsynqMaxRetry }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string          { return c.HTTPAddr }
func (c *Config) GetIntakeRateLimit() float64 { return c.IntakeRateLimit }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string   { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string  { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string  { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool       { return c.MinIOUseSSL }
func (c *Config) GetMinIOMaxFileSize() int64 { return c.MinIOMaxFileSize }
func (c *Config) IsMinIOEnabled() bool       { return c.MinIOEndpoint != "" }

// MatterAPIConfig implementation
func (c *Config) GetMatterAPIURL() string   { return c.MatterAPIURL }
func (c *Config) GetMatterAPIToken() string { return c.MatterAPIToken }
func (c *Config) GetMatterAPIRequestsPerSecond() float64 {
	return c.MatterAPIRequestsPerSecond
}
func (c *Config) GetMatterAPITimeout() time.Duration { return c.MatterAPITimeout }

// AddressConfig implementation
func (c *Config) GetAddressAPIURL() string        { return c.AddressAPIURL }
func (c *Config) GetAddressAPIKey() string        { return c.AddressAPIKey }
func (c *Config) IsAddressValidationEnabled() bool { return c.AddressAPIURL != "" }

// SagaConfig implementation
func (c *Config) GetPolicyFile() string           { return c.PolicyFile }
func (c *Config) GetJurisdiction() string         { return c.Jurisdiction }
func (c *Config) GetPhoneRegion() string          { return c.PhoneRegion }
func (c *Config) GetDefaultContactID() string     { return c.DefaultContactID }
func (c *Config) GetPagePause() time.Duration     { return c.PagePause }
func (c *Config) GetReportContactMismatch() bool  { return c.ReportContactMismatch }
func (c *Config) GetInclusiveOffsets() bool       { return c.InclusiveOffsets }

// SweepConfig implementation
func (c *Config) GetSweepInterval() time.Duration { return c.SweepInterval }
func (c *Config) GetStalledAfter() time.Duration  { return c.StalledAfter }

// IsDevelopment reports whether the app runs in development mode.
func (c *Config) IsDevelopment() bool { return strings.EqualFold(c.Env, "development") }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                        getEnv("APP_ENV", "development"),
		HTTPAddr:                   getEnv("HTTP_ADDR", ":8080"),
		IntakeRateLimit:            mustFloat(getEnv("INTAKE_RATE_LIMIT", "5")),
		DatabaseURL:                getEnv("DATABASE_URL", ""),
		MigrationsEnabled:          strings.EqualFold(getEnv("DATABASE_MIGRATE", "true"), "true"),
		RedisURL:                   getEnv("REDIS_URL", ""),
		RedisTLSInsecure:           strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:             getEnv("ASYNQ_QUEUE", "matter-intake"),
		AsynqConcurrency:           mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		AsynqMaxRetry:              mustInt(getEnv("ASYNQ_MAX_RETRY", "10")),
		MinIOEndpoint:              getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:             getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:             getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:                strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinIOMaxFileSize:           mustInt64(getEnv("MINIO_MAX_FILE_SIZE", "104857600")),
		MatterAPIURL:               getEnv("MATTER_API_URL", ""),
		MatterAPIToken:             getEnv("MATTER_API_TOKEN", ""),
		MatterAPIRequestsPerSecond: mustFloat(getEnv("MATTER_API_RPS", "4")),
		MatterAPITimeout:           mustDuration(getEnv("MATTER_API_TIMEOUT", "30s")),
		AddressAPIURL:              getEnv("ADDRESS_API_URL", ""),
		AddressAPIKey:              getEnv("ADDRESS_API_KEY", ""),
		PolicyFile:                 getEnv("SAGA_POLICY_FILE", ""),
		Jurisdiction:               getEnv("SAGA_JURISDICTION", "NSW"),
		PhoneRegion:                getEnv("SAGA_PHONE_REGION", "AU"),
		DefaultContactID:           getEnv("SAGA_DEFAULT_CONTACT_ID", ""),
		PagePause:                  mustDuration(getEnv("SAGA_PAGE_PAUSE", "2s")),
		ReportContactMismatch:      strings.EqualFold(getEnv("SAGA_REPORT_CONTACT_MISMATCH", "true"), "true"),
		InclusiveOffsets:           strings.EqualFold(getEnv("SAGA_INCLUSIVE_OFFSETS", "true"), "true"),
		SweepInterval:              mustDuration(getEnv("SAGA_SWEEP_INTERVAL", "15m")),
		StalledAfter:               mustDuration(getEnv("SAGA_STALLED_AFTER", "1h")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

// ValidateTransport checks the settings needed to publish stage events.
func (c *Config) ValidateTransport() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	return nil
}

// ValidateWorker checks the settings needed to run stages.
func (c *Config) ValidateWorker() error {
	if err := c.ValidateTransport(); err != nil {
		return err
	}
	if c.MatterAPIURL == "" || c.MatterAPIToken == "" {
		return fmt.Errorf("MATTER_API_URL and MATTER_API_TOKEN are required")
	}
	if c.MatterAPIRequestsPerSecond <= 0 {
		return fmt.Errorf("MATTER_API_RPS must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
}
