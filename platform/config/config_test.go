package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/intake")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "matter-intake", cfg.GetAsynqQueueName())
	assert.Equal(t, 10, cfg.GetAsynqMaxRetry())
	assert.Equal(t, 2*time.Second, cfg.GetPagePause())
	assert.Equal(t, 15*time.Minute, cfg.GetSweepInterval())
	assert.True(t, cfg.GetInclusiveOffsets())
	assert.False(t, cfg.IsMinIOEnabled())
	assert.False(t, cfg.IsAddressValidationEnabled())
}

func TestLoadRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateWorker(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/intake")
	t.Setenv("REDIS_URL", "")
	t.Setenv("MATTER_API_URL", "")
	t.Setenv("MATTER_API_TOKEN", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.ErrorContains(t, cfg.ValidateWorker(), "REDIS_URL")

	cfg.RedisURL = "redis://localhost:6379/0"
	assert.ErrorContains(t, cfg.ValidateWorker(), "MATTER_API_URL")

	cfg.MatterAPIURL = "https://api.example.com"
	cfg.MatterAPIToken = "token"
	assert.NoError(t, cfg.ValidateWorker())

	cfg.MatterAPIRequestsPerSecond = 0
	assert.Error(t, cfg.ValidateWorker())
}
