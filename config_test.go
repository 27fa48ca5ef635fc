package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/orders")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", cfg.NatsURL)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 10, cfg.Workers)
	assert.Equal(t, 2*time.Minute, cfg.StageDelayMin)
	assert.Equal(t, 10*time.Minute, cfg.StageDelayMax)
	assert.Equal(t, "orders:stage_tasks", cfg.SchedulerKey)
	assert.Equal(t, time.Second, cfg.SchedulerPollInterval)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/orders")
	t.Setenv("WORKERS", "4")
	t.Setenv("STAGE_DELAY_MIN", "5s")
	t.Setenv("STAGE_DELAY_MAX", "30s")
	t.Setenv("SCHEDULER_POLL_INTERVAL", "250ms")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 5*time.Second, cfg.StageDelayMin)
	assert.Equal(t, 30*time.Second, cfg.StageDelayMax)
	assert.Equal(t, 250*time.Millisecond, cfg.SchedulerPollInterval)
}

func TestLoadConfigRequiresDSN(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTGRES_DSN")
}

func TestLoadConfigRejectsInvertedDelayRange(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/orders")
	t.Setenv("STAGE_DELAY_MIN", "10m")
	t.Setenv("STAGE_DELAY_MAX", "2m")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage delay range")
}
