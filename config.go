package orders

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultWorkers       = 10
	defaultStageDelayMin = 2 * time.Minute
	defaultStageDelayMax = 10 * time.Minute
	defaultSchedulerKey  = "orders:stage_tasks"
	defaultPollInterval  = time.Second
)

// Config 服務設定
type Config struct {
	PostgresDSN string
	NatsURL     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Workers int

	StageDelayMin time.Duration
	StageDelayMax time.Duration

	SchedulerKey          string
	SchedulerPollInterval time.Duration
}

// LoadConfig reads configuration from the environment, with a best-effort
// .env load for local development.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		PostgresDSN:           os.Getenv("POSTGRES_DSN"),
		NatsURL:               getEnv("NATS_URL", "nats://localhost:4222"),
		RedisAddr:             getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               getEnvInt("REDIS_DB", 0),
		Workers:               getEnvInt("WORKERS", defaultWorkers),
		StageDelayMin:         getEnvDuration("STAGE_DELAY_MIN", defaultStageDelayMin),
		StageDelayMax:         getEnvDuration("STAGE_DELAY_MAX", defaultStageDelayMax),
		SchedulerKey:          getEnv("SCHEDULER_KEY", defaultSchedulerKey),
		SchedulerPollInterval: getEnvDuration("SCHEDULER_POLL_INTERVAL", defaultPollInterval),
	}

	if cfg.PostgresDSN == "" {
		return Config{}, fmt.Errorf("POSTGRES_DSN is required")
	}
	if cfg.Workers <= 0 {
		return Config{}, fmt.Errorf("WORKERS must be positive, got %d", cfg.Workers)
	}
	if cfg.StageDelayMin <= 0 || cfg.StageDelayMax < cfg.StageDelayMin {
		return Config{}, fmt.Errorf("invalid stage delay range: %s to %s", cfg.StageDelayMin, cfg.StageDelayMax)
	}
	if cfg.SchedulerPollInterval <= 0 {
		return Config{}, fmt.Errorf("SCHEDULER_POLL_INTERVAL must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
