package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "RETURN_WINDOW_DAYS", "RESTOCK_ON_RETURN", "KAFKA_BROKERS", "ACCESS_TOKEN_TTL"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 7*24*time.Hour, cfg.ReturnWindow)
	assert.False(t, cfg.RestockOnReturn)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, 20*time.Minute, cfg.AccessTokenTTL)
	assert.False(t, cfg.IsProduction())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "Production")
	t.Setenv("RETURN_WINDOW_DAYS", "14")
	t.Setenv("RESTOCK_ON_RETURN", "true")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, ,kafka-2:9092")
	t.Setenv("ACCESS_TOKEN_TTL", "not-a-number")

	cfg := FromEnv()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 14*24*time.Hour, cfg.ReturnWindow)
	assert.True(t, cfg.RestockOnReturn)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 20*time.Minute, cfg.AccessTokenTTL)
}
