package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, int64(4096), cfg.MaxMessageSize)
	assert.Equal(t, 30*time.Second, cfg.PingInterval)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9999")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example.com, http://b.example.com")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")
	t.Setenv("PING_INTERVAL", "5")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("REDIS_ADDR", "redis.internal:6379")

	cfg := NewConfigFromEnv()

	assert.Equal(t, ":9999", cfg.Port)
	assert.Equal(t, []string{"http://a.example.com", "http://b.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(1024), cfg.MaxMessageSize)
	assert.Equal(t, 5*time.Second, cfg.PingInterval)
	assert.Equal(t, "env-secret", cfg.JWTSecret)
	assert.Equal(t, "redis.internal:6379", cfg.RedisAddr)
}

func TestConfigFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("MAX_MESSAGE_SIZE", "not-a-number")
	t.Setenv("PING_INTERVAL", "-3")

	cfg := NewConfigFromEnv()

	assert.Equal(t, int64(4096), cfg.MaxMessageSize)
	assert.Equal(t, 30*time.Second, cfg.PingInterval)
}

func TestSetConfigSanitizesZeroValues(t *testing.T) {
	SetConfig(&Config{})
	defer SetConfig(nil)

	cfg := currentConfig()
	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.PingInterval)
	assert.Positive(t, cfg.RateLimit.Burst)
}
