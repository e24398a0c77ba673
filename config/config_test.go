package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("HIRE_STRATEGY", "")
	t.Setenv("REQUEST_TIMEOUT", "")

	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, "auto", cfg.HireStrategy)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("HIRE_STRATEGY", "Sequential")
	t.Setenv("REQUEST_TIMEOUT", "2s")
	t.Setenv("RECONCILE_INTERVAL", "nonsense")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("RECONCILE_GRACE", "90s")

	cfg := FromEnv()
	assert.Equal(t, ":9000", cfg.Port)
	assert.Equal(t, "sequential", cfg.HireStrategy)
	assert.Equal(t, 2*time.Second, cfg.RequestTimeout)
	assert.Equal(t, time.Minute, cfg.ReconcileInterval)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 90*time.Second, cfg.ReconcileGrace)
}
