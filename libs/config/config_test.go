package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSpec struct {
	Port    string        `envconfig:"PORT" default:"8083"`
	TTL     time.Duration `envconfig:"SLOT_CACHE_TTL" default:"15s"`
	DSN     string        `envconfig:"DATABASE_URL"`
	Brokers []string      `envconfig:"KAFKA_BROKERS"`
}

func TestProcess_DefaultsAndOverrides(t *testing.T) {
	t.Setenv("SLOT_CACHE_TTL", "30s")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	var spec testSpec
	require.NoError(t, Process("", &spec))
	assert.Equal(t, "8083", spec.Port)
	assert.Equal(t, 30*time.Second, spec.TTL)
	assert.Empty(t, spec.DSN)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, spec.Brokers)
}

func TestPort(t *testing.T) {
	t.Setenv("PORT", "70000")
	_, err := Port("PORT", "8080")
	require.Error(t, err)

	t.Setenv("PORT", "")
	p, err := Port("PORT", "8080")
	require.NoError(t, err)
	assert.Equal(t, "8080", p)
}
