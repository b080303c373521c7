package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, 30, c.Forecast.DefaultHorizonDays)
	assert.Equal(t, 100, c.Forecast.Forest.Trees)
	assert.Equal(t, int64(42), c.Forecast.Forest.Seed)
	assert.Equal(t, 5, c.Forecast.ARIMA.P)
	assert.Equal(t, 1, c.Forecast.ARIMA.D)
	assert.InDelta(t, 1.96, c.Forecast.ZValue, 1e-9)
	assert.InDelta(t, 0.85, c.Forecast.Ensemble.LowerRatio, 1e-9)
	assert.Equal(t, 7, c.Anomaly.Window)
	assert.Equal(t, 10, c.Anomaly.MinRecords)
	assert.InDelta(t, 7.0, c.Inventory.ReorderSoonDays, 1e-9)
	assert.InDelta(t, 2.0, c.Inventory.ReorderMultiplier, 1e-9)
	assert.Equal(t, "file", c.Artifacts.Backend)
	assert.Empty(t, c.Server.APIKey)
}

func TestParseOverridesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
environment: prod
forecast:
  forest:
    trees: 20
inventory:
  reorder_soon_days: 14
`))
	require.NoError(t, err)
	assert.Equal(t, 20, c.Forecast.Forest.Trees)
	assert.Equal(t, int64(42), c.Forecast.Forest.Seed)
	assert.InDelta(t, 14.0, c.Inventory.ReorderSoonDays, 1e-9)
}

func TestValidateRejectsBadBackend(t *testing.T) {
	_, err := Parse([]byte("artifacts:\n  backend: s3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "artifacts.backend")

	_, err = Parse([]byte("artifacts:\n  backend: redis\n"))
	require.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	env := map[string]string{
		"AI_HOST":            "127.0.0.1",
		"AI_PORT":            "6000",
		"STOCKPULSE_API_KEY": "from-env",
		"KAFKA_BROKERS":      "a:9092,b:9092",
	}
	c.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "127.0.0.1", c.Server.Host)
	assert.Equal(t, 6000, c.Server.Port)
	assert.Equal(t, "from-env", c.Server.APIKey)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Kafka.Brokers)
	require.NoError(t, c.Validate())
}

func TestQueueBackend(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	require.NoError(t, err)
	assert.Equal(t, "kafka", c.Queue.Backend)
	assert.Equal(t, "stockpulse:queue", c.Queue.KeyPrefix)

	_, err = Parse([]byte("queue:\n  backend: redis\n"))
	assert.ErrorContains(t, err, "redis.enabled")

	_, err = Parse([]byte("queue:\n  backend: redis\nredis:\n  enabled: true\n"))
	assert.NoError(t, err)

	_, err = Parse([]byte("queue:\n  backend: sqs\n"))
	assert.ErrorContains(t, err, "queue.backend")
}

func TestSampleConfigLoads(t *testing.T) {
	c, err := Load("../../config/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, 5000, c.Server.Port)
	assert.Equal(t, "kafka", c.Queue.Backend)
	assert.False(t, c.Kafka.Enabled)
}
