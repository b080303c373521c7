package di

import (
	"context"
	"testing"
	"time"

	"StockPulse/internal/domain/models"
	internalrepo "StockPulse/internal/repository"
	"StockPulse/pkg/cache"
	"StockPulse/pkg/config"
	"StockPulse/pkg/logger"
	"StockPulse/pkg/metrics"
	"StockPulse/pkg/queue"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	c := config.Default()
	c.Artifacts.Dir = t.TempDir()
	c.Logger.Level = "error"
	c.Forecast.Forest.Trees = 5
	require.NoError(t, c.Validate())
	return c
}

func TestInitializeAppLocalOnly(t *testing.T) {
	app, err := InitializeApp(localConfig(t))
	require.NoError(t, err)
	require.NotNil(t, app)
	assert.NoError(t, app.Shutdown(context.Background()))
}

func TestOptionalClientsAreNilWhenDisabled(t *testing.T) {
	cfg := localConfig(t)

	rc, err := ProvideRedisClient(cfg)
	require.NoError(t, err)
	assert.Nil(t, rc)

	ch, err := ProvideClickHouseClient(cfg)
	require.NoError(t, err)
	assert.Nil(t, ch)
	assert.Nil(t, ProvideSalesHistory(cfg, ch))

	p, err := ProvideKafkaProducer(cfg)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.IsType(t, internalrepo.NoopEventPublisher{}, ProvideEventPublisher(cfg, p))

	c, err := ProvideKafkaConsumer(cfg, logger.Nop(), nil)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestProvideCache(t *testing.T) {
	cfg := localConfig(t)
	fc := ProvideCache(cfg, nil)
	require.IsType(t, &cache.MemoryCache{}, fc)
	_ = fc.Close()

	cfg.Cache.Enabled = false
	assert.Nil(t, ProvideCache(cfg, nil))
}

func TestProvideArtifactStore(t *testing.T) {
	cfg := localConfig(t)
	store, err := ProvideArtifactStore(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &internalrepo.FileArtifactStore{}, store)

	cfg.Artifacts.Backend = "redis"
	_, err = ProvideArtifactStore(cfg, nil)
	assert.Error(t, err)
}

func TestProvideTrainQueue(t *testing.T) {
	cfg := localConfig(t)
	assert.Nil(t, ProvideTrainQueue(cfg, nil, nil), "kafka backend without a producer")

	cfg.Queue.Backend = "redis"
	cfg.Redis.Enabled = true
	rc := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer rc.Close()
	jq := ProvideJobQueue(cfg, rc, logger.Nop())
	require.NotNil(t, jq)
	tq := ProvideTrainQueue(cfg, nil, jq)
	require.NotNil(t, tq)
	assert.Equal(t, "redis:stockpulse:queue", tq.Topic())

	cfg.Queue.Backend = "none"
	assert.Nil(t, ProvideJobQueue(cfg, rc, logger.Nop()))
	assert.Nil(t, ProvideTrainQueue(cfg, nil, (*queue.RedisQueue)(nil)))
}

func mustDay(t *testing.T, i int) time.Time {
	t.Helper()
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func TestEngineFallbackIsCounted(t *testing.T) {
	cfg := localConfig(t)
	store, err := ProvideArtifactStore(cfg, nil)
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	rec := metrics.NewWithRegisterer(reg)

	engine := ProvideEngine(cfg, store, rec, logger.Nop())
	obs := make([]models.Observation, 30)
	for i := range obs {
		obs[i] = models.Observation{Date: mustDay(t, i), Quantity: float64(10 + i%4)}
	}
	_, err = engine.Trainer.Train(context.Background(), "sku-1", obs)
	require.NoError(t, err)

	// the time-series side cannot fit a single point, so the ensemble falls back
	out, err := engine.Ensemble.Combine(context.Background(), "sku-1", obs[:1], 5)
	require.NoError(t, err)
	assert.Equal(t, models.ModelRandomForest, out.Model)
	n, err := testutil.GatherAndCount(reg, "stockpulse_ensemble_fallbacks_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
