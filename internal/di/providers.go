package di

import (
	"context"
	"fmt"
	"time"

	"StockPulse/internal/domain/repository"
	"StockPulse/internal/handler/api"
	internalrepo "StockPulse/internal/repository"
	"StockPulse/internal/service/ratelimit"
	"StockPulse/internal/services/anomaly"
	"StockPulse/internal/services/forecasting"
	"StockPulse/internal/services/inventory"
	"StockPulse/internal/usecase"
	"StockPulse/pkg/cache"
	pkgch "StockPulse/pkg/clickhouse"
	"StockPulse/pkg/config"
	xhttp "StockPulse/pkg/http"
	pkgkafka "StockPulse/pkg/kafka"
	"StockPulse/pkg/logger"
	"StockPulse/pkg/metrics"
	"StockPulse/pkg/queue"
	"StockPulse/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// ProvideLogger builds the process logger from config.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New()
}

// ProvideRedisClient dials Redis; nil when Redis is disabled.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisClient(
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPoolSize(cfg.Queue.Workers+4),
	)
	if err != nil {
		return nil, fmt.Errorf("redis client: %w", err)
	}
	return rc, nil
}

// ProvideCache returns the forecast cache: memory only, or memory in front of
// Redis when Redis is available. Nil when caching is disabled.
func ProvideCache(cfg *config.Config, rc *redis.Client) cache.Service {
	if !cfg.Cache.Enabled {
		return nil
	}
	if rc == nil {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MaxSize))
	}
	shared := cache.NewRedisCacheFromClient(rc, cfg.Redis.Prefix)
	return cache.NewLayeredCache(shared, time.Minute, cache.WithMemoryMaxSize(cfg.Cache.MaxSize))
}

// ProvideArtifactStore selects where fitted models live.
func ProvideArtifactStore(cfg *config.Config, rc *redis.Client) (repository.ArtifactStore, error) {
	switch cfg.Artifacts.Backend {
	case "redis":
		if rc == nil {
			return nil, fmt.Errorf("artifact store: redis backend without a redis client")
		}
		// no local layer: artifacts must be visible to every replica at once
		kv := cache.NewRedisCacheFromClient(rc, cfg.Redis.Prefix)
		return internalrepo.NewKVArtifactStore(kv, cfg.Redis.LockTTL), nil
	default:
		store, err := internalrepo.NewFileArtifactStore(cfg.Artifacts.Dir)
		if err != nil {
			return nil, fmt.Errorf("artifact store: %w", err)
		}
		return store, nil
	}
}

// ProvideClickHouseClient connects to the sales history database; nil when
// history lookups are disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithPool(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if err := client.InitSchema(ctx, internalrepo.SchemaStatements(cfg.ClickHouse.Database, cfg.History.Table)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideSalesHistory exposes the ClickHouse table as a history source.
func ProvideSalesHistory(cfg *config.Config, ch *pkgch.Client) repository.SalesHistory {
	if ch == nil {
		return nil
	}
	return internalrepo.NewClickHouseSalesHistory(ch.DB(), cfg.ClickHouse.Database+"."+cfg.History.Table)
}

// ProvideKafkaProducer creates a Kafka producer; nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventPublisher publishes domain events to Kafka, or drops them.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.EventPublisher {
	if producer == nil {
		return internalrepo.NoopEventPublisher{}
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic)
}

// ProvideJobQueue creates the Redis job queue when it backs background training.
func ProvideJobQueue(cfg *config.Config, rc *redis.Client, log *logger.Logger) *queue.RedisQueue {
	if cfg.Queue.Backend != "redis" || rc == nil {
		return nil
	}
	return queue.NewRedisQueue(log.With(logger.String("component", "job-queue")), queue.Config{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
		KeyPrefix:  cfg.Queue.KeyPrefix,
	}, rc)
}

// ProvideTrainQueue picks the background training transport; nil disables
// TrainAsync.
func ProvideTrainQueue(cfg *config.Config, producer *pkgkafka.Producer, jq *queue.RedisQueue) repository.TrainQueue {
	switch {
	case cfg.Queue.Backend == "kafka" && producer != nil:
		return internalrepo.NewKafkaTrainQueue(producer, cfg.Kafka.TrainTopic)
	case cfg.Queue.Backend == "redis" && jq != nil:
		return internalrepo.NewRedisTrainQueue(jq, cfg.Queue.KeyPrefix)
	default:
		return nil
	}
}

// ProvideEngine builds the forecasting core.
func ProvideEngine(cfg *config.Config, store repository.ArtifactStore, rec *metrics.Recorder, log *logger.Logger) usecase.Engine {
	predictor := forecasting.NewDemandPredictor(store, cfg.Forecast)
	arima := forecasting.NewARIMAForecaster(cfg.Forecast)
	ensemble := forecasting.NewEnsemble(predictor, arima, cfg.Forecast).OnFallback(func(used string, cause error) {
		rec.RecordFallback(used)
		log.Warn("ensemble fell back to a single model", logger.String("model", used), logger.Error(cause))
	})
	return usecase.Engine{
		Trainer:    forecasting.NewModelTrainer(store, cfg.Forecast),
		Predictor:  predictor,
		TimeSeries: arima,
		Ensemble:   ensemble,
		Detector:   anomaly.NewDetector(cfg.Anomaly),
		Optimizer:  inventory.NewOptimizer(cfg.Inventory),
	}
}

// ProvideForecastUseCase creates the forecasting use case.
func ProvideForecastUseCase(
	cfg *config.Config,
	engine usecase.Engine,
	events repository.EventPublisher,
	rec *metrics.Recorder,
	log *logger.Logger,
	history repository.SalesHistory,
	tq repository.TrainQueue,
	fc cache.Service,
) *usecase.ForecastUseCase {
	opts := []usecase.Option{usecase.WithDefaultThreshold(cfg.Anomaly.DefaultThreshold)}
	if history != nil {
		opts = append(opts, usecase.WithHistory(history, cfg.History.LookbackDays))
	}
	if tq != nil {
		opts = append(opts, usecase.WithTrainQueue(tq))
	}
	if fc != nil {
		opts = append(opts, usecase.WithForecastCache(fc, cfg.Cache.TTL))
	}
	return usecase.NewForecastUseCase(engine, events, rec, log, opts...)
}

// ProvideRateLimiter limits training requests per client.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.TrainRate.Capacity, cfg.Server.TrainRate.RefillPerSec)
}

// ProvideForecastHandler creates the HTTP handler.
func ProvideForecastHandler(cfg *config.Config, log *logger.Logger, uc *usecase.ForecastUseCase, rl *ratelimit.Limiter) *api.ForecastEchoHandler {
	return api.NewForecastEchoHandler(log, uc, rl, cfg.Server.APIKey)
}

// ProvideHTTPServer creates the Echo server.
func ProvideHTTPServer(cfg *config.Config, h *api.ForecastEchoHandler, log *logger.Logger) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(h,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithMetrics(metricsPath, prometheus.DefaultRegisterer, prometheus.DefaultGatherer),
		xhttp.WithLogger(log.With(logger.String("component", "http"))),
	)
}

// ProvideKafkaConsumer creates the training consumer when Kafka carries
// background training.
func ProvideKafkaConsumer(cfg *config.Config, log *logger.Logger, uc *usecase.ForecastUseCase) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Queue.Backend != "kafka" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerStartOffset(cfg.Kafka.Consumer.StartOffset),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerLogger(log.With(logger.String("component", "kafka-consumer"))),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(usecase.NewKafkaTrainHandler(cfg.Kafka.TrainTopic, uc, log))
	return consumer, nil
}

// ProvideApp assembles the application lifecycle.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	jq *queue.RedisQueue,
	uc *usecase.ForecastUseCase,
	rl *ratelimit.Limiter,
	events repository.EventPublisher,
	fc cache.Service,
	ch *pkgch.Client,
	rc *redis.Client,
) *server.App {
	start, stop := pruneLoop(rl, time.Minute)
	opts := []server.Option{server.WithComponent("ratelimit-prune", start, stop)}
	if jq != nil {
		jq.RegisterJob(usecase.NewQueueTrainJob(uc, log))
		opts = append(opts, server.WithJobQueue(jq))
	}
	opts = append(opts,
		server.WithKafkaConsumer(consumer),
		server.WithHTTPServer(srv),
		server.WithCloser("events", events.Close),
	)
	// with Redis the cache shares rc, which is closed below
	if fc != nil && rc == nil {
		opts = append(opts, server.WithCloser("cache", fc.Close))
	}
	if ch != nil {
		opts = append(opts, server.WithCloser("clickhouse", ch.Close))
	}
	if rc != nil {
		opts = append(opts, server.WithCloser("redis", rc.Close))
	}
	return server.New(cfg, log, opts...)
}

// pruneLoop drops idle rate limit buckets every interval.
func pruneLoop(rl *ratelimit.Limiter, interval time.Duration) (start, stop func(context.Context) error) {
	done := make(chan struct{})
	start = func(context.Context) error {
		go func() {
			t := time.NewTicker(interval)
			defer t.Stop()
			for {
				select {
				case <-done:
					return
				case <-t.C:
					rl.Prune()
				}
			}
		}()
		return nil
	}
	stop = func(context.Context) error {
		close(done)
		return nil
	}
	return start, stop
}
