package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"StockPulse/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from a specific topic. Returning an error
// makes the consumer retry; handlers drop poison messages by returning nil.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

var errStopping = errors.New("kafka consumer: stopping")

// Consumer reads registered topics in one group and hands messages to a
// worker pool. Offsets are committed only after a message is handled or
// dead-lettered; messages still buffered at shutdown are redelivered.
type Consumer struct {
	cfg     *ConsumerConfig
	log     *logger.Logger
	metrics *consumerMetrics
	offset  int64

	handlers map[string]MessageHandler
	readers  map[string]*kafka.Reader
	dlq      *kafka.Writer
	msgs     chan kafka.Message

	readCtx    context.Context
	stopRead   context.CancelFunc
	handleCtx  context.Context
	abortWork  context.CancelFunc
	readWG     sync.WaitGroup
	workWG     sync.WaitGroup
	startOnce  sync.Once
	stopOnce   sync.Once
	partMu     sync.Mutex
	partitions map[partitionKey]*sync.Mutex
}

type partitionKey struct {
	topic     string
	partition int
}

// NewConsumer creates a consumer. Handlers must be registered before Start.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{}
	cfg.setDefaults()
	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	var offset int64
	switch cfg.StartOffset {
	case "earliest", "":
		offset = kafka.FirstOffset
	case "latest":
		offset = kafka.LastOffset
	default:
		return nil, fmt.Errorf("start offset must be 'earliest' or 'latest', got %q", cfg.StartOffset)
	}
	m, err := newConsumerMetrics(cfg.Registerer)
	if err != nil {
		return nil, fmt.Errorf("consumer metrics: %w", err)
	}

	c := &Consumer{
		cfg:        cfg,
		log:        cfg.Logger,
		metrics:    m,
		offset:     offset,
		handlers:   make(map[string]MessageHandler),
		readers:    make(map[string]*kafka.Reader),
		msgs:       make(chan kafka.Message, cfg.BufferSize),
		partitions: make(map[partitionKey]*sync.Mutex),
	}
	c.readCtx, c.stopRead = context.WithCancel(context.Background())
	c.handleCtx, c.abortWork = context.WithCancel(context.Background())

	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.DLQTopic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
		}
	}
	return c, nil
}

// RegisterHandler registers a handler for its topic. The first handler for
// a topic wins.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("kafka consumer: handler already registered", logger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// Start opens one reader per registered topic and starts the workers.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("kafka consumer: no handlers registered")
	}
	started := false
	c.startOnce.Do(func() {
		started = true
		for topic := range c.handlers {
			c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
				Brokers:     c.cfg.Brokers,
				Topic:       topic,
				GroupID:     c.cfg.GroupID,
				StartOffset: c.offset,
				MinBytes:    1,
				MaxBytes:    10e6,
				MaxWait:     c.cfg.MaxWait,
			})
		}
		for i := 0; i < c.cfg.WorkerCount; i++ {
			c.workWG.Add(1)
			go c.worker()
		}
		for topic, r := range c.readers {
			c.readWG.Add(1)
			go c.read(topic, r)
		}
		c.log.Info("kafka consumer: started",
			logger.String("group", c.cfg.GroupID),
			logger.Int("topics", len(c.readers)),
			logger.Int("workers", c.cfg.WorkerCount))
	})
	if !started {
		return fmt.Errorf("kafka consumer: already started")
	}
	return nil
}

// Stop stops reading, lets in-flight messages finish until ctx is done and
// then cancels the handlers' context.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		c.log.Info("kafka consumer: stopping")
		c.stopRead()
		c.readWG.Wait()
		close(c.msgs)

		done := make(chan struct{})
		go func() {
			c.workWG.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			c.abortWork()
			stopErr = fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
		}
		c.abortWork()

		for topic, r := range c.readers {
			if err := r.Close(); err != nil {
				c.log.Error("kafka consumer: close reader", logger.String("topic", topic), logger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.log.Error("kafka consumer: close dlq writer", logger.Error(err))
			}
		}
		if stopErr == nil {
			c.log.Info("kafka consumer: stopped")
		}
	})
	return stopErr
}

func (c *Consumer) read(topic string, r *kafka.Reader) {
	defer c.readWG.Done()
	for {
		km, err := r.FetchMessage(c.readCtx)
		if err != nil {
			if c.readCtx.Err() != nil {
				return
			}
			c.log.Error("kafka consumer: fetch message", logger.String("topic", topic), logger.Error(err))
			select {
			case <-time.After(time.Second):
				continue
			case <-c.readCtx.Done():
				return
			}
		}

		// Blocking hand-off: a full buffer stops fetching instead of dropping.
		select {
		case c.msgs <- km:
			c.metrics.depth.WithLabelValues(topic).Set(float64(len(c.msgs)))
		case <-c.readCtx.Done():
			return
		}
	}
}

func (c *Consumer) worker() {
	defer c.workWG.Done()
	for km := range c.msgs {
		c.metrics.depth.WithLabelValues(km.Topic).Set(float64(len(c.msgs)))
		if c.readCtx.Err() != nil {
			continue
		}
		c.process(km)
	}
}

func (c *Consumer) process(km kafka.Message) {
	handler, ok := c.handlers[km.Topic]
	if !ok {
		return
	}
	pl := c.partitionLock(km.Topic, km.Partition)
	pl.Lock()
	defer pl.Unlock()

	start := time.Now()
	attempts, err := c.handleWithRetry(c.handleCtx, handler, km)
	c.metrics.latency.WithLabelValues(km.Topic).Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, errStopping) || c.handleCtx.Err() != nil {
			c.metrics.messages.WithLabelValues(km.Topic, "redeliver").Inc()
			return
		}
		c.log.Error("kafka consumer: giving up on message",
			logger.String("topic", km.Topic),
			logger.Int("partition", km.Partition),
			logger.Int64("offset", km.Offset),
			logger.Int("attempts", attempts),
			logger.Error(err))
		c.deadLetter(km)
		c.metrics.messages.WithLabelValues(km.Topic, "dead_letter").Inc()
	} else {
		c.metrics.messages.WithLabelValues(km.Topic, "ok").Inc()
	}

	if r := c.readers[km.Topic]; r != nil {
		_ = c.commitWithRetry(r, km, 3)
	}
}

// handleWithRetry calls the handler up to RetryMax+1 times with jittered
// backoff. A panicking handler counts as a failed attempt.
func (c *Consumer) handleWithRetry(ctx context.Context, handler MessageHandler, km kafka.Message) (int, error) {
	attempts := 0
	for {
		attempts++
		err := safeHandle(ctx, handler, km.Value)
		if err == nil || attempts > c.cfg.RetryMax {
			return attempts, err
		}
		c.metrics.retries.WithLabelValues(km.Topic).Inc()
		c.log.Warn("kafka consumer: handler failed, retrying",
			logger.String("topic", km.Topic),
			logger.Int("attempt", attempts),
			logger.Error(err))
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempts)):
		case <-c.readCtx.Done():
			return attempts, errStopping
		case <-ctx.Done():
			return attempts, ctx.Err()
		}
	}
}

func safeHandle(ctx context.Context, handler MessageHandler, value []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler.Handle(ctx, value)
}

func (c *Consumer) deadLetter(km kafka.Message) {
	if c.dlq == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.dlq.WriteMessages(ctx, kafka.Message{
		Key:   km.Key,
		Value: km.Value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "source_topic", Value: []byte(km.Topic)},
			{Key: "source_offset", Value: []byte(fmt.Sprint(km.Offset))},
		},
	}); err != nil {
		c.log.Error("kafka consumer: write dlq", logger.String("dlq_topic", c.cfg.DLQTopic), logger.Error(err))
	}
}

// commitWithRetry commits a single message offset with bounded retries.
func (c *Consumer) commitWithRetry(r *kafka.Reader, km kafka.Message, max int) error {
	if max <= 0 {
		max = 1
	}
	var err error
	for attempt := 1; attempt <= max; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = r.CommitMessages(ctx, km)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.log.Error("kafka consumer: commit failed",
		logger.String("topic", km.Topic),
		logger.Int64("offset", km.Offset),
		logger.Int("attempts", max),
		logger.Error(err))
	return err
}

func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	c.partMu.Lock()
	defer c.partMu.Unlock()
	k := partitionKey{topic: topic, partition: partition}
	mu, ok := c.partitions[k]
	if !ok {
		mu = &sync.Mutex{}
		c.partitions[k] = mu
	}
	return mu
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	if attempt < 1 {
		attempt = 1
	}
	exp := max
	if attempt <= 30 {
		if d := min << uint(attempt-1); d > 0 && d < max {
			exp = d
		}
	}
	// up to 50% jitter
	if half := int64(exp) / 2; half > 0 {
		exp -= time.Duration(rand.Int63n(half))
	}
	return exp
}
