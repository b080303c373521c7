package server

import (
	"context"
	"errors"
	"fmt"

	"StockPulse/pkg/config"
	xhttp "StockPulse/pkg/http"
	pkgkafka "StockPulse/pkg/kafka"
	"StockPulse/pkg/logger"
	"StockPulse/pkg/queue"
)

type component struct {
	name  string
	start func(context.Context) error
	stop  func(context.Context) error
}

type closer struct {
	name  string
	close func() error
}

// App encapsulates the application lifecycle. Components start in the order
// they were added and stop in reverse; closers run last.
type App struct {
	cfg        *config.Config
	log        *logger.Logger
	components []component
	closers    []closer
	started    int
}

// Option configures App.
type Option func(*App)

// WithHTTPServer serves the API.
func WithHTTPServer(s *xhttp.Server) Option {
	return func(a *App) {
		if s == nil {
			return
		}
		a.components = append(a.components, component{
			name:  "http",
			start: func(context.Context) error { return s.Start() },
			stop:  s.Stop,
		})
	}
}

// WithKafkaConsumer runs a consumer whose handlers are already registered.
func WithKafkaConsumer(c *pkgkafka.Consumer) Option {
	return func(a *App) {
		if c == nil {
			return
		}
		a.components = append(a.components, component{
			name:  "kafka-consumer",
			start: func(context.Context) error { return c.Start() },
			stop:  c.Stop,
		})
	}
}

// WithJobQueue runs the Redis job queue workers.
func WithJobQueue(q *queue.RedisQueue) Option {
	return func(a *App) {
		if q == nil {
			return
		}
		a.components = append(a.components, component{name: "job-queue", start: q.Start, stop: q.Stop})
	}
}

func WithComponent(name string, start, stop func(context.Context) error) Option {
	return func(a *App) {
		a.components = append(a.components, component{name: name, start: start, stop: stop})
	}
}

// WithCloser releases a client at shutdown.
func WithCloser(name string, fn func() error) Option {
	return func(a *App) {
		if fn != nil {
			a.closers = append(a.closers, closer{name: name, close: fn})
		}
	}
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, log *logger.Logger, opts ...Option) *App {
	if log == nil {
		log = logger.Nop()
	}
	a := &App{cfg: cfg, log: log}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts every component and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return errors.Join(err, a.Shutdown(stopCtx))
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return a.Shutdown(stopCtx)
}

// Start launches components in order and stops at the first failure.
func (a *App) Start(ctx context.Context) error {
	for _, c := range a.components[a.started:] {
		if err := c.start(ctx); err != nil {
			a.log.Error("component start failed", logger.String("component", c.name), logger.Error(err))
			return fmt.Errorf("start %s: %w", c.name, err)
		}
		a.started++
		a.log.Info("component started", logger.String("component", c.name))
	}
	return nil
}

// Shutdown stops the started components in reverse order, then runs the
// closers. Every step runs even if an earlier one fails.
func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info("shutting down")
	var errs []error
	for i := a.started - 1; i >= 0; i-- {
		c := a.components[i]
		if err := c.stop(ctx); err != nil {
			a.log.Warn("component stop error", logger.String("component", c.name), logger.Error(err))
			errs = append(errs, fmt.Errorf("stop %s: %w", c.name, err))
		}
	}
	a.started = 0

	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			a.log.Warn("close error", logger.String("client", c.name), logger.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.closers = nil

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
