package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"StockPulse/pkg/config"
	"StockPulse/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

func fakeComponent(j *journal, name string, startErr error) Option {
	return WithComponent(name,
		func(context.Context) error {
			if startErr != nil {
				return startErr
			}
			j.add("start " + name)
			return nil
		},
		func(context.Context) error {
			j.add("stop " + name)
			return nil
		})
}

func testConfig() *config.Config {
	c := config.Default()
	c.Server.ShutdownTimeout = time.Second
	return c
}

func TestAppStopsInReverseOrder(t *testing.T) {
	j := &journal{}
	app := New(testConfig(), logger.Nop(),
		fakeComponent(j, "a", nil),
		fakeComponent(j, "b", nil),
		WithCloser("db", func() error { j.add("close db"); return nil }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool { return len(j.list()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a", "close db"}, j.list())
}

func TestAppStartFailureUnwindsStartedComponents(t *testing.T) {
	j := &journal{}
	boom := errors.New("port in use")
	app := New(testConfig(), logger.Nop(),
		fakeComponent(j, "a", nil),
		fakeComponent(j, "b", boom),
		fakeComponent(j, "c", nil),
	)

	err := app.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "start b")
	assert.Equal(t, []string{"start a", "stop a"}, j.list())
}

func TestAppShutdownCollectsErrors(t *testing.T) {
	closeErr := errors.New("already closed")
	app := New(testConfig(), nil,
		WithCloser("redis", func() error { return closeErr }),
		WithHTTPServer(nil),
		WithKafkaConsumer(nil),
		WithJobQueue(nil),
	)
	require.NoError(t, app.Start(context.Background()))
	err := app.Shutdown(context.Background())
	assert.ErrorIs(t, err, closeErr)
	assert.NoError(t, app.Shutdown(context.Background()), "second shutdown is a no-op")
}
