package repository

import (
	"context"
	"errors"
	"testing"

	"StockPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	msgType string
	payload interface{}
	err     error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, msgType string, payload interface{}) error {
	f.msgType, f.payload = msgType, payload
	return f.err
}

func TestRedisTrainQueue(t *testing.T) {
	e := &fakeEnqueuer{}
	q := NewRedisTrainQueue(e, "stockpulse:queue")
	assert.Equal(t, "redis:stockpulse:queue", q.Topic())

	msg := &models.TrainRequestMessage{JobID: "j1", ItemID: "sku-3"}
	require.NoError(t, q.Enqueue(context.Background(), msg))
	assert.Equal(t, JobTypeTrain, e.msgType)
	assert.Same(t, msg, e.payload)

	e.err = errors.New("redis down")
	err := q.Enqueue(context.Background(), msg)
	assert.ErrorIs(t, err, e.err)
	assert.Contains(t, err.Error(), "sku-3")
}
