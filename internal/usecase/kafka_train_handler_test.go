package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"StockPulse/internal/domain/models"
	"StockPulse/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trainMessage(t *testing.T, itemID string, sales []models.SalesRecord) []byte {
	t.Helper()
	b, err := json.Marshal(models.TrainRequestMessage{JobID: "job-1", ItemID: itemID, SalesData: sales})
	require.NoError(t, err)
	return b
}

func TestKafkaTrainHandlerTrains(t *testing.T) {
	h := newHarness(t)
	handler := NewKafkaTrainHandler("stockpulse.train", h.uc, logger.Nop())
	assert.Equal(t, "stockpulse.train", handler.Topic())

	require.NoError(t, handler.Handle(context.Background(), trainMessage(t, "sku-1", salesRecords(20))))
	assert.Equal(t, models.OutcomeSuccess, h.metrics.ops["train"])
	assert.True(t, h.uc.Predict(context.Background(), "sku-1", 5).OK())
}

func TestKafkaTrainHandlerDropsBadInput(t *testing.T) {
	h := newHarness(t)
	handler := NewKafkaTrainHandler("stockpulse.train", h.uc, logger.Nop())

	assert.NoError(t, handler.Handle(context.Background(), []byte("{not json")))
	assert.NoError(t, handler.Handle(context.Background(), trainMessage(t, "sku-1", nil)))
	assert.Equal(t, models.OutcomeError, h.metrics.ops["train"])
}

func TestKafkaTrainHandlerRetriesInternalFailures(t *testing.T) {
	h := newHarness(t, WithHistory(&fakeHistory{err: errors.New("timeout")}, 30))
	handler := NewKafkaTrainHandler("stockpulse.train", h.uc, logger.Nop())

	err := handler.Handle(context.Background(), trainMessage(t, "sku-1", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestQueueTrainJobSharesHandling(t *testing.T) {
	h := newHarness(t)
	job := NewQueueTrainJob(h.uc, logger.Nop())
	assert.Equal(t, "train", job.Type())

	require.NoError(t, job.Handle(context.Background(), trainMessage(t, "sku-2", salesRecords(20))))
	assert.True(t, h.uc.Predict(context.Background(), "sku-2", 3).OK())
	assert.NoError(t, job.Handle(context.Background(), json.RawMessage(`[]`)))
}
