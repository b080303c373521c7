package usecase

import (
	"context"
	"encoding/json"

	"StockPulse/internal/domain/errs"
	"StockPulse/internal/domain/models"
	"StockPulse/internal/repository"
	pkgkafka "StockPulse/pkg/kafka"
	"StockPulse/pkg/logger"
	"StockPulse/pkg/queue"
)

// KafkaTrainHandler consumes queued training requests.
type KafkaTrainHandler struct {
	topic string
	uc    *ForecastUseCase
	log   *logger.Logger
}

func NewKafkaTrainHandler(topic string, uc *ForecastUseCase, log *logger.Logger) *KafkaTrainHandler {
	return &KafkaTrainHandler{topic: topic, uc: uc, log: log}
}

func (h *KafkaTrainHandler) Topic() string { return h.topic }

// Handle returns an error only for failures worth retrying. Malformed
// messages and rejected input are logged and dropped.
func (h *KafkaTrainHandler) Handle(ctx context.Context, b []byte) error {
	return trainFromMessage(ctx, h.uc, h.log, b)
}

// QueueTrainJob runs queued training requests from the Redis job queue.
type QueueTrainJob struct {
	uc  *ForecastUseCase
	log *logger.Logger
}

func NewQueueTrainJob(uc *ForecastUseCase, log *logger.Logger) *QueueTrainJob {
	return &QueueTrainJob{uc: uc, log: log}
}

func (j *QueueTrainJob) Type() string { return repository.JobTypeTrain }

func (j *QueueTrainJob) Handle(ctx context.Context, payload json.RawMessage) error {
	return trainFromMessage(ctx, j.uc, j.log, payload)
}

func trainFromMessage(ctx context.Context, uc *ForecastUseCase, log *logger.Logger, b []byte) error {
	var m models.TrainRequestMessage
	if err := json.Unmarshal(b, &m); err != nil {
		log.Warn("dropping malformed train request", logger.Error(err))
		return nil
	}

	out := uc.Train(ctx, m.ItemID, m.SalesData)
	if out.OK() {
		log.Info("background training finished", logger.String("job_id", m.JobID), logger.String("item_id", m.ItemID))
		return nil
	}

	switch out.Kind {
	case errs.KindValidation, errs.KindNotFound, errs.KindFit:
		log.Warn("dropping train request",
			logger.String("job_id", m.JobID),
			logger.String("item_id", m.ItemID),
			logger.String("kind", string(out.Kind)),
			logger.String("reason", out.Message))
		return nil
	}
	return out.Err()
}

var (
	_ pkgkafka.MessageHandler = (*KafkaTrainHandler)(nil)
	_ queue.Job               = (*QueueTrainJob)(nil)
)
