package mq

import (
	"context"
	"log/slog"

	"github.com/shaiso/Chronos/internal/domain"
)

// HistorySink публикует итоги доставок в RabbitMQ.
//
// Промежуточные попытки (RETRYING) не публикуются: история содержит
// только финальные исходы. Ошибки публикации не останавливают
// dispatcher — история вспомогательна.
type HistorySink struct {
	publisher *Publisher
	logger    *slog.Logger
}

// NewHistorySink создаёт новый HistorySink.
func NewHistorySink(publisher *Publisher, logger *slog.Logger) *HistorySink {
	return &HistorySink{
		publisher: publisher,
		logger:    logger,
	}
}

// Record публикует исход доставки.
func (s *HistorySink) Record(ctx context.Context, evt *domain.TriggerEvent) {
	var err error

	switch evt.Outcome {
	case domain.OutcomeDelivered:
		err = s.publisher.PublishTriggerFired(ctx, evt)
	case domain.OutcomeFailed:
		err = s.publisher.PublishTriggerFailed(ctx, evt)
	default:
		return
	}

	if err != nil {
		s.logger.Warn("failed to publish trigger event",
			"schedule_id", evt.ScheduleID,
			"outcome", evt.Outcome,
			"error", err,
		)
	}
}
