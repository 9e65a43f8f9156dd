package dispatch

import (
	"context"

	"github.com/shaiso/Chronos/internal/domain"
)

// Sink — внешний приёмник истории доставок.
//
// Dispatcher сообщает сюда исход каждой попытки; хранение и схема
// истории — ответственность внешнего потребителя, не этой системы.
// Реализация обязана быть быстрой и не возвращать ошибок наружу:
// доставка не должна зависеть от доступности истории.
type Sink interface {
	Record(ctx context.Context, evt *domain.TriggerEvent)
}

// NopSink — заглушка для запуска без приёмника истории.
type NopSink struct{}

func (NopSink) Record(context.Context, *domain.TriggerEvent) {}
