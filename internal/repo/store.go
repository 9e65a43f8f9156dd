package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Chronos/internal/domain"
)

// Store — durable хранилище schedules.
//
// Единственный примитив координации в системе: каждая мутация
// владения или fire-state проходит через условную запись с
// ожидаемой версией (optimistic concurrency). Отдельного lock
// manager'а нет; ErrVersionConflict — ожидаемый, восстановимый исход.
//
// Реализации: ScheduleRepo (Postgres) и Memory (тесты, локальный запуск).
type Store interface {
	// Create сохраняет новый schedule. Version инициализируется единицей.
	Create(ctx context.Context, s *domain.Schedule) error

	// GetByID возвращает schedule по ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Schedule, error)

	// List возвращает schedules с фильтрацией.
	List(ctx context.Context, filter ScheduleFilter) ([]domain.Schedule, error)

	// ListDue возвращает кандидатов на срабатывание: ACTIVE,
	// next_fire_at <= before, lease отсутствует или истёк к before.
	// Порядок детерминированный: next_fire_at ASC, затем id ASC.
	ListDue(ctx context.Context, before time.Time, limit int) ([]domain.Schedule, error)

	// EarliestNextFire возвращает ближайший next_fire_at среди ACTIVE
	// schedules; nil, если таких нет. Используется loop'ом для сна.
	EarliestNextFire(ctx context.Context) (*time.Time, error)

	// CompareAndSwapLease — условная запись владения. Устанавливает
	// owner и lease_expiry, только если текущая версия равна
	// expectedVersion; возвращает новую версию. Пустой owner с
	// nil expiry снимает lease. Несовпадение — ErrVersionConflict.
	CompareAndSwapLease(ctx context.Context, id uuid.UUID, expectedVersion int64, owner string, expiry *time.Time) (int64, error)

	// UpdateAfterFire фиксирует исход цикла срабатывания: новое
	// next_fire_at или терминальное состояние, снятый lease,
	// инкремент версии. Условная запись по expectedVersion.
	UpdateAfterFire(ctx context.Context, id uuid.UUID, expectedVersion int64, outcome FireOutcome) (int64, error)

	// Update перезаписывает редактируемые поля schedule. Условная
	// запись: версией-ожиданием служит s.Version; при успехе
	// s.Version инкрементируется.
	Update(ctx context.Context, s *domain.Schedule) error

	// Delete удаляет schedule.
	Delete(ctx context.Context, id uuid.UUID) error
}

// ScheduleFilter — параметры фильтрации List.
type ScheduleFilter struct {
	State  *domain.ScheduleState
	Limit  int
	Offset int
}

// FireOutcome — результат одного цикла срабатывания,
// персистируемый через UpdateAfterFire.
type FireOutcome struct {
	// State — новое состояние: ACTIVE для продолжающегося расписания,
	// COMPLETED или FAILED для терминального исхода.
	State domain.ScheduleState

	// NextFireAt — следующее намеченное срабатывание.
	// nil для терминальных состояний.
	NextFireAt *time.Time

	// RepeatCountRemaining — обновлённый счётчик оставшихся
	// срабатываний; nil — без ограничения.
	RepeatCountRemaining *int

	// FiredAt — намеченное fire_time зафиксированного срабатывания.
	FiredAt time.Time

	// Error — текст ошибки при переходе в FAILED.
	Error string
}
