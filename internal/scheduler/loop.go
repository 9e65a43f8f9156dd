package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Chronos/internal/clock"
	"github.com/shaiso/Chronos/internal/domain"
	"github.com/shaiso/Chronos/internal/lease"
	"github.com/shaiso/Chronos/internal/repo"
	"github.com/shaiso/Chronos/internal/telemetry"
)

// Default configuration values.
const (
	defaultPollInterval = 5 * time.Second
	defaultBatchSize    = 100

	// minSleep — нижняя граница сна между тиками, защита от busy-poll.
	minSleep = 10 * time.Millisecond
)

// Dispatcher — приёмник триггеров для асинхронной доставки.
//
// TryEnqueue неблокирующий: false означает насыщение, и цикл обязан
// прекратить захват новых schedules до следующего тика (backpressure).
type Dispatcher interface {
	TryEnqueue(evt *domain.TriggerEvent) bool
}

// Loop — цикл планирования одного worker'а.
type Loop struct {
	store      repo.Store
	leases     *lease.Manager
	dispatcher Dispatcher
	clock      clock.Clock
	logger     *slog.Logger

	pollInterval time.Duration
	batchSize    int
}

// Config — конфигурация Loop.
type Config struct {
	Store      repo.Store
	Leases     *lease.Manager
	Dispatcher Dispatcher
	Clock      clock.Clock
	Logger     *slog.Logger

	PollInterval time.Duration // интервал опроса store (default: 5s)
	BatchSize    int           // количество кандидатов за тик (default: 100)
}

// New создаёт Loop.
func New(cfg Config) *Loop {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := cfg.Clock
	if c == nil {
		c = clock.New()
	}

	return &Loop{
		store:        cfg.Store,
		leases:       cfg.Leases,
		dispatcher:   cfg.Dispatcher,
		clock:        c,
		logger:       logger,
		pollInterval: pollInterval,
		batchSize:    batchSize,
	}
}

// Run выполняет вечный цикл планирования до отмены контекста.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("scheduling loop started",
		"worker_id", l.leases.OwnerID(),
		"poll_interval", l.pollInterval,
		"batch_size", l.batchSize,
	)

	for {
		if err := l.Tick(ctx); err != nil {
			// Транзиентные проблемы store не валят worker — отступаем
			// на poll interval и пробуем снова.
			l.logger.Warn("tick failed", "error", err)
		}

		select {
		case <-ctx.Done():
			l.logger.Info("scheduling loop stopped")
			return ctx.Err()
		case <-l.clock.After(l.sleepDuration(ctx)):
		}
	}
}

// Tick выполняет один цикл планирования.
func (l *Loop) Tick(ctx context.Context) error {
	now := l.clock.Now()

	due, err := l.store.ListDue(ctx, now, l.batchSize)
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}

	if len(due) == 0 {
		return nil
	}

	l.logger.Debug("found due schedules", "count", len(due))

	var fired, conflicts int
	for i := range due {
		sched := &due[i]

		ok, err := l.processSchedule(ctx, sched)
		switch {
		case errors.Is(err, errDispatcherSaturated):
			// Захват приостанавливается до следующего тика.
			l.logger.Warn("dispatcher saturated, pausing claims",
				"claimed", fired,
				"pending", len(due)-i,
			)
			return nil
		case errors.Is(err, repo.ErrVersionConflict):
			// Другой worker выиграл гонку — не ошибка.
			conflicts++
			telemetry.LeaseConflictsTotal.Inc()
			continue
		case err != nil:
			l.logger.Error("failed to process schedule",
				"schedule_id", sched.ID,
				"schedule_name", sched.Name,
				"error", err,
			)
			continue
		}

		if ok {
			fired++
		}
	}

	l.logger.Info("tick completed",
		"due", len(due),
		"fired", fired,
		"lost_races", conflicts,
	)

	return nil
}

// processSchedule обрабатывает одного кандидата.
// Возвращает true, если срабатывание зафиксировано.
func (l *Loop) processSchedule(ctx context.Context, sched *domain.Schedule) (bool, error) {
	held, err := l.leases.Acquire(ctx, sched)
	if err != nil {
		return false, err
	}

	// fire_time триггера — намеченное время, не показания часов.
	fireTime := *sched.NextFireAt

	evt := &domain.TriggerEvent{
		ScheduleID:   sched.ID,
		ScheduleName: sched.Name,
		Action:       sched.Action,
		FireTime:     fireTime,
	}

	if !l.dispatcher.TryEnqueue(evt) {
		// Кандидат возвращается в общий пул нетронутым.
		if err := l.leases.Release(ctx, held); err != nil {
			l.logger.Warn("failed to release lease",
				"schedule_id", sched.ID,
				"error", err,
			)
		}
		return false, errDispatcherSaturated
	}

	outcome := l.fireOutcome(sched, fireTime)

	// Долгий цикл не должен пережить свой lease: продлеваем при
	// приближении к истечению, потеря lease запрещает запись.
	if l.leases.NeedsRenewal(held) {
		if err := l.leases.Renew(ctx, held); err != nil {
			l.logger.Warn("lease lost during processing, abandoning update",
				"schedule_id", sched.ID,
				"error", err,
			)
			return false, nil
		}
	}

	if _, err := l.store.UpdateAfterFire(ctx, sched.ID, held.Version, outcome); err != nil {
		if errors.Is(err, repo.ErrVersionConflict) || errors.Is(err, repo.ErrNotFound) {
			// Владение потеряно в середине цикла: никакой повторной
			// попытки, реконсиляцию выполнит recovery manager.
			l.logger.Debug("ownership lost mid-cycle, abandoning update",
				"schedule_id", sched.ID,
			)
			return false, nil
		}
		return false, fmt.Errorf("update after fire: %w", err)
	}

	telemetry.FiresTotal.Inc()

	l.logger.Info("schedule fired",
		"schedule_id", sched.ID,
		"schedule_name", sched.Name,
		"fire_time", fireTime,
		"next_state", outcome.State,
	)

	return true, nil
}

// fireOutcome вычисляет состояние schedule после срабатывания.
func (l *Loop) fireOutcome(sched *domain.Schedule, fireTime time.Time) repo.FireOutcome {
	if sched.IsOneShot() {
		return repo.FireOutcome{State: domain.StateCompleted, FiredAt: fireTime}
	}

	var remaining *int
	if sched.RepeatCountRemaining != nil {
		left := *sched.RepeatCountRemaining - 1
		if left <= 0 {
			zero := 0
			return repo.FireOutcome{
				State:                domain.StateCompleted,
				RepeatCountRemaining: &zero,
				FiredAt:              fireTime,
			}
		}
		remaining = &left
	}

	next, err := NextOccurrence(sched, fireTime)
	if err != nil {
		// Некорректный recurrence — немедленно FAILED, без retry.
		// Исправление остаётся за внешним редактированием schedule.
		return repo.FireOutcome{
			State:   domain.StateFailed,
			FiredAt: fireTime,
			Error:   err.Error(),
		}
	}

	return repo.FireOutcome{
		State:                domain.StateActive,
		NextFireAt:           &next,
		RepeatCountRemaining: remaining,
		FiredAt:              fireTime,
	}
}

// sleepDuration возвращает время сна до следующего тика:
// min(до ближайшего next_fire_at, poll interval), но не меньше minSleep.
//
// Ближайшее время в прошлом не сокращает сон: такой schedule либо
// обрабатывается другим worker'ом, либо ждёт следующего тика после
// насыщения — частый опрос здесь ничего не ускорит.
func (l *Loop) sleepDuration(ctx context.Context) time.Duration {
	sleep := l.pollInterval

	earliest, err := l.store.EarliestNextFire(ctx)
	if err != nil {
		l.logger.Debug("failed to query earliest next fire", "error", err)
		return sleep
	}

	if earliest != nil {
		if until := earliest.Sub(l.clock.Now()); until > 0 && until < sleep {
			sleep = until
		}
	}

	if sleep < minSleep {
		sleep = minSleep
	}
	return sleep
}
