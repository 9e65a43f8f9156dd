package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Chronos/internal/clock"
	"github.com/shaiso/Chronos/internal/domain"
	"github.com/shaiso/Chronos/internal/repo"
	"github.com/shaiso/Chronos/internal/scheduler"
	"github.com/shaiso/Chronos/internal/telemetry"
)

// Default configuration values.
const (
	defaultSweepInterval = time.Minute
	defaultBatchSize     = 100
)

// Manager — recovery manager одного worker-процесса.
type Manager struct {
	store  repo.Store
	clock  clock.Clock
	logger *slog.Logger

	policy        domain.RecoveryPolicy
	sweepInterval time.Duration
	batchSize     int
}

// Config — конфигурация Manager.
type Config struct {
	Store  repo.Store
	Clock  clock.Clock
	Logger *slog.Logger

	// Policy — глобальная политика восстановления. Schedule может
	// переопределить её своим RecoveryPolicy.
	Policy domain.RecoveryPolicy

	// SweepInterval — период фонового sweep (default: 1m).
	SweepInterval time.Duration

	// BatchSize — количество кандидатов за один sweep (default: 100).
	BatchSize int
}

// NewManager создаёт Manager.
func NewManager(cfg Config) *Manager {
	policy := cfg.Policy
	if !policy.Valid() {
		policy = domain.RecoverFireImmediately
	}

	sweepInterval := cfg.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	c := cfg.Clock
	if c == nil {
		c = clock.New()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		store:         cfg.Store,
		clock:         c,
		logger:        logger,
		policy:        policy,
		sweepInterval: sweepInterval,
		batchSize:     batchSize,
	}
}

// Run выполняет sweep при старте и затем периодически до отмены контекста.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Info("recovery manager started",
		"policy", m.policy,
		"sweep_interval", m.sweepInterval,
	)

	// Первый sweep сразу: подбираем то, что осталось после рестарта.
	if err := m.Sweep(ctx); err != nil {
		m.logger.Warn("startup sweep failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("recovery manager stopped")
			return ctx.Err()
		case <-m.clock.After(m.sweepInterval):
			if err := m.Sweep(ctx); err != nil {
				m.logger.Warn("sweep failed", "error", err)
			}
		}
	}
}

// Sweep выполняет один проход восстановления.
func (m *Manager) Sweep(ctx context.Context) error {
	now := m.clock.Now()

	candidates, err := m.store.ListDue(ctx, now, m.batchSize)
	if err != nil {
		return fmt.Errorf("list overdue schedules: %w", err)
	}

	var recovered int
	for i := range candidates {
		sched := &candidates[i]

		// Восстановлению подлежат только сироты: schedule с выданным
		// и истёкшим lease. Due без владельца — обычный кандидат
		// scheduling loop'а, его нельзя трогать.
		if !sched.Orphaned(now) {
			continue
		}

		policy := sched.RecoveryPolicy
		if !policy.Valid() {
			policy = m.policy
		}

		ok, err := m.recover(ctx, sched, policy, now)
		if err != nil {
			if errors.Is(err, repo.ErrVersionConflict) || errors.Is(err, repo.ErrNotFound) {
				// Другой worker уже подхватил кандидата.
				continue
			}
			m.logger.Error("failed to recover schedule",
				"schedule_id", sched.ID,
				"policy", policy,
				"error", err,
			)
			continue
		}

		if ok {
			recovered++
			telemetry.RecoveredTotal.WithLabelValues(string(policy)).Inc()
		}
	}

	if recovered > 0 {
		m.logger.Info("sweep completed",
			"candidates", len(candidates),
			"recovered", recovered,
		)
	}

	return nil
}

// recover применяет политику к одному кандидату.
// Возвращает true, если состояние schedule было изменено.
func (m *Manager) recover(ctx context.Context, sched *domain.Schedule, policy domain.RecoveryPolicy, now time.Time) (bool, error) {
	switch policy {
	case domain.RecoverFireImmediately:
		return m.fireImmediately(ctx, sched)
	case domain.RecoverSkipToNext:
		return m.skipToNext(ctx, sched, now)
	default:
		return false, fmt.Errorf("unknown recovery policy %q", policy)
	}
}

// fireImmediately снимает устаревшее владение: schedule возвращается
// в общий пул due и срабатывает наравне с остальными.
func (m *Manager) fireImmediately(ctx context.Context, sched *domain.Schedule) (bool, error) {
	if _, err := m.store.CompareAndSwapLease(ctx, sched.ID, sched.Version, "", nil); err != nil {
		return false, err
	}

	m.logger.Info("reclaimed orphaned schedule",
		"schedule_id", sched.ID,
		"schedule_name", sched.Name,
		"stale_owner", sched.Owner,
		"missed_fire_time", sched.NextFireAt,
	)
	return true, nil
}

// skipToNext переводит next_fire_at на первое будущее срабатывание,
// отбрасывая пропущенные, затем снимает устаревшее владение.
func (m *Manager) skipToNext(ctx context.Context, sched *domain.Schedule, now time.Time) (bool, error) {
	staleOwner := sched.Owner

	next, err := scheduler.NextAfter(sched, *sched.NextFireAt, now)
	if errors.Is(err, scheduler.ErrRecurrenceExhausted) {
		// One-shot, чьё единственное срабатывание пропущено и по
		// политике отбрасывается: будущих срабатываний нет.
		sched.State = domain.StateCompleted
		sched.NextFireAt = nil
		if err := m.store.Update(ctx, sched); err != nil {
			return false, err
		}
		m.logger.Info("missed one-shot discarded",
			"schedule_id", sched.ID,
			"schedule_name", sched.Name,
		)
		return true, nil
	}
	if err != nil {
		// Некорректный recurrence: schedule переводится в FAILED,
		// как и на обычном пути вычисления.
		sched.State = domain.StateFailed
		sched.LastError = err.Error()
		sched.NextFireAt = nil
		if err := m.store.Update(ctx, sched); err != nil {
			return false, err
		}
		return true, nil
	}

	// Сначала next_fire_at, затем снятие lease: между двумя записями
	// schedule не должен быть виден как due со старым временем.
	missed := *sched.NextFireAt
	sched.NextFireAt = &next
	if err := m.store.Update(ctx, sched); err != nil {
		return false, err
	}

	if _, err := m.store.CompareAndSwapLease(ctx, sched.ID, sched.Version, "", nil); err != nil {
		return false, err
	}

	m.logger.Info("skipped missed occurrences",
		"schedule_id", sched.ID,
		"schedule_name", sched.Name,
		"stale_owner", staleOwner,
		"missed_fire_time", missed,
		"next_fire_at", next,
	)
	return true, nil
}
