package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Chronos/internal/domain"
)

const scheduleColumns = `id, name, fire_at, cron_expr, interval_sec, repeat_count_remaining,
	       timezone, action, state, next_fire_at, owner, lease_expiry, version,
	       recovery_policy, last_fired_at, last_error, created_at, updated_at`

// ScheduleRepo — Postgres-реализация Store.
//
// Все условные записи выражены одним и тем же приёмом:
// UPDATE ... WHERE id = $1 AND version = $2; ноль затронутых строк
// означает либо проигранную гонку (ErrVersionConflict), либо
// отсутствие записи (ErrNotFound) — различаются контрольным SELECT.
type ScheduleRepo struct {
	pool *pgxpool.Pool
}

// NewScheduleRepo создаёт новый ScheduleRepo.
func NewScheduleRepo(pool *pgxpool.Pool) *ScheduleRepo {
	return &ScheduleRepo{pool: pool}
}

// Create сохраняет новый schedule с version = 1.
func (r *ScheduleRepo) Create(ctx context.Context, s *domain.Schedule) error {
	actionJSON, err := json.Marshal(s.Action)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}

	s.Version = 1

	query := `
		INSERT INTO schedules (id, name, fire_at, cron_expr, interval_sec,
		                       repeat_count_remaining, timezone, action, state,
		                       next_fire_at, owner, lease_expiry, version,
		                       recovery_policy, last_fired_at, last_error,
		                       created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, '', NULL, $11, $12, NULL, '', $13, $14)
	`
	_, err = r.pool.Exec(ctx, query,
		s.ID,
		nullString(s.Name),
		s.FireAt,
		nullString(s.CronExpr),
		nullInt(s.IntervalSec),
		s.RepeatCountRemaining,
		s.Timezone,
		actionJSON,
		s.State,
		s.NextFireAt,
		s.Version,
		nullString(string(s.RecoveryPolicy)),
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert schedule: %w", wrapUnavailable(err))
	}
	return nil
}

// GetByID возвращает schedule по ID.
func (r *ScheduleRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = $1`
	return scanSchedule(r.pool.QueryRow(ctx, query, id))
}

// List возвращает schedules с фильтрацией.
func (r *ScheduleRepo) List(ctx context.Context, filter ScheduleFilter) ([]domain.Schedule, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE ($1::text IS NULL OR state = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	var state *string
	if filter.State != nil {
		s := string(*filter.State)
		state = &s
	}

	rows, err := r.pool.Query(ctx, query, state, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", wrapUnavailable(err))
	}
	defer rows.Close()

	return collectSchedules(rows)
}

// ListDue возвращает кандидатов на срабатывание в детерминированном порядке.
func (r *ScheduleRepo) ListDue(ctx context.Context, before time.Time, limit int) ([]domain.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE state = 'ACTIVE'
		  AND next_fire_at IS NOT NULL
		  AND next_fire_at <= $1
		  AND (owner = '' OR lease_expiry < $1)
		ORDER BY next_fire_at ASC, id ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list due schedules: %w", wrapUnavailable(err))
	}
	defer rows.Close()

	return collectSchedules(rows)
}

// EarliestNextFire возвращает ближайший next_fire_at среди ACTIVE schedules.
func (r *ScheduleRepo) EarliestNextFire(ctx context.Context) (*time.Time, error) {
	var earliest *time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT MIN(next_fire_at) FROM schedules WHERE state = 'ACTIVE'`,
	).Scan(&earliest)
	if err != nil {
		return nil, fmt.Errorf("earliest next fire: %w", wrapUnavailable(err))
	}
	return earliest, nil
}

// CompareAndSwapLease — условная запись владения.
func (r *ScheduleRepo) CompareAndSwapLease(ctx context.Context, id uuid.UUID, expectedVersion int64, owner string, expiry *time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE schedules
		SET owner = $3, lease_expiry = $4, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2 AND state = 'ACTIVE'
	`, id, expectedVersion, owner, expiry)
	if err != nil {
		return 0, fmt.Errorf("cas lease: %w", wrapUnavailable(err))
	}
	if result.RowsAffected() == 0 {
		return 0, r.casFailure(ctx, id)
	}
	return expectedVersion + 1, nil
}

// UpdateAfterFire фиксирует исход цикла срабатывания и снимает lease.
func (r *ScheduleRepo) UpdateAfterFire(ctx context.Context, id uuid.UUID, expectedVersion int64, outcome FireOutcome) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE schedules
		SET state = $3, next_fire_at = $4, repeat_count_remaining = $5,
		    last_fired_at = $6, last_error = $7,
		    owner = '', lease_expiry = NULL,
		    version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
	`, id, expectedVersion,
		outcome.State,
		outcome.NextFireAt,
		outcome.RepeatCountRemaining,
		outcome.FiredAt,
		outcome.Error,
	)
	if err != nil {
		return 0, fmt.Errorf("update after fire: %w", wrapUnavailable(err))
	}
	if result.RowsAffected() == 0 {
		return 0, r.casFailure(ctx, id)
	}
	return expectedVersion + 1, nil
}

// Update перезаписывает редактируемые поля schedule (условно по s.Version).
func (r *ScheduleRepo) Update(ctx context.Context, s *domain.Schedule) error {
	actionJSON, err := json.Marshal(s.Action)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE schedules
		SET name = $3, fire_at = $4, cron_expr = $5, interval_sec = $6,
		    repeat_count_remaining = $7, timezone = $8, action = $9,
		    state = $10, next_fire_at = $11, recovery_policy = $12,
		    last_error = $13, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
	`, s.ID, s.Version,
		nullString(s.Name),
		s.FireAt,
		nullString(s.CronExpr),
		nullInt(s.IntervalSec),
		s.RepeatCountRemaining,
		s.Timezone,
		actionJSON,
		s.State,
		s.NextFireAt,
		nullString(string(s.RecoveryPolicy)),
		s.LastError,
	)
	if err != nil {
		return fmt.Errorf("update schedule: %w", wrapUnavailable(err))
	}
	if result.RowsAffected() == 0 {
		return r.casFailure(ctx, s.ID)
	}

	s.Version++
	return nil
}

// Delete удаляет schedule.
func (r *ScheduleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", wrapUnavailable(err))
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// casFailure различает проигранную гонку и отсутствие записи.
func (r *ScheduleRepo) casFailure(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM schedules WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check schedule exists: %w", wrapUnavailable(err))
	}
	if !exists {
		return ErrNotFound
	}
	return ErrVersionConflict
}

// --- Helpers ---

func collectSchedules(rows pgx.Rows) ([]domain.Schedule, error) {
	var schedules []domain.Schedule
	for rows.Next() {
		s, err := scanScheduleFromRows(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *s)
	}
	return schedules, rows.Err()
}

func scanSchedule(row pgx.Row) (*domain.Schedule, error) {
	s, err := scanScheduleRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan schedule: %w", err)
	}
	return s, nil
}

func scanScheduleFromRows(rows pgx.Rows) (*domain.Schedule, error) {
	s, err := scanScheduleRow(rows)
	if err != nil {
		return nil, fmt.Errorf("scan schedule: %w", err)
	}
	return s, nil
}

func scanScheduleRow(row pgx.Row) (*domain.Schedule, error) {
	var s domain.Schedule
	var name, cronExpr, recoveryPolicy *string
	var intervalSec *int
	var actionJSON []byte

	err := row.Scan(
		&s.ID,
		&name,
		&s.FireAt,
		&cronExpr,
		&intervalSec,
		&s.RepeatCountRemaining,
		&s.Timezone,
		&actionJSON,
		&s.State,
		&s.NextFireAt,
		&s.Owner,
		&s.LeaseExpiry,
		&s.Version,
		&recoveryPolicy,
		&s.LastFiredAt,
		&s.LastError,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if name != nil {
		s.Name = *name
	}
	if cronExpr != nil {
		s.CronExpr = *cronExpr
	}
	if intervalSec != nil {
		s.IntervalSec = *intervalSec
	}
	if recoveryPolicy != nil {
		s.RecoveryPolicy = domain.RecoveryPolicy(*recoveryPolicy)
	}
	if actionJSON != nil {
		if err := json.Unmarshal(actionJSON, &s.Action); err != nil {
			return nil, fmt.Errorf("unmarshal action: %w", err)
		}
	}

	return &s, nil
}

// nullString возвращает nil для пустой строки.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullInt возвращает nil для нулевого int.
func nullInt(i int) *int {
	if i == 0 {
		return nil
	}
	return &i
}

// wrapUnavailable помечает инфраструктурные ошибки как ErrUnavailable,
// чтобы вызывающие могли отличить их от логических и отступить с retry.
func wrapUnavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
