package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shaiso/Chronos/internal/domain"
)

// cronParser — парсер cron-выражений (стандартные 5 полей).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextOccurrence вычисляет следующее срабатывание повторяющегося
// schedule строго после prev.
//
// Якорем служит именно prev (предыдущий next_fire_at), а не момент
// фактической обработки: для интервала I после N срабатываний
// next_fire_at == T0 + N*I независимо от задержек доставки.
func NextOccurrence(s *domain.Schedule, prev time.Time) (time.Time, error) {
	if s.IsOneShot() {
		return time.Time{}, ErrRecurrenceExhausted
	}

	if s.IsCron() {
		return nextCron(s.CronExpr, s.Timezone, prev)
	}

	if s.IsInterval() {
		return prev.Add(time.Duration(s.IntervalSec) * time.Second).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("%w: neither fire_at, cron_expr nor interval_sec", ErrInvalidRecurrence)
}

// FirstOccurrence вычисляет первое срабатывание нового schedule.
// Используется при создании через API.
func FirstOccurrence(s *domain.Schedule, now time.Time) (time.Time, error) {
	if s.IsOneShot() {
		if !s.FireAt.After(now) {
			return time.Time{}, fmt.Errorf("%w: fire_at is in the past", ErrInvalidRecurrence)
		}
		return s.FireAt.UTC(), nil
	}
	return NextOccurrence(s, now)
}

// NextAfter вычисляет первое срабатывание строго после after,
// сохраняя фазу расписания относительно prev.
//
// Используется recovery policy SKIP_TO_NEXT: пропущенные
// промежуточные срабатывания отбрасываются.
func NextAfter(s *domain.Schedule, prev, after time.Time) (time.Time, error) {
	if s.IsOneShot() {
		return time.Time{}, ErrRecurrenceExhausted
	}

	if s.IsCron() {
		return nextCron(s.CronExpr, s.Timezone, after)
	}

	if s.IsInterval() {
		interval := time.Duration(s.IntervalSec) * time.Second
		if prev.After(after) {
			return prev.UTC(), nil
		}
		missed := after.Sub(prev)/interval + 1
		return prev.Add(missed * interval).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("%w: neither fire_at, cron_expr nor interval_sec", ErrInvalidRecurrence)
}

// ValidateRecurrence проверяет правило повторения при создании schedule.
func ValidateRecurrence(s *domain.Schedule) error {
	switch {
	case s.IsOneShot():
		return nil
	case s.IsCron():
		if _, err := cronParser.Parse(s.CronExpr); err != nil {
			return fmt.Errorf("%w: cron expression %q: %v", ErrInvalidRecurrence, s.CronExpr, err)
		}
	case s.IsInterval():
		// IsInterval уже гарантирует IntervalSec > 0
	default:
		return fmt.Errorf("%w: one of fire_at, cron_expr, interval_sec is required", ErrInvalidRecurrence)
	}

	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("%w: timezone %q: %v", ErrInvalidRecurrence, s.Timezone, err)
		}
	}
	return nil
}

// nextCron вычисляет следующее срабатывание по cron-выражению.
func nextCron(expr, timezone string, from time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: parse cron expression %q: %v", ErrInvalidRecurrence, expr, err)
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		// Невалидный timezone ловится при создании; fallback на UTC
		loc = time.UTC
	}

	next := schedule.Next(from.In(loc))
	return next.UTC(), nil // храним в UTC
}
