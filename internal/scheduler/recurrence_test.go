package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/shaiso/Chronos/internal/domain"
)

// --- NextOccurrence ---

func TestNextOccurrence_IntervalNoDrift(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &domain.Schedule{IntervalSec: 60}

	// Якорь — предыдущий next_fire_at, а не момент обработки:
	// после N срабатываний время равно ровно T0 + N*60s.
	prev := t0
	for n := 1; n <= 5; n++ {
		next, err := NextOccurrence(s, prev)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := t0.Add(time.Duration(n) * time.Minute)
		if !next.Equal(want) {
			t.Fatalf("occurrence %d: expected %v, got %v", n, want, next)
		}
		prev = next
	}
}

func TestNextOccurrence_Cron(t *testing.T) {
	s := &domain.Schedule{CronExpr: "0 9 * * *", Timezone: "UTC"}

	prev := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	next, err := NextOccurrence(s, prev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestNextOccurrence_CronTimezone(t *testing.T) {
	s := &domain.Schedule{CronExpr: "0 9 * * *", Timezone: "Europe/Moscow"}

	// 9:00 по Москве == 6:00 UTC
	prev := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	next, err := NextOccurrence(s, prev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
	if next.Location() != time.UTC {
		t.Error("occurrences should be returned in UTC")
	}
}

func TestNextOccurrence_OneShotExhausted(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &domain.Schedule{FireAt: &at}

	if _, err := NextOccurrence(s, at); !errors.Is(err, ErrRecurrenceExhausted) {
		t.Errorf("expected ErrRecurrenceExhausted, got %v", err)
	}
}

func TestNextOccurrence_NoRecurrence(t *testing.T) {
	s := &domain.Schedule{}
	if _, err := NextOccurrence(s, time.Now()); !errors.Is(err, ErrInvalidRecurrence) {
		t.Errorf("expected ErrInvalidRecurrence, got %v", err)
	}
}

// --- FirstOccurrence ---

func TestFirstOccurrence_OneShot(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	at := now.Add(time.Hour)
	s := &domain.Schedule{FireAt: &at}

	first, err := FirstOccurrence(s, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first.Equal(at) {
		t.Errorf("expected %v, got %v", at, first)
	}

	// fire_at в прошлом отклоняется при создании
	past := now.Add(-time.Hour)
	s.FireAt = &past
	if _, err := FirstOccurrence(s, now); !errors.Is(err, ErrInvalidRecurrence) {
		t.Errorf("expected ErrInvalidRecurrence, got %v", err)
	}
}

func TestFirstOccurrence_Interval(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &domain.Schedule{IntervalSec: 300}

	first, err := FirstOccurrence(s, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first.Equal(now.Add(5 * time.Minute)) {
		t.Errorf("expected %v, got %v", now.Add(5*time.Minute), first)
	}
}

// --- NextAfter ---

func TestNextAfter_IntervalPreservesPhase(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &domain.Schedule{IntervalSec: 600} // 10 минут

	// Worker лежал 25 минут: пропущены T0, T0+10m, T0+20m.
	// Следующее срабатывание — T0+30m, фаза сохранена.
	after := t0.Add(25 * time.Minute)
	next, err := NextAfter(s, t0, after)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.Equal(t0.Add(30 * time.Minute)) {
		t.Errorf("expected %v, got %v", t0.Add(30*time.Minute), next)
	}
}

func TestNextAfter_IntervalExactBoundary(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &domain.Schedule{IntervalSec: 600}

	// after совпадает с занятием сетки: следующее строго после него
	after := t0.Add(20 * time.Minute)
	next, err := NextAfter(s, t0, after)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.Equal(t0.Add(30 * time.Minute)) {
		t.Errorf("expected %v, got %v", t0.Add(30*time.Minute), next)
	}
}

func TestNextAfter_PrevStillFuture(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &domain.Schedule{IntervalSec: 600}

	// Намеченное срабатывание ещё впереди — ничего не пропущено
	next, err := NextAfter(s, t0, t0.Add(-time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.Equal(t0) {
		t.Errorf("expected %v, got %v", t0, next)
	}
}

func TestNextAfter_OneShot(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &domain.Schedule{FireAt: &at}

	if _, err := NextAfter(s, at, at.Add(time.Hour)); !errors.Is(err, ErrRecurrenceExhausted) {
		t.Errorf("expected ErrRecurrenceExhausted, got %v", err)
	}
}

// --- ValidateRecurrence ---

func TestValidateRecurrence(t *testing.T) {
	at := time.Now()

	cases := []struct {
		name    string
		s       domain.Schedule
		wantErr bool
	}{
		{"one-shot", domain.Schedule{FireAt: &at}, false},
		{"interval", domain.Schedule{IntervalSec: 30}, false},
		{"cron", domain.Schedule{CronExpr: "*/5 * * * *"}, false},
		{"cron with timezone", domain.Schedule{CronExpr: "0 9 * * *", Timezone: "Europe/Moscow"}, false},
		{"bad cron", domain.Schedule{CronExpr: "not a cron"}, true},
		{"six fields", domain.Schedule{CronExpr: "0 0 9 * * *"}, true},
		{"bad timezone", domain.Schedule{IntervalSec: 30, Timezone: "Mars/Olympus"}, true},
		{"nothing set", domain.Schedule{}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateRecurrence(&tc.s)
			if tc.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
