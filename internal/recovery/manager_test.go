package recovery

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Chronos/internal/clock"
	"github.com/shaiso/Chronos/internal/domain"
	"github.com/shaiso/Chronos/internal/repo"
)

// newOrphan создаёт schedule с просроченными next_fire_at и lease —
// владелец умер, не завершив цикл срабатывания.
func newOrphan(nextFireAt, leaseExpiry time.Time) *domain.Schedule {
	return &domain.Schedule{
		ID:          uuid.New(),
		Name:        "orphan",
		IntervalSec: 600,
		Timezone:    "UTC",
		Action: domain.Action{
			Kind: domain.ActionKindHTTP,
			HTTP: &domain.HTTPAction{URL: "https://example.com/hook"},
		},
		State:       domain.StateActive,
		NextFireAt:  &nextFireAt,
		Owner:       "dead-worker",
		LeaseExpiry: &leaseExpiry,
	}
}

func TestSweep_FireImmediatelyReclaimsOrphan(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemory()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(now)

	fireTime := now.Add(-5 * time.Minute)
	orphan := newOrphan(fireTime, now.Add(-time.Minute))
	if err := store.Create(ctx, orphan); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := NewManager(Config{
		Store:  store,
		Clock:  clk,
		Policy: domain.RecoverFireImmediately,
	})
	if err := m.Sweep(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := store.GetByID(ctx, orphan.ID)
	if got.Owner != "" {
		t.Errorf("stale owner should be cleared, got %q", got.Owner)
	}
	if got.LeaseExpiry != nil {
		t.Error("lease expiry should be cleared")
	}
	// Пропущенное время сохраняется: schedule срабатывает немедленно
	if got.NextFireAt == nil || !got.NextFireAt.Equal(fireTime) {
		t.Errorf("expected next_fire_at %v, got %v", fireTime, got.NextFireAt)
	}
	if got.Version != 2 {
		t.Errorf("expected version 2 after reclaim, got %d", got.Version)
	}
}

func TestSweep_FireImmediatelyIgnoresUnowned(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemory()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(now)

	// Просрочен, но без lease: обычный кандидат scheduling loop'а
	fireTime := now.Add(-time.Minute)
	sched := newOrphan(fireTime, now)
	sched.Owner = ""
	sched.LeaseExpiry = nil
	if err := store.Create(ctx, sched); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := NewManager(Config{
		Store:  store,
		Clock:  clk,
		Policy: domain.RecoverFireImmediately,
	})
	if err := m.Sweep(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := store.GetByID(ctx, sched.ID)
	if got.Version != 1 {
		t.Errorf("unowned candidate must be untouched, got version %d", got.Version)
	}
}

func TestSweep_SkipToNextIgnoresUnowned(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemory()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(now)

	// Due секунду назад, lease никогда не выдавался: это здоровый
	// кандидат scheduling loop'а, а не сирота
	fireTime := now.Add(-time.Second)
	sched := newOrphan(fireTime, now)
	sched.Owner = ""
	sched.LeaseExpiry = nil
	if err := store.Create(ctx, sched); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := NewManager(Config{
		Store:  store,
		Clock:  clk,
		Policy: domain.RecoverSkipToNext,
	})
	if err := m.Sweep(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := store.GetByID(ctx, sched.ID)
	if got.NextFireAt == nil || !got.NextFireAt.Equal(fireTime) {
		t.Errorf("pending occurrence must not be skipped, got next_fire_at %v", got.NextFireAt)
	}
	if got.Version != 1 {
		t.Errorf("unowned candidate must be untouched, got version %d", got.Version)
	}
}

func TestSweep_SkipsLiveLease(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemory()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(now)

	// Живой lease: владелец ещё работает, трогать нельзя
	sched := newOrphan(now.Add(-time.Minute), now.Add(25*time.Second))
	if err := store.Create(ctx, sched); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := NewManager(Config{
		Store:  store,
		Clock:  clk,
		Policy: domain.RecoverFireImmediately,
	})
	if err := m.Sweep(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := store.GetByID(ctx, sched.ID)
	if got.Owner != "dead-worker" {
		t.Errorf("live lease must not be reclaimed, got owner %q", got.Owner)
	}
}

func TestSweep_SkipToNextAdvancesPhase(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemory()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// now = T0 + 2.5 интервала: пропущены срабатывания на T0, T0+I, T0+2I
	now := t0.Add(25 * time.Minute)
	clk := clock.NewFake(now)

	orphan := newOrphan(t0, now.Add(-time.Minute))
	if err := store.Create(ctx, orphan); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := NewManager(Config{
		Store:  store,
		Clock:  clk,
		Policy: domain.RecoverSkipToNext,
	})
	if err := m.Sweep(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := store.GetByID(ctx, orphan.ID)
	// Фаза сохраняется: следующее срабатывание T0+3I, а не now+I
	want := t0.Add(30 * time.Minute)
	if got.NextFireAt == nil || !got.NextFireAt.Equal(want) {
		t.Errorf("expected next_fire_at %v, got %v", want, got.NextFireAt)
	}
	if got.Owner != "" {
		t.Errorf("stale owner should be cleared, got %q", got.Owner)
	}
	if got.State != domain.StateActive {
		t.Errorf("expected ACTIVE, got %s", got.State)
	}
}

func TestSweep_SkipToNextDiscardsMissedOneShot(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemory()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(now)

	fireAt := now.Add(-10 * time.Minute)
	orphan := newOrphan(fireAt, now.Add(-time.Minute))
	orphan.IntervalSec = 0
	orphan.FireAt = &fireAt
	if err := store.Create(ctx, orphan); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := NewManager(Config{
		Store:  store,
		Clock:  clk,
		Policy: domain.RecoverSkipToNext,
	})
	if err := m.Sweep(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := store.GetByID(ctx, orphan.ID)
	if got.State != domain.StateCompleted {
		t.Errorf("missed one-shot should be COMPLETED, got %s", got.State)
	}
	if got.NextFireAt != nil {
		t.Error("completed schedule should have no next_fire_at")
	}
}

func TestSweep_PerSchedulePolicyOverride(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemory()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := t0.Add(15 * time.Minute)
	clk := clock.NewFake(now)

	// Глобально FIRE_IMMEDIATELY, у schedule свой SKIP_TO_NEXT
	orphan := newOrphan(t0, now.Add(-time.Minute))
	orphan.RecoveryPolicy = domain.RecoverSkipToNext
	if err := store.Create(ctx, orphan); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := NewManager(Config{
		Store:  store,
		Clock:  clk,
		Policy: domain.RecoverFireImmediately,
	})
	if err := m.Sweep(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := store.GetByID(ctx, orphan.ID)
	want := t0.Add(20 * time.Minute)
	if got.NextFireAt == nil || !got.NextFireAt.Equal(want) {
		t.Errorf("per-schedule policy should win: expected next_fire_at %v, got %v",
			want, got.NextFireAt)
	}
}
