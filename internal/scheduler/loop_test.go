package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Chronos/internal/clock"
	"github.com/shaiso/Chronos/internal/domain"
	"github.com/shaiso/Chronos/internal/lease"
	"github.com/shaiso/Chronos/internal/repo"
)

// fakeDispatcher собирает триггеры; accept=false имитирует насыщение.
type fakeDispatcher struct {
	accept bool
	events []*domain.TriggerEvent
}

func (d *fakeDispatcher) TryEnqueue(evt *domain.TriggerEvent) bool {
	if !d.accept {
		return false
	}
	d.events = append(d.events, evt)
	return true
}

// staleStore отдаёт кандидатов с отставшей версией: у loop'а в руках
// снимок, который успел перезаписать другой worker.
type staleStore struct {
	*repo.Memory
}

func (s *staleStore) ListDue(ctx context.Context, before time.Time, limit int) ([]domain.Schedule, error) {
	due, err := s.Memory.ListDue(ctx, before, limit)
	for i := range due {
		due[i].Version--
	}
	return due, err
}

func newTestLoop(store repo.Store, clk clock.Clock, d Dispatcher) *Loop {
	leases := lease.NewManager(lease.Config{
		Store:   store,
		Clock:   clk,
		OwnerID: "worker-test",
		TTL:     30 * time.Second,
	})
	return New(Config{
		Store:      store,
		Leases:     leases,
		Dispatcher: d,
		Clock:      clk,
	})
}

func newIntervalSchedule(nextFireAt time.Time, intervalSec int) *domain.Schedule {
	return &domain.Schedule{
		ID:          uuid.New(),
		Name:        "test",
		IntervalSec: intervalSec,
		Timezone:    "UTC",
		Action: domain.Action{
			Kind: domain.ActionKindHTTP,
			HTTP: &domain.HTTPAction{URL: "https://example.com/hook"},
		},
		State:      domain.StateActive,
		NextFireAt: &nextFireAt,
	}
}

func TestLoop_FiresDueSchedule(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemory()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(now)
	d := &fakeDispatcher{accept: true}
	loop := newTestLoop(store, clk, d)

	fireTime := now.Add(-time.Second)
	sched := newIntervalSchedule(fireTime, 60)
	if err := store.Create(ctx, sched); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := loop.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(d.events) != 1 {
		t.Fatalf("expected 1 trigger, got %d", len(d.events))
	}
	evt := d.events[0]
	if evt.ScheduleID != sched.ID {
		t.Error("trigger should reference the fired schedule")
	}
	// fire_time — намеченное время, не показания часов
	if !evt.FireTime.Equal(fireTime) {
		t.Errorf("expected fire_time %v, got %v", fireTime, evt.FireTime)
	}

	got, _ := store.GetByID(ctx, sched.ID)
	if got.State != domain.StateActive {
		t.Errorf("recurring schedule should stay ACTIVE, got %s", got.State)
	}
	// Без drift: следующее срабатывание от намеченного, не от now
	want := fireTime.Add(time.Minute)
	if got.NextFireAt == nil || !got.NextFireAt.Equal(want) {
		t.Errorf("expected next_fire_at %v, got %v", want, got.NextFireAt)
	}
	if got.Owner != "" {
		t.Errorf("lease should be released after commit, got owner %q", got.Owner)
	}
	if got.LastFiredAt == nil || !got.LastFiredAt.Equal(fireTime) {
		t.Errorf("expected last_fired_at %v, got %v", fireTime, got.LastFiredAt)
	}
}

func TestLoop_NothingDue(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemory()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(now)
	d := &fakeDispatcher{accept: true}
	loop := newTestLoop(store, clk, d)

	sched := newIntervalSchedule(now.Add(time.Hour), 60)
	if err := store.Create(ctx, sched); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := loop.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.events) != 0 {
		t.Errorf("future schedule must not fire, got %d triggers", len(d.events))
	}

	got, _ := store.GetByID(ctx, sched.ID)
	if got.Version != 1 {
		t.Errorf("schedule should be untouched, got version %d", got.Version)
	}
}

func TestLoop_OneShotCompletes(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemory()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(now)
	d := &fakeDispatcher{accept: true}
	loop := newTestLoop(store, clk, d)

	fireTime := now.Add(-time.Second)
	sched := &domain.Schedule{
		ID:       uuid.New(),
		Name:     "once",
		FireAt:   &fireTime,
		Timezone: "UTC",
		Action: domain.Action{
			Kind: domain.ActionKindHTTP,
			HTTP: &domain.HTTPAction{URL: "https://example.com/hook"},
		},
		State:      domain.StateActive,
		NextFireAt: &fireTime,
	}
	if err := store.Create(ctx, sched); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := loop.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(d.events) != 1 {
		t.Fatalf("expected exactly 1 trigger, got %d", len(d.events))
	}

	got, _ := store.GetByID(ctx, sched.ID)
	if got.State != domain.StateCompleted {
		t.Errorf("one-shot should be COMPLETED after firing, got %s", got.State)
	}
	if got.NextFireAt != nil {
		t.Error("completed schedule should have no next_fire_at")
	}

	// Повторный тик не рождает второй триггер
	if err := loop.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.events) != 1 {
		t.Errorf("one-shot must fire exactly once, got %d triggers", len(d.events))
	}
}

func TestLoop_RepeatCountExhaustion(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemory()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(now)
	d := &fakeDispatcher{accept: true}
	loop := newTestLoop(store, clk, d)

	remaining := 2
	sched := newIntervalSchedule(now.Add(-time.Second), 60)
	sched.RepeatCountRemaining = &remaining
	if err := store.Create(ctx, sched); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Первое срабатывание: осталось одно
	if err := loop.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := store.GetByID(ctx, sched.ID)
	if got.State != domain.StateActive {
		t.Fatalf("expected ACTIVE after first fire, got %s", got.State)
	}
	if got.RepeatCountRemaining == nil || *got.RepeatCountRemaining != 1 {
		t.Fatalf("expected 1 remaining, got %v", got.RepeatCountRemaining)
	}

	// Второе срабатывание: счётчик исчерпан
	clk.Advance(2 * time.Minute)
	if err := loop.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ = store.GetByID(ctx, sched.ID)
	if got.State != domain.StateCompleted {
		t.Errorf("expected COMPLETED after exhaustion, got %s", got.State)
	}
	if got.RepeatCountRemaining == nil || *got.RepeatCountRemaining != 0 {
		t.Errorf("expected 0 remaining, got %v", got.RepeatCountRemaining)
	}
	if len(d.events) != 2 {
		t.Errorf("expected 2 triggers total, got %d", len(d.events))
	}
}

func TestLoop_BackpressureReleasesLease(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemory()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(now)
	d := &fakeDispatcher{accept: false}
	loop := newTestLoop(store, clk, d)

	first := newIntervalSchedule(now.Add(-2*time.Second), 60)
	second := newIntervalSchedule(now.Add(-time.Second), 60)
	for _, s := range []*domain.Schedule{first, second} {
		if err := store.Create(ctx, s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if err := loop.Tick(ctx); err != nil {
		t.Fatalf("saturation is not an error: %v", err)
	}

	// Первый кандидат возвращён в пул нетронутым, второй не захватывался
	got, _ := store.GetByID(ctx, first.ID)
	if got.Owner != "" {
		t.Errorf("saturated candidate should be released, got owner %q", got.Owner)
	}
	if got.NextFireAt == nil || !got.NextFireAt.Equal(now.Add(-2*time.Second)) {
		t.Error("saturated candidate fire-state must be untouched")
	}

	got, _ = store.GetByID(ctx, second.ID)
	if got.Version != 1 {
		t.Errorf("claims must pause after saturation, got version %d", got.Version)
	}

	// После освобождения dispatcher оба срабатывают
	d.accept = true
	if err := loop.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.events) != 2 {
		t.Errorf("expected 2 triggers after recovery, got %d", len(d.events))
	}
}

func TestLoop_LostRaceIsSkipped(t *testing.T) {
	ctx := context.Background()
	mem := repo.NewMemory()
	store := &staleStore{Memory: mem}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(now)
	d := &fakeDispatcher{accept: true}
	loop := newTestLoop(store, clk, d)

	sched := newIntervalSchedule(now.Add(-time.Second), 60)
	if err := mem.Create(ctx, sched); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Захват с отставшей версией проигрывает гонку; тик продолжается
	if err := loop.Tick(ctx); err != nil {
		t.Fatalf("lost race must not fail the tick: %v", err)
	}
	if len(d.events) != 0 {
		t.Errorf("lost race must not enqueue a trigger, got %d", len(d.events))
	}

	got, _ := mem.GetByID(ctx, sched.ID)
	if got.Version != 1 || got.Owner != "" {
		t.Error("losing a race must leave the schedule untouched")
	}
}

func TestLoop_SleepDuration(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemory()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(now)
	loop := newTestLoop(store, clk, &fakeDispatcher{accept: true})

	// Пустой store: спим полный poll interval
	if got := loop.sleepDuration(ctx); got != defaultPollInterval {
		t.Errorf("expected %v, got %v", defaultPollInterval, got)
	}

	// Ближайшее срабатывание раньше poll interval — спим до него
	sched := newIntervalSchedule(now.Add(2*time.Second), 60)
	if err := store.Create(ctx, sched); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := loop.sleepDuration(ctx); got != 2*time.Second {
		t.Errorf("expected 2s, got %v", got)
	}

	// Просроченное срабатывание (его держит другой worker или оно ждёт
	// следующего тика): полный poll interval, без busy-poll
	clk.Advance(10 * time.Second)
	if got := loop.sleepDuration(ctx); got != defaultPollInterval {
		t.Errorf("expected %v, got %v", defaultPollInterval, got)
	}
}
