package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

// --- Schedule predicates ---

func TestSchedule_IsDue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	s := &Schedule{State: StateActive, NextFireAt: &past}
	if !s.IsDue(now) {
		t.Error("schedule with past next_fire_at should be due")
	}

	s.NextFireAt = &future
	if s.IsDue(now) {
		t.Error("schedule with future next_fire_at should not be due")
	}

	s.NextFireAt = &past
	s.State = StatePaused
	if s.IsDue(now) {
		t.Error("paused schedule should never be due")
	}

	s.State = StateActive
	s.NextFireAt = nil
	if s.IsDue(now) {
		t.Error("schedule without next_fire_at should not be due")
	}
}

func TestSchedule_Claimable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	s := &Schedule{State: StateActive, NextFireAt: &past}
	if !s.Claimable(now) {
		t.Error("unowned due schedule should be claimable")
	}

	// Живой lease блокирует захват
	s.Owner = "worker-1"
	s.LeaseExpiry = &future
	if s.Claimable(now) {
		t.Error("schedule with live lease should not be claimable")
	}

	// Истёкший lease — можно перехватывать
	s.LeaseExpiry = &past
	if !s.Claimable(now) {
		t.Error("schedule with expired lease should be claimable")
	}
}

func TestSchedule_Orphaned(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	s := &Schedule{
		State:       StateActive,
		NextFireAt:  &past,
		Owner:       "dead-worker",
		LeaseExpiry: &past,
	}
	if !s.Orphaned(now) {
		t.Error("due schedule with expired lease should be orphaned")
	}

	s.LeaseExpiry = &future
	if s.Orphaned(now) {
		t.Error("schedule with live lease is not orphaned")
	}

	s.Owner = ""
	s.LeaseExpiry = nil
	if s.Orphaned(now) {
		t.Error("unowned schedule is not orphaned")
	}
}

func TestSchedule_RecurrenceKind(t *testing.T) {
	at := time.Now()

	oneShot := &Schedule{FireAt: &at}
	if !oneShot.IsOneShot() || oneShot.IsCron() || oneShot.IsInterval() {
		t.Error("fire_at schedule should be one-shot only")
	}

	cron := &Schedule{CronExpr: "*/5 * * * *"}
	if !cron.IsCron() || cron.IsOneShot() || cron.IsInterval() {
		t.Error("cron schedule should be cron only")
	}

	interval := &Schedule{IntervalSec: 60}
	if !interval.IsInterval() || interval.IsOneShot() || interval.IsCron() {
		t.Error("interval schedule should be interval only")
	}

	// FireAt имеет приоритет над остальными полями
	mixed := &Schedule{FireAt: &at, CronExpr: "* * * * *", IntervalSec: 10}
	if !mixed.IsOneShot() {
		t.Error("fire_at should take precedence")
	}
}

// --- States ---

func TestScheduleState_IsTerminal(t *testing.T) {
	terminal := []ScheduleState{StateCompleted, StateFailed, StateDisabled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	for _, s := range []ScheduleState{StateActive, StatePaused} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestRecoveryPolicy_Valid(t *testing.T) {
	if !RecoverFireImmediately.Valid() || !RecoverSkipToNext.Valid() {
		t.Error("known policies should be valid")
	}
	if RecoveryPolicy("EXPLODE").Valid() {
		t.Error("unknown policy should be invalid")
	}
	if RecoveryPolicy("").Valid() {
		t.Error("empty policy should be invalid")
	}
}

// --- Action validation ---

func TestAction_Validate(t *testing.T) {
	valid := Action{
		Kind: ActionKindHTTP,
		HTTP: &HTTPAction{Method: "POST", URL: "https://example.com/hook"},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := []struct {
		name   string
		action Action
		want   error
	}{
		{
			name:   "missing kind",
			action: Action{},
			want:   ErrInvalidAction,
		},
		{
			name:   "unknown kind",
			action: Action{Kind: "carrier-pigeon"},
			want:   ErrUnknownActionKind,
		},
		{
			name:   "http without config",
			action: Action{Kind: ActionKindHTTP},
			want:   ErrInvalidAction,
		},
		{
			name:   "http without url",
			action: Action{Kind: ActionKindHTTP, HTTP: &HTTPAction{}},
			want:   ErrInvalidAction,
		},
		{
			name:   "bad scheme",
			action: Action{Kind: ActionKindHTTP, HTTP: &HTTPAction{URL: "ftp://example.com"}},
			want:   ErrInvalidAction,
		},
		{
			name:   "bad method",
			action: Action{Kind: ActionKindHTTP, HTTP: &HTTPAction{URL: "https://example.com", Method: "YEET"}},
			want:   ErrInvalidAction,
		},
		{
			name: "inverted success range",
			action: Action{Kind: ActionKindHTTP, HTTP: &HTTPAction{
				URL: "https://example.com", SuccessFrom: 300, SuccessTo: 200,
			}},
			want: ErrInvalidAction,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.action.Validate()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestHTTPAction_SuccessRange(t *testing.T) {
	h := &HTTPAction{URL: "https://example.com"}
	from, to := h.SuccessRange()
	if from != 200 || to != 299 {
		t.Errorf("default range should be [200, 299], got [%d, %d]", from, to)
	}

	h.SuccessFrom = 200
	h.SuccessTo = 404
	from, to = h.SuccessRange()
	if from != 200 || to != 404 {
		t.Errorf("explicit range should be respected, got [%d, %d]", from, to)
	}
}

func TestTriggerEvent_Snapshot(t *testing.T) {
	// TriggerEvent несёт снимок action, а не ссылку на schedule
	evt := TriggerEvent{
		ScheduleID: uuid.New(),
		FireTime:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Action: Action{
			Kind: ActionKindHTTP,
			HTTP: &HTTPAction{URL: "https://example.com"},
		},
	}

	if evt.Attempt != 0 {
		t.Error("new event should have zero attempts")
	}
	if evt.Outcome != "" {
		t.Error("new event should have no outcome yet")
	}
}
