package repo

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Chronos/internal/domain"
)

// Memory — in-memory реализация Store.
//
// Используется тестами и локальным запуском без Postgres. Семантика
// условных записей та же, что у ScheduleRepo: мутация применяется
// только при совпадении версии, иначе ErrVersionConflict.
type Memory struct {
	mu        sync.RWMutex
	schedules map[uuid.UUID]*domain.Schedule
}

// NewMemory создаёт пустой in-memory store.
func NewMemory() *Memory {
	return &Memory{schedules: make(map[uuid.UUID]*domain.Schedule)}
}

// Create сохраняет новый schedule с version = 1.
func (m *Memory) Create(_ context.Context, s *domain.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.schedules[s.ID]; ok {
		return ErrAlreadyExists
	}

	s.Version = 1
	m.schedules[s.ID] = cloneSchedule(s)
	return nil
}

// GetByID возвращает schedule по ID.
func (m *Memory) GetByID(_ context.Context, id uuid.UUID) (*domain.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.schedules[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSchedule(s), nil
}

// List возвращает schedules с фильтрацией.
func (m *Memory) List(_ context.Context, filter ScheduleFilter) ([]domain.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Schedule
	for _, s := range m.schedules {
		if filter.State != nil && s.State != *filter.State {
			continue
		}
		out = append(out, *cloneSchedule(s))
	}

	slices.SortFunc(out, func(a, b domain.Schedule) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// ListDue возвращает кандидатов на срабатывание в детерминированном порядке.
func (m *Memory) ListDue(_ context.Context, before time.Time, limit int) ([]domain.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var due []domain.Schedule
	for _, s := range m.schedules {
		if s.State != domain.StateActive || s.NextFireAt == nil {
			continue
		}
		if s.NextFireAt.After(before) {
			continue
		}
		if s.Owner != "" && s.LeaseExpiry != nil && !s.LeaseExpiry.Before(before) {
			continue
		}
		due = append(due, *cloneSchedule(s))
	}

	slices.SortFunc(due, func(a, b domain.Schedule) int {
		if c := a.NextFireAt.Compare(*b.NextFireAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// EarliestNextFire возвращает ближайший next_fire_at среди ACTIVE schedules.
func (m *Memory) EarliestNextFire(_ context.Context) (*time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var earliest *time.Time
	for _, s := range m.schedules {
		if s.State != domain.StateActive || s.NextFireAt == nil {
			continue
		}
		if earliest == nil || s.NextFireAt.Before(*earliest) {
			t := *s.NextFireAt
			earliest = &t
		}
	}
	return earliest, nil
}

// CompareAndSwapLease — условная запись владения.
func (m *Memory) CompareAndSwapLease(_ context.Context, id uuid.UUID, expectedVersion int64, owner string, expiry *time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.schedules[id]
	if !ok {
		return 0, ErrNotFound
	}
	if s.Version != expectedVersion || s.State != domain.StateActive {
		return 0, ErrVersionConflict
	}

	s.Owner = owner
	if expiry != nil {
		t := *expiry
		s.LeaseExpiry = &t
	} else {
		s.LeaseExpiry = nil
	}
	s.Version++
	s.UpdatedAt = time.Now()
	return s.Version, nil
}

// UpdateAfterFire фиксирует исход цикла срабатывания и снимает lease.
func (m *Memory) UpdateAfterFire(_ context.Context, id uuid.UUID, expectedVersion int64, outcome FireOutcome) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.schedules[id]
	if !ok {
		return 0, ErrNotFound
	}
	if s.Version != expectedVersion {
		return 0, ErrVersionConflict
	}

	s.State = outcome.State
	s.NextFireAt = cloneTime(outcome.NextFireAt)
	s.RepeatCountRemaining = cloneInt(outcome.RepeatCountRemaining)
	firedAt := outcome.FiredAt
	s.LastFiredAt = &firedAt
	s.LastError = outcome.Error
	s.Owner = ""
	s.LeaseExpiry = nil
	s.Version++
	s.UpdatedAt = time.Now()
	return s.Version, nil
}

// Update перезаписывает редактируемые поля schedule (условно по s.Version).
func (m *Memory) Update(_ context.Context, s *domain.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.schedules[s.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != s.Version {
		return ErrVersionConflict
	}

	next := cloneSchedule(s)
	next.Owner = stored.Owner
	next.LeaseExpiry = cloneTime(stored.LeaseExpiry)
	next.Version = stored.Version + 1
	next.UpdatedAt = time.Now()
	m.schedules[s.ID] = next

	s.Version = next.Version
	return nil
}

// Delete удаляет schedule.
func (m *Memory) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.schedules[id]; !ok {
		return ErrNotFound
	}
	delete(m.schedules, id)
	return nil
}

// --- Helpers ---

func cloneSchedule(s *domain.Schedule) *domain.Schedule {
	c := *s
	c.FireAt = cloneTime(s.FireAt)
	c.NextFireAt = cloneTime(s.NextFireAt)
	c.LeaseExpiry = cloneTime(s.LeaseExpiry)
	c.LastFiredAt = cloneTime(s.LastFiredAt)
	c.RepeatCountRemaining = cloneInt(s.RepeatCountRemaining)

	if s.Action.HTTP != nil {
		h := *s.Action.HTTP
		if s.Action.HTTP.Headers != nil {
			h.Headers = make(map[string]string, len(s.Action.HTTP.Headers))
			for k, v := range s.Action.HTTP.Headers {
				h.Headers[k] = v
			}
		}
		if s.Action.HTTP.Body != nil {
			h.Body = make(map[string]any, len(s.Action.HTTP.Body))
			for k, v := range s.Action.HTTP.Body {
				h.Body[k] = v
			}
		}
		c.Action.HTTP = &h
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}
