package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Chronos/internal/clock"
	"github.com/shaiso/Chronos/internal/domain"
	"github.com/shaiso/Chronos/internal/repo"
)

// Default configuration values.
const (
	defaultTTL         = 30 * time.Second
	defaultRenewMargin = 10 * time.Second
)

// Manager выдаёт, продлевает и снимает leases от имени одного worker'а.
type Manager struct {
	store   repo.Store
	clock   clock.Clock
	ttl     time.Duration
	margin  time.Duration
	ownerID string
}

// Config — конфигурация Manager.
type Config struct {
	Store repo.Store
	Clock clock.Clock

	// OwnerID — идентификатор этого worker'а (см. WorkerID).
	OwnerID string

	// TTL — время жизни lease (default: 30s). Должен быть щедрым
	// относительно ожидаемого clock skew плюс один poll interval,
	// иначе живой владелец будет терять leases преждевременно.
	TTL time.Duration

	// RenewMargin — запас до истечения, при котором обработка
	// обязана продлить lease (default: TTL/3).
	RenewMargin time.Duration
}

// NewManager создаёт Manager.
func NewManager(cfg Config) *Manager {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	margin := cfg.RenewMargin
	if margin <= 0 || margin >= ttl {
		margin = ttl / 3
	}

	c := cfg.Clock
	if c == nil {
		c = clock.New()
	}

	return &Manager{
		store:   cfg.Store,
		clock:   c,
		ttl:     ttl,
		margin:  margin,
		ownerID: cfg.OwnerID,
	}
}

// OwnerID возвращает идентификатор worker'а, от имени которого
// выдаются leases.
func (m *Manager) OwnerID() string {
	return m.ownerID
}

// Lease — удерживаемое право на обработку одного schedule.
//
// Version — fencing token, полученный при захвате (или последнем
// продлении); все дальнейшие записи по этому schedule обязаны
// предъявлять именно его.
type Lease struct {
	ScheduleID uuid.UUID
	Version    int64
	Expiry     time.Time
}

// Acquire пытается захватить lease на due schedule.
//
// Проигранная гонка возвращается как repo.ErrVersionConflict —
// это ожидаемый исход, кандидат пропускается в текущем цикле.
func (m *Manager) Acquire(ctx context.Context, s *domain.Schedule) (*Lease, error) {
	expiry := m.clock.Now().Add(m.ttl)

	version, err := m.store.CompareAndSwapLease(ctx, s.ID, s.Version, m.ownerID, &expiry)
	if err != nil {
		return nil, err
	}

	return &Lease{
		ScheduleID: s.ID,
		Version:    version,
		Expiry:     expiry,
	}, nil
}

// NeedsRenewal возвращает true, когда до истечения lease осталось
// меньше запаса безопасности.
func (m *Manager) NeedsRenewal(l *Lease) bool {
	return !m.clock.Now().Add(m.margin).Before(l.Expiry)
}

// Renew продлевает lease с текущей известной версией.
//
// Неудача означает, что владение потеряно: schedule перехвачен или
// версия ушла вперёд. Держатель обязан прекратить обработку.
func (m *Manager) Renew(ctx context.Context, l *Lease) error {
	if !m.clock.Now().Before(l.Expiry) {
		return fmt.Errorf("%w: expired before renewal", ErrLeaseLost)
	}

	expiry := m.clock.Now().Add(m.ttl)
	version, err := m.store.CompareAndSwapLease(ctx, l.ScheduleID, l.Version, m.ownerID, &expiry)
	if err != nil {
		if errors.Is(err, repo.ErrVersionConflict) || errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %v", ErrLeaseLost, err)
		}
		return err
	}

	l.Version = version
	l.Expiry = expiry
	return nil
}

// Release снимает lease без изменения fire-state.
//
// Используется, когда захваченный кандидат не может быть обработан
// (например, dispatcher насыщен) и должен вернуться в общий пул.
func (m *Manager) Release(ctx context.Context, l *Lease) error {
	_, err := m.store.CompareAndSwapLease(ctx, l.ScheduleID, l.Version, "", nil)
	if errors.Is(err, repo.ErrVersionConflict) || errors.Is(err, repo.ErrNotFound) {
		// Владение уже потеряно — снимать нечего.
		return nil
	}
	return err
}
