package domain

import (
	"time"

	"github.com/google/uuid"
)

// Schedule — расписание запуска пользовательского события.
//
// Schedule может срабатывать:
// - Один раз в фиксированный момент (FireAt)
// - По cron-выражению: "0 9 * * *" (каждый день в 9:00)
// - По интервалу: каждые N секунд
//
// Каждый worker опрашивает due schedules (next_fire_at <= now) и
// координируется с остальными через условные записи по version —
// других механизмов взаимного исключения в системе нет.
type Schedule struct {
	// ID — уникальный идентификатор schedule.
	ID uuid.UUID `json:"id"`

	// Name — имя расписания для удобства.
	Name string `json:"name,omitempty"`

	// FireAt — момент одноразового срабатывания (one-shot).
	// Если задан, CronExpr и IntervalSec игнорируются.
	FireAt *time.Time `json:"fire_at,omitempty"`

	// CronExpr — cron-выражение.
	// Формат: "минуты часы дни месяцы дни_недели"
	// Примеры:
	//   "0 9 * * *"     — каждый день в 9:00
	//   "*/5 * * * *"   — каждые 5 минут
	CronExpr string `json:"cron_expr,omitempty"`

	// IntervalSec — интервал в секундах между срабатываниями.
	// Используется если FireAt и CronExpr не заданы.
	IntervalSec int `json:"interval_sec,omitempty"`

	// RepeatCountRemaining — сколько срабатываний осталось.
	// nil — без ограничения. Доходит до нуля — schedule становится COMPLETED.
	RepeatCountRemaining *int `json:"repeat_count_remaining,omitempty"`

	// Timezone — часовой пояс для вычисления времени.
	// По умолчанию: "UTC".
	Timezone string `json:"timezone"`

	// Action — что выполнить при срабатывании.
	// Валидируется при создании schedule, не при доставке.
	Action Action `json:"action"`

	// State — текущее состояние schedule.
	State ScheduleState `json:"state"`

	// NextFireAt — время следующего намеченного срабатывания.
	// Для ACTIVE schedule всегда задано. Scheduling loop использует
	// именно это значение как fire_time триггера — не показания
	// wall-clock на момент наблюдения.
	NextFireAt *time.Time `json:"next_fire_at,omitempty"`

	// Owner — идентификатор worker'а, удерживающего lease.
	// Пустая строка — schedule никем не занят.
	Owner string `json:"owner,omitempty"`

	// LeaseExpiry — момент истечения lease.
	// Задан только пока Owner непустой.
	LeaseExpiry *time.Time `json:"lease_expiry,omitempty"`

	// Version — fencing token. Строго возрастает при каждой
	// персистентной мутации; каждая запись обязана предъявить
	// версию, которую наблюдала. Несовпадение — отказ записи.
	Version int64 `json:"version"`

	// RecoveryPolicy — переопределение политики восстановления
	// для этого schedule. Пустая строка — используется глобальная.
	RecoveryPolicy RecoveryPolicy `json:"recovery_policy,omitempty"`

	// LastFiredAt — время последнего успешно зафиксированного срабатывания.
	LastFiredAt *time.Time `json:"last_fired_at,omitempty"`

	// LastError — последняя ошибка доставки или вычисления recurrence.
	// Заполняется при переходе в FAILED.
	LastError string `json:"last_error,omitempty"`

	// CreatedAt — время создания schedule.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOneShot возвращает true, если schedule срабатывает ровно один раз.
func (s *Schedule) IsOneShot() bool {
	return s.FireAt != nil
}

// IsCron возвращает true, если расписание использует cron-выражение.
func (s *Schedule) IsCron() bool {
	return s.FireAt == nil && s.CronExpr != ""
}

// IsInterval возвращает true, если расписание использует интервал.
func (s *Schedule) IsInterval() bool {
	return s.FireAt == nil && s.CronExpr == "" && s.IntervalSec > 0
}

// IsDue проверяет, подошло ли время срабатывания.
func (s *Schedule) IsDue(now time.Time) bool {
	if s.State != StateActive {
		return false
	}
	if s.NextFireAt == nil {
		return false
	}
	return !now.Before(*s.NextFireAt)
}

// LeaseExpired возвращает true, если lease отсутствует или истёк.
func (s *Schedule) LeaseExpired(now time.Time) bool {
	if s.Owner == "" || s.LeaseExpiry == nil {
		return true
	}
	return s.LeaseExpiry.Before(now)
}

// Claimable проверяет, можно ли пытаться взять lease:
// schedule due и никем живым не удерживается.
func (s *Schedule) Claimable(now time.Time) bool {
	return s.IsDue(now) && s.LeaseExpired(now)
}

// Orphaned возвращает true для schedule, брошенного упавшим worker'ом:
// ACTIVE, время срабатывания в прошлом, lease был выдан и истёк.
func (s *Schedule) Orphaned(now time.Time) bool {
	return s.IsDue(now) && s.Owner != "" && s.LeaseExpired(now)
}
