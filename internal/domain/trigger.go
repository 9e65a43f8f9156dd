package domain

import (
	"time"

	"github.com/google/uuid"
)

// TriggerOutcome — исход попытки доставки.
type TriggerOutcome string

const (
	// OutcomeDelivered — событие доставлено получателю.
	OutcomeDelivered TriggerOutcome = "DELIVERED"

	// OutcomeRetrying — попытка не удалась, будет retry.
	OutcomeRetrying TriggerOutcome = "RETRYING"

	// OutcomeFailed — все попытки исчерпаны.
	OutcomeFailed TriggerOutcome = "FAILED"
)

// TriggerEvent — одно срабатывание schedule.
//
// Эфемерный объект: живёт от момента захвата lease до завершения
// доставки и в store не сохраняется. FireTime — это next_fire_at
// schedule на момент захвата, а не показания часов; получатель
// обязан быть идемпотентным относительно пары (schedule_id, fire_time),
// потому что доставка гарантируется как at-least-once.
type TriggerEvent struct {
	// ScheduleID — чьё срабатывание.
	ScheduleID uuid.UUID `json:"schedule_id"`

	// ScheduleName — имя schedule на момент срабатывания.
	ScheduleName string `json:"schedule_name,omitempty"`

	// Action — снимок действия на момент захвата lease.
	Action Action `json:"action"`

	// FireTime — намеченное время срабатывания.
	FireTime time.Time `json:"fire_time"`

	// Attempt — номер попытки доставки (с 1).
	Attempt int `json:"attempt"`

	// Outcome — исход последней попытки.
	Outcome TriggerOutcome `json:"outcome,omitempty"`

	// Error — ошибка последней попытки, если была.
	Error string `json:"error,omitempty"`
}
