package domain

// ScheduleState — состояние schedule.
//
// Жизненный цикл:
//
//	ACTIVE ⇄ PAUSED
//	ACTIVE → COMPLETED (one-shot сработал или repeat count исчерпан)
//	ACTIVE → FAILED    (retries доставки исчерпаны или recurrence некорректен)
//	любое  → DISABLED  (административно выключен)
type ScheduleState string

const (
	// StateActive — schedule участвует в планировании.
	StateActive ScheduleState = "ACTIVE"

	// StatePaused — приостановлен пользователем, срабатывания не происходят.
	StatePaused ScheduleState = "PAUSED"

	// StateCompleted — все намеченные срабатывания выполнены.
	StateCompleted ScheduleState = "COMPLETED"

	// StateFailed — доставка исчерпала retries или recurrence
	// не удалось вычислить. Требует внешнего вмешательства.
	StateFailed ScheduleState = "FAILED"

	// StateDisabled — выключен административно.
	StateDisabled ScheduleState = "DISABLED"
)

// IsTerminal возвращает true, если состояние финальное.
func (s ScheduleState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateDisabled:
		return true
	default:
		return false
	}
}

// Valid проверяет, что значение — одно из известных состояний.
func (s ScheduleState) Valid() bool {
	switch s {
	case StateActive, StatePaused, StateCompleted, StateFailed, StateDisabled:
		return true
	default:
		return false
	}
}

// RecoveryPolicy — политика обработки пропущенных срабатываний
// после падения владевшего worker'а.
type RecoveryPolicy string

const (
	// RecoverFireImmediately — пропущенное срабатывание считается due
	// прямо сейчас: lease снимается и schedule возвращается в общий пул.
	RecoverFireImmediately RecoveryPolicy = "FIRE_IMMEDIATELY"

	// RecoverSkipToNext — next_fire_at переводится на первое будущее
	// срабатывание, пропущенные промежуточные отбрасываются.
	RecoverSkipToNext RecoveryPolicy = "SKIP_TO_NEXT"
)

// Valid проверяет, что значение — одна из известных политик.
func (p RecoveryPolicy) Valid() bool {
	return p == RecoverFireImmediately || p == RecoverSkipToNext
}
