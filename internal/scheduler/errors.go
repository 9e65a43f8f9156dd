package scheduler

import "errors"

// Ошибки вычисления recurrence.
var (
	// ErrInvalidRecurrence — у schedule нет корректного правила
	// повторения (ни fire_at, ни cron, ни interval).
	ErrInvalidRecurrence = errors.New("invalid recurrence")

	// ErrRecurrenceExhausted — будущих срабатываний не существует
	// (one-shot уже в прошлом).
	ErrRecurrenceExhausted = errors.New("no future occurrence")

	// errDispatcherSaturated — очередь dispatcher'а заполнена;
	// цикл прекращает захват новых schedules до следующего тика.
	errDispatcherSaturated = errors.New("dispatcher saturated")
)
