package dispatch

import "errors"

// Ошибки доставки.
var (
	// ErrDeliveryFailed — попытка доставки не удалась
	// (сетевая ошибка, таймаут или статус вне диапазона успеха).
	ErrDeliveryFailed = errors.New("delivery failed")

	// ErrRetryExhausted — все попытки доставки исчерпаны.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrUnsupportedAction — у триггера действие неизвестного типа.
	// При валидации на создании schedule сюда попадать не должно.
	ErrUnsupportedAction = errors.New("unsupported action kind")
)
