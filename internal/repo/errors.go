package repo

import "errors"

// Общие ошибки store.
var (
	// ErrNotFound — schedule не найден.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — schedule с таким ID уже существует.
	ErrAlreadyExists = errors.New("already exists")

	// ErrVersionConflict — условная запись отклонена: предъявленная
	// версия не совпала с текущей. Ожидаемый исход гонки, не сбой —
	// кандидат просто пропускается в этом цикле.
	ErrVersionConflict = errors.New("version conflict")

	// ErrUnavailable — store временно недоступен; вызывающий
	// обязан отступить и повторить позже.
	ErrUnavailable = errors.New("store unavailable")
)
