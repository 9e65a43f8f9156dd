package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ActionKind — тип целевого действия.
//
// Закрытый набор вариантов: новые виды действий добавляются здесь,
// конфигурация остаётся строго типизированной.
type ActionKind string

const (
	// ActionKindHTTP — HTTP callback на заданный адрес.
	ActionKindHTTP ActionKind = "http"
)

// Ошибки валидации action.
var (
	// ErrUnknownActionKind — неизвестный тип действия.
	ErrUnknownActionKind = errors.New("unknown action kind")

	// ErrInvalidAction — конфигурация действия некорректна.
	ErrInvalidAction = errors.New("invalid action")
)

// Action — описание целевого действия schedule.
//
// Tagged union: Kind определяет, какое из полей конфигурации заполнено.
// Валидируется при создании schedule, а не при доставке.
type Action struct {
	// Kind — тип действия.
	Kind ActionKind `json:"kind"`

	// HTTP — конфигурация для Kind == "http".
	HTTP *HTTPAction `json:"http,omitempty"`
}

// HTTPAction — конфигурация HTTP callback.
type HTTPAction struct {
	// Method — HTTP-метод. По умолчанию: POST.
	Method string `json:"method,omitempty"`

	// URL — адрес, на который доставляется событие.
	URL string `json:"url"`

	// Headers — дополнительные заголовки запроса.
	Headers map[string]string `json:"headers,omitempty"`

	// Body — шаблон тела запроса. Dispatcher добавляет к нему
	// fire_time и schedule_id при доставке.
	Body map[string]any `json:"body,omitempty"`

	// TimeoutSec — таймаут одной попытки доставки. По умолчанию: 30.
	TimeoutSec int `json:"timeout_sec,omitempty"`

	// SuccessFrom, SuccessTo — диапазон HTTP-статусов, считающихся
	// успехом. По умолчанию: [200, 299]. Всё остальное — повод для retry.
	SuccessFrom int `json:"success_from,omitempty"`
	SuccessTo   int `json:"success_to,omitempty"`
}

// Validate проверяет консистентность action.
func (a *Action) Validate() error {
	switch a.Kind {
	case ActionKindHTTP:
		if a.HTTP == nil {
			return fmt.Errorf("%w: http config is required", ErrInvalidAction)
		}
		return a.HTTP.validate()
	case "":
		return fmt.Errorf("%w: kind is required", ErrInvalidAction)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownActionKind, a.Kind)
	}
}

func (h *HTTPAction) validate() error {
	if h.URL == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidAction)
	}

	u, err := url.Parse(h.URL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: malformed url %q", ErrInvalidAction, h.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidAction, u.Scheme)
	}

	if h.Method != "" {
		switch strings.ToUpper(h.Method) {
		case "GET", "POST", "PUT", "PATCH", "DELETE":
		default:
			return fmt.Errorf("%w: unsupported method %q", ErrInvalidAction, h.Method)
		}
	}

	if h.SuccessFrom != 0 || h.SuccessTo != 0 {
		if h.SuccessFrom < 100 || h.SuccessTo > 599 || h.SuccessFrom > h.SuccessTo {
			return fmt.Errorf("%w: bad success status range [%d, %d]",
				ErrInvalidAction, h.SuccessFrom, h.SuccessTo)
		}
	}

	return nil
}

// SuccessRange возвращает действующий диапазон успешных статусов.
func (h *HTTPAction) SuccessRange() (from, to int) {
	if h.SuccessFrom == 0 && h.SuccessTo == 0 {
		return 200, 299
	}
	return h.SuccessFrom, h.SuccessTo
}
