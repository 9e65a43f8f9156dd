package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shaiso/Chronos/internal/domain"
)

const defaultHTTPTimeout = 30 * time.Second

// HTTPDeliverer доставляет триггеры HTTP-запросом на адрес action'а.
//
// Тело запроса строится из шаблона action.Body, к которому
// добавляются schedule_id, fire_time и номер попытки — получатель
// дедуплицирует повторные доставки по (schedule_id, fire_time).
//
// Успехом считается статус из диапазона SuccessRange action'а
// (по умолчанию 2xx); всё остальное — повод для retry.
type HTTPDeliverer struct {
	client *http.Client
}

// NewHTTPDeliverer создаёт HTTPDeliverer.
func NewHTTPDeliverer() *HTTPDeliverer {
	return &HTTPDeliverer{
		client: &http.Client{},
	}
}

// Deliver выполняет одну попытку доставки.
func (d *HTTPDeliverer) Deliver(ctx context.Context, evt *domain.TriggerEvent) error {
	if evt.Action.Kind != domain.ActionKindHTTP || evt.Action.HTTP == nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedAction, evt.Action.Kind)
	}
	action := evt.Action.HTTP

	method := strings.ToUpper(action.Method)
	if method == "" {
		method = http.MethodPost
	}

	timeout := defaultHTTPTimeout
	if action.TimeoutSec > 0 {
		timeout = time.Duration(action.TimeoutSec) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if method != http.MethodGet {
		payload := make(map[string]any, len(action.Body)+3)
		for k, v := range action.Body {
			payload[k] = v
		}
		payload["schedule_id"] = evt.ScheduleID.String()
		payload["fire_time"] = evt.FireTime.UTC().Format(time.RFC3339Nano)
		payload["attempt"] = evt.Attempt

		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, action.URL, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Chronos-Schedule-Id", evt.ScheduleID.String())
	req.Header.Set("X-Chronos-Fire-Time", evt.FireTime.UTC().Format(time.RFC3339Nano))
	for k, v := range action.Headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	// Тело ответа не интересует, но вычитываем для переиспользования
	// соединения.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10)) //nolint:errcheck

	from, to := action.SuccessRange()
	if resp.StatusCode < from || resp.StatusCode > to {
		return fmt.Errorf("%w: status %d outside success range [%d, %d]",
			ErrDeliveryFailed, resp.StatusCode, from, to)
	}

	return nil
}
