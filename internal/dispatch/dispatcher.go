package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shaiso/Chronos/internal/domain"
	"github.com/shaiso/Chronos/internal/repo"
	"github.com/shaiso/Chronos/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// Default configuration values.
const (
	defaultConcurrency = 8
	defaultQueueSize   = 256
	defaultMaxAttempts = 5
	defaultBackoffBase = time.Second
	defaultBackoffMax  = 30 * time.Second
)

// Deliverer выполняет одну попытку доставки триггера получателю.
type Deliverer interface {
	Deliver(ctx context.Context, evt *domain.TriggerEvent) error
}

// Dispatcher — асинхронный доставщик триггеров.
//
// Ограниченная очередь плюс фиксированный пул воркеров: медленный
// downstream не останавливает scheduling loop, а заполнение очереди
// транслируется в backpressure через TryEnqueue.
type Dispatcher struct {
	store     repo.Store
	deliverer Deliverer
	sink      Sink
	logger    *slog.Logger

	queue       chan *domain.TriggerEvent
	concurrency int
	maxAttempts int
	backoffBase time.Duration

	cancelFunc context.CancelFunc
	group      *errgroup.Group
	startOnce  sync.Once
}

// Config — конфигурация Dispatcher.
type Config struct {
	Store     repo.Store
	Deliverer Deliverer

	// Sink — приёмник истории доставок (опционально; default: NopSink).
	Sink Sink

	Logger *slog.Logger

	// Concurrency — размер пула воркеров доставки (default: 8).
	Concurrency int

	// QueueSize — ёмкость очереди триггеров (default: 256).
	QueueSize int

	// MaxAttempts — максимум попыток доставки (default: 5).
	MaxAttempts int

	// BackoffBase — стартовая задержка экспоненциального backoff
	// (default: 1s).
	BackoffBase time.Duration
}

// New создаёт Dispatcher.
func New(cfg Config) *Dispatcher {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	backoffBase := cfg.BackoffBase
	if backoffBase <= 0 {
		backoffBase = defaultBackoffBase
	}

	sink := cfg.Sink
	if sink == nil {
		sink = NopSink{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		store:       cfg.Store,
		deliverer:   cfg.Deliverer,
		sink:        sink,
		logger:      logger,
		queue:       make(chan *domain.TriggerEvent, queueSize),
		concurrency: concurrency,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
	}
}

// Start запускает пул воркеров доставки.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		d.cancelFunc = cancel

		g, ctx := errgroup.WithContext(ctx)
		d.group = g

		for i := 0; i < d.concurrency; i++ {
			g.Go(func() error {
				d.run(ctx)
				return nil
			})
		}

		d.logger.Info("dispatcher started",
			"concurrency", d.concurrency,
			"queue_size", cap(d.queue),
			"max_attempts", d.maxAttempts,
		)
	})
}

// Stop останавливает воркеры и дожидается завершения текущих доставок.
func (d *Dispatcher) Stop() {
	if d.cancelFunc != nil {
		d.cancelFunc()
	}
	if d.group != nil {
		d.group.Wait() //nolint:errcheck
	}
	d.logger.Info("dispatcher stopped")
}

// TryEnqueue кладёт триггер в очередь без блокировки.
// false — очередь насыщена, loop обязан приостановить захват.
func (d *Dispatcher) TryEnqueue(evt *domain.TriggerEvent) bool {
	select {
	case d.queue <- evt:
		telemetry.DispatchQueueDepth.Set(float64(len(d.queue)))
		return true
	default:
		return false
	}
}

// run — цикл одного воркера доставки.
func (d *Dispatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-d.queue:
			telemetry.DispatchQueueDepth.Set(float64(len(d.queue)))
			d.deliver(ctx, evt)
		}
	}
}

// deliver выполняет доставку с retry и фиксирует терминальный исход.
func (d *Dispatcher) deliver(ctx context.Context, evt *domain.TriggerEvent) {
	start := time.Now()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.backoffBase
	bo.MaxInterval = defaultBackoffMax
	bo.MaxElapsedTime = 0 // ограничиваемся числом попыток

	policy := backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(d.maxAttempts-1)),
		ctx,
	)

	err := backoff.Retry(func() error {
		evt.Attempt++
		if evt.Attempt > 1 {
			telemetry.DeliveryRetriesTotal.Inc()
		}

		if err := d.deliverer.Deliver(ctx, evt); err != nil {
			evt.Outcome = domain.OutcomeRetrying
			evt.Error = err.Error()
			d.record(ctx, evt)

			d.logger.Warn("delivery attempt failed",
				"schedule_id", evt.ScheduleID,
				"fire_time", evt.FireTime,
				"attempt", evt.Attempt,
				"error", err,
			)
			return err
		}
		return nil
	}, policy)

	telemetry.DeliveryDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		evt.Outcome = domain.OutcomeFailed
		evt.Error = err.Error()
		d.record(ctx, evt)
		telemetry.DeliveriesTotal.WithLabelValues("failed").Inc()

		d.logger.Error("delivery retries exhausted",
			"schedule_id", evt.ScheduleID,
			"fire_time", evt.FireTime,
			"attempts", evt.Attempt,
			"error", err,
		)

		d.markFailed(ctx, evt)
		return
	}

	evt.Outcome = domain.OutcomeDelivered
	evt.Error = ""
	d.record(ctx, evt)
	telemetry.DeliveriesTotal.WithLabelValues("delivered").Inc()

	d.logger.Info("trigger delivered",
		"schedule_id", evt.ScheduleID,
		"fire_time", evt.FireTime,
		"attempts", evt.Attempt,
	)
}

// record передаёт снимок исхода попытки в sink.
func (d *Dispatcher) record(ctx context.Context, evt *domain.TriggerEvent) {
	snapshot := *evt
	d.sink.Record(ctx, &snapshot)
}

// markFailed переводит schedule в FAILED после исчерпания retries.
//
// Запись условная, поэтому возможен конфликт с параллельной правкой
// через API — несколько повторов с перечитыванием версии достаточно.
func (d *Dispatcher) markFailed(ctx context.Context, evt *domain.TriggerEvent) {
	failure := fmt.Sprintf("%v: %s", ErrRetryExhausted, evt.Error)

	for attempt := 0; attempt < 3; attempt++ {
		sched, err := d.store.GetByID(ctx, evt.ScheduleID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return // удалён — фиксировать нечего
			}
			d.logger.Warn("failed to load schedule for failure mark",
				"schedule_id", evt.ScheduleID,
				"error", err,
			)
			return
		}

		if sched.State.IsTerminal() {
			return
		}

		_, err = d.store.UpdateAfterFire(ctx, sched.ID, sched.Version, repo.FireOutcome{
			State:   domain.StateFailed,
			FiredAt: evt.FireTime,
			Error:   failure,
		})
		if errors.Is(err, repo.ErrVersionConflict) {
			continue
		}
		if err != nil {
			d.logger.Warn("failed to mark schedule as failed",
				"schedule_id", evt.ScheduleID,
				"error", err,
			)
		}
		return
	}
}
