// Chronos Worker — опрашивает due schedules и доставляет срабатывания.
//
// Worker:
//   - Забирает due schedules из store через optimistic CAS
//   - Удерживает lease на время цикла срабатывания
//   - Доставляет HTTP-триггеры с retry и exponential backoff
//   - Восстанавливает осиротевшие schedules после сбоев
//
// Workers масштабируются горизонтально: координация идёт только
// через условные записи в store, внешнего lock manager'а нет.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Chronos/internal/clock"
	"github.com/shaiso/Chronos/internal/config"
	"github.com/shaiso/Chronos/internal/dispatch"
	"github.com/shaiso/Chronos/internal/lease"
	"github.com/shaiso/Chronos/internal/mq"
	"github.com/shaiso/Chronos/internal/recovery"
	"github.com/shaiso/Chronos/internal/repo"
	"github.com/shaiso/Chronos/internal/scheduler"
	"github.com/shaiso/Chronos/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting chronos-worker")

	cfg := config.LoadWorker()

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	store := repo.NewScheduleRepo(pool)

	// RabbitMQ: история срабатываний. Без брокера worker продолжает
	// работать, история просто не публикуется.
	var sink dispatch.Sink = dispatch.NopSink{}
	mqConn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, trigger history disabled", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		sink = mq.NewHistorySink(mq.NewPublisher(mqConn, logger), logger)
	}

	clk := clock.New()
	workerID := lease.WorkerID(logger)
	logger = logger.With("worker_id", workerID)

	leases := lease.NewManager(lease.Config{
		Store:   store,
		Clock:   clk,
		OwnerID: workerID,
		TTL:     cfg.LeaseTTL,
	})

	dispatcher := dispatch.New(dispatch.Config{
		Store:       store,
		Deliverer:   dispatch.NewHTTPDeliverer(),
		Sink:        sink,
		Logger:      logger,
		Concurrency: cfg.DispatchConcurrency,
		QueueSize:   cfg.DispatchQueueSize,
		MaxAttempts: cfg.RetryMaxAttempts,
		BackoffBase: cfg.RetryBackoffBase,
	})
	dispatcher.Start(ctx)

	loop := scheduler.New(scheduler.Config{
		Store:        store,
		Leases:       leases,
		Dispatcher:   dispatcher,
		Clock:        clk,
		Logger:       logger,
		PollInterval: cfg.PollInterval,
		BatchSize:    cfg.BatchSize,
	})

	recoverer := recovery.NewManager(recovery.Config{
		Store:         store,
		Clock:         clk,
		Logger:        logger,
		Policy:        cfg.RecoveryPolicy,
		SweepInterval: cfg.RecoverySweepInterval,
		BatchSize:     cfg.BatchSize,
	})

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		addr := ":" + cfg.Port
		logger.Info("listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error { return recoverer.Run(gctx) })

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Error("worker stopped unexpectedly", "error", err)
	}

	// Дожидаемся доставок, уже взятых в работу
	dispatcher.Stop()
	logger.Info("chronos-worker stopped")
}
