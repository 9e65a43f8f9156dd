package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики планировщика и доставки. Регистрируются в default registry
// и отдаются через promhttp на /metrics каждого процесса.
var (
	// FiresTotal — количество зафиксированных срабатываний.
	FiresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chronos_fires_total",
		Help: "Number of schedule firings committed to the store.",
	})

	// LeaseConflictsTotal — проигранные гонки за lease.
	// Рост при горизонтальном масштабировании ожидаем.
	LeaseConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chronos_lease_conflicts_total",
		Help: "Number of lease acquisitions lost to another worker.",
	})

	// DeliveriesTotal — попытки доставки по исходам.
	DeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chronos_deliveries_total",
		Help: "Number of trigger deliveries by outcome.",
	}, []string{"outcome"})

	// DeliveryRetriesTotal — повторные попытки доставки.
	DeliveryRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chronos_delivery_retries_total",
		Help: "Number of delivery retry attempts.",
	})

	// DeliveryDuration — длительность успешных и неуспешных доставок.
	DeliveryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chronos_delivery_duration_seconds",
		Help:    "Duration of delivery attempts including retries.",
		Buckets: prometheus.DefBuckets,
	})

	// DispatchQueueDepth — текущая глубина очереди dispatcher'а.
	DispatchQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chronos_dispatch_queue_depth",
		Help: "Current number of triggers waiting for delivery.",
	})

	// RecoveredTotal — schedules, возвращённые recovery manager'ом
	// в обработку, по применённой политике.
	RecoveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chronos_recovered_total",
		Help: "Number of orphaned schedules re-admitted by recovery policy.",
	}, []string{"policy"})
)
