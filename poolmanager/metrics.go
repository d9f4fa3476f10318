package poolmanager

import "github.com/prometheus/client_golang/prometheus"

const (
	metricsNamespace = "amm"
	metricsSubsystem = "pool_manager"
)

// Metrics carries the manager's prometheus instruments. Operation labels
// name the unit-of-work operation (swap, modify_liquidity, donate,
// collect_protocol_fees, settle, take).
type Metrics struct {
	poolsRegistered prometheus.Gauge

	unitsOfWork        *prometheus.CounterVec
	unitOfWorkDuration prometheus.Histogram

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec

	settlementFailures prometheus.Counter
}

// NewMetrics builds and registers the manager's instruments on the given
// registerer.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		poolsRegistered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "pools_registered",
			Help:      "Number of pools registered with the manager.",
		}),
		unitsOfWork: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "units_of_work_total",
			Help:      "Units of work by outcome (committed or rolled_back).",
		}, []string{"outcome"}),
		unitOfWorkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "unit_of_work_duration_seconds",
			Help:      "Wall time of one unit of work, rollback included.",
		}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "operations_total",
			Help:      "Completed unit-of-work operations by kind.",
		}, []string{"op"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "operation_duration_seconds",
			Help:      "Duration of pool-mutating operations by kind.",
		}, []string{"op"}),
		settlementFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "settlement_failures_total",
			Help:      "Units of work rejected because balances did not net to zero.",
		}),
	}

	registry.MustRegister(
		m.poolsRegistered,
		m.unitsOfWork,
		m.unitOfWorkDuration,
		m.operations,
		m.operationDuration,
		m.settlementFailures,
	)
	return m
}
