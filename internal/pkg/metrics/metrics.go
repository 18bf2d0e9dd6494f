package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// InventoryMetrics agrupa as métricas do espelho de inventário e das operações no store.
// Todos os métodos aceitam receptor nil (métricas desligadas).
type InventoryMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	snapshots  prometheus.Counter
	records    prometheus.Gauge
}

// New registra as métricas no registerer informado.
func New(reg prometheus.Registerer) *InventoryMetrics {
	if reg == nil {
		return nil
	}
	m := &InventoryMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_store_operations_total",
			Help: "Operações no document store por tipo e resultado.",
		}, []string{"operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inventory_store_operation_duration_seconds",
			Help:    "Duração das operações no document store.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inventory_snapshots_total",
			Help: "Snapshots completos recebidos pelo listener.",
		}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "inventory_records",
			Help: "Quantidade de registros no último snapshot.",
		}),
	}
	reg.MustRegister(m.operations, m.duration, m.snapshots, m.records)
	return m
}

// ObserveOperation registra uma chamada ao store.
func (m *InventoryMetrics) ObserveOperation(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(op, result).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// ObserveSnapshot registra um snapshot aplicado ao espelho local.
func (m *InventoryMetrics) ObserveSnapshot(size int) {
	if m == nil {
		return
	}
	m.snapshots.Inc()
	m.records.Set(float64(size))
}
