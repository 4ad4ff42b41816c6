package service

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/annel0/blockverse/internal/data"
	"github.com/annel0/blockverse/internal/world"
)

// Metrics — Prometheus-метрики транзакций над объёмами схематик
type Metrics struct {
	transactions *prometheus.CounterVec
	changes      *prometheus.CounterVec
	open         prometheus.Gauge
}

// NewMetrics создаёт метрики и регистрирует их в reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockverse",
			Subsystem: "volume",
			Name:      "transactions_total",
			Help:      "Транзакции над данными ячеек по операции и итогу.",
		}, []string{"op", "result"}),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockverse",
			Subsystem: "volume",
			Name:      "changes_total",
			Help:      "Зафиксированные изменения ячеек по виду и слою.",
		}, []string{"kind", "layer"}),
		open: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "blockverse",
			Subsystem: "service",
			Name:      "open_schematics",
			Help:      "Схематики, загруженные в память.",
		}),
	}
	for _, c := range []prometheus.Collector{m.transactions, m.changes, m.open} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(op string, r data.TransactionResult) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(op, r.Type.String()).Inc()
}

func (m *Metrics) change(c world.Change) {
	if m == nil {
		return
	}
	m.changes.WithLabelValues(c.Kind.String(), c.Layer.String()).Inc()
}

func (m *Metrics) setOpen(n int) {
	if m == nil {
		return
	}
	m.open.Set(float64(n))
}
