package eventbus

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsExporter отдаёт Stats шины как метрики Prometheus в момент сбора,
// без фоновой горутины.
type MetricsExporter struct {
	bus       EventBus
	published *prometheus.Desc
	consumed  *prometheus.Desc
	dropped   *prometheus.Desc
	inflight  *prometheus.Desc
}

// NewMetricsExporter регистрирует коллектор шины в reg
func NewMetricsExporter(bus EventBus, reg prometheus.Registerer) (*MetricsExporter, error) {
	name := func(n string) string { return prometheus.BuildFQName("blockverse", "eventbus", n) }
	me := &MetricsExporter{
		bus:       bus,
		published: prometheus.NewDesc(name("messages_published_total"), "Опубликованные события.", nil, nil),
		consumed:  prometheus.NewDesc(name("messages_consumed_total"), "События, обработанные подписчиками.", nil, nil),
		dropped:   prometheus.NewDesc(name("messages_dropped_total"), "События, потерянные при переполнении очереди или ошибке публикации.", nil, nil),
		inflight:  prometheus.NewDesc(name("messages_inflight"), "События в очередях подписчиков.", nil, nil),
	}
	if err := reg.Register(me); err != nil {
		return nil, err
	}
	return me, nil
}

func (me *MetricsExporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- me.published
	ch <- me.consumed
	ch <- me.dropped
	ch <- me.inflight
}

func (me *MetricsExporter) Collect(ch chan<- prometheus.Metric) {
	s := me.bus.Metrics()
	ch <- prometheus.MustNewConstMetric(me.published, prometheus.CounterValue, float64(s.Published))
	ch <- prometheus.MustNewConstMetric(me.consumed, prometheus.CounterValue, float64(s.Consumed))
	ch <- prometheus.MustNewConstMetric(me.dropped, prometheus.CounterValue, float64(s.Dropped))
	ch <- prometheus.MustNewConstMetric(me.inflight, prometheus.GaugeValue, float64(s.InFlight))
}
