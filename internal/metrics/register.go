package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var registerOnce sync.Once

// Register registers every cinerank collector with reg. Safe to call more
// than once; only the first call has an effect.
func Register(reg prometheus.Registerer, gauges CacheGauges) {
	registerOnce.Do(func() {
		cs := append(httpCollectors(), searchCollectors()...)
		cs = append(cs, embeddingCollectors()...)
		cs = append(cs, gauges.collectors()...)
		reg.MustRegister(cs...)
	})
}
