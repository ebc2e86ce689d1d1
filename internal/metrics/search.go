package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "cinerank"

// Search pipeline Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Search requests by outcome",
		},
		[]string{"outcome"}, // hit / miss / fallback / error / invalid
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "End-to-end search latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"outcome"},
	)

	CacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Cache lookups by tier and result",
		},
		[]string{"tier", "result"},
	)

	RewriteTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_rewrites_total",
			Help:      "Applied query rewrites by strategy",
		},
		[]string{"strategy"},
	)

	InteractionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interactions_total",
			Help:      "Recorded user interactions by type",
		},
		[]string{"type"},
	)
)

func searchCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		SearchRequestsTotal,
		SearchDuration,
		CacheRequestsTotal,
		RewriteTotal,
		InteractionsTotal,
	}
}

// CacheGauges exposes point-in-time cache state. Each func is read at scrape time.
type CacheGauges struct {
	Entries   func() float64
	SizeBytes func() float64
	Evictions func() float64
}

func (g CacheGauges) collectors() []prometheus.Collector {
	var cs []prometheus.Collector
	if g.Entries != nil {
		cs = append(cs, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Entries held in the in-process cache",
		}, g.Entries))
	}
	if g.SizeBytes != nil {
		cs = append(cs, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_size_bytes",
			Help:      "Approximate bytes held in the in-process cache",
		}, g.SizeBytes))
	}
	if g.Evictions != nil {
		cs = append(cs, prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Entries evicted from the in-process cache",
		}, g.Evictions))
	}
	return cs
}
