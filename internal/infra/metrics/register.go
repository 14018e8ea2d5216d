// Package metrics exposes Prometheus counters for the purchase core:
// checkouts, webhook confirmations, grants, revenue, and the sweep workers.
// Each file enqueues its collectors from init(); main calls MustRegister
// once before the /metrics endpoint is mounted.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once       sync.Once
	collectors []prometheus.Collector
)

func register(cs ...prometheus.Collector) {
	collectors = append(collectors, cs...)
}

// MustRegister registers every enqueued collector exactly once. Counters are
// usable before registration, so tests never need to call this.
func MustRegister() {
	once.Do(func() {
		if len(collectors) > 0 {
			prometheus.MustRegister(collectors...)
		}
	})
}
