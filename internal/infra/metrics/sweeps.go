package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		grantsExpiredTotal,
		staleOrdersSweptTotal,
		cacheRequestsTotal,
	)
}

var (
	grantsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "access_grants_expired_total",
			Help: "Grants flipped active->expired by the periodic sweep.",
		},
	)

	staleOrdersSweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stale_orders_swept_total",
			Help: "Orders stuck in created status swept to failed.",
		},
	)

	cacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Cache lookups by entity and result (hit/miss).",
		},
		[]string{"entity", "result"},
	)
)

func AddGrantsExpired(n int64) {
	grantsExpiredTotal.Add(float64(n))
}

func AddStaleOrdersSwept(n int64) {
	staleOrdersSweptTotal.Add(float64(n))
}

func IncCacheRequest(entity, result string) {
	cacheRequestsTotal.WithLabelValues(norm(entity), norm(result)).Inc()
}
