package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		checkoutsTotal,
		webhookEventsTotal,
		grantsTotal,
		revenueTotal,
	)
}

var (
	checkoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkouts_total",
			Help: "Checkout initiations by result (free_granted/order_created/provider_error).",
		},
		[]string{"result"},
	)

	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_events_total",
			Help: "Provider webhook deliveries by processing outcome.",
		},
		[]string{"outcome"},
	)

	grantsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_grants_total",
			Help: "Access grants created, labeled by source path (checkout/confirmation).",
		},
		[]string{"source"},
	)

	revenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "Total monetary value of captured payments in minor units, by currency.",
		},
		[]string{"currency"},
	)
)

func IncCheckout(result string) {
	checkoutsTotal.WithLabelValues(norm(result)).Inc()
}

func IncWebhookEvent(outcome string) {
	webhookEventsTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncGrant(source string) {
	grantsTotal.WithLabelValues(norm(source)).Inc()
}

func AddRevenue(currency string, amountMinor int64) {
	revenueTotal.WithLabelValues(norm(currency)).Add(float64(amountMinor))
}
