package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "softstore_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "softstore_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	redemptionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "softstore_redemption_duration_seconds",
		Help:    "Duration of order redemption attempts",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	keysConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "softstore_keys_consumed_total",
		Help: "Total activation keys consumed by redemptions",
	})

	outOfStockHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "softstore_out_of_stock_total",
		Help: "Redemption attempts that found no unused key",
	})

	notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "softstore_notifications_total",
		Help: "Count of order notification deliveries by result",
	}, []string{"result"})

	catalogQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "softstore_catalog_queries_total",
		Help: "Count of catalog read operations",
	}, []string{"operation"})

	unusedKeys = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "softstore_unused_keys",
		Help: "Unused activation keys remaining per product",
	}, []string{"product_id"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveRedemption records the duration of a redemption attempt with a result label.
func ObserveRedemption(result string, duration time.Duration) {
	redemptionDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// AddKeysConsumed increments the consumed-key counter.
func AddKeysConsumed(n int) {
	keysConsumed.Add(float64(n))
}

// ObserveOutOfStock increments the out-of-stock counter.
func ObserveOutOfStock() {
	outOfStockHits.Inc()
}

// ObserveNotification records a notification delivery result.
func ObserveNotification(result string) {
	notifications.WithLabelValues(result).Inc()
}

// ObserveCatalogQuery increments the catalog read counter for an operation.
func ObserveCatalogQuery(operation string) {
	catalogQueries.WithLabelValues(operation).Inc()
}

// SetUnusedKeys sets the remaining-inventory gauge for a product.
func SetUnusedKeys(productID string, count int64) {
	if count < 0 {
		count = 0
	}
	unusedKeys.WithLabelValues(productID).Set(float64(count))
}
