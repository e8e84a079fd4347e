package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry містить колектори додатку
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "videogen",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "videogen",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	authAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "videogen",
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Sign-up, sign-in and sign-out attempts by outcome.",
		},
		[]string{"operation", "outcome"},
	)

	authEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "videogen",
			Subsystem: "auth",
			Name:      "events_total",
			Help:      "Auth state change notifications processed.",
		},
		[]string{"event"},
	)

	profileFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "videogen",
			Subsystem: "profile",
			Name:      "fetches_total",
			Help:      "Profile fetch results: applied, stale or error.",
		},
		[]string{"outcome"},
	)

	checkoutSessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "videogen",
			Subsystem: "checkout",
			Name:      "sessions_total",
			Help:      "Checkout exchanges by outcome.",
		},
		[]string{"outcome"},
	)

	activeVisitors = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "videogen",
			Subsystem: "visitors",
			Name:      "active",
			Help:      "Visitors currently held in memory.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		authAttempts,
		authEvents,
		profileFetches,
		checkoutSessions,
		activeVisitors,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler повертає HTTP handler з метриками
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware збирає метрики HTTP запитів
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordAuthAttempt рахує спробу автентифікації
func RecordAuthAttempt(operation, outcome string) {
	authAttempts.WithLabelValues(operation, outcome).Inc()
}

// RecordAuthEvent рахує оброблену подію провайдера
func RecordAuthEvent(event string) {
	authEvents.WithLabelValues(event).Inc()
}

// RecordProfileFetch рахує результат завантаження профілю
func RecordProfileFetch(outcome string) {
	profileFetches.WithLabelValues(outcome).Inc()
}

// RecordCheckout рахує результат checkout
func RecordCheckout(outcome string) {
	checkoutSessions.WithLabelValues(outcome).Inc()
}

// SetActiveVisitors встановлює кількість відвідувачів
func SetActiveVisitors(n int) {
	activeVisitors.Set(float64(n))
}
