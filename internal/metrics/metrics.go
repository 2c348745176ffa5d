// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Delivery outcomes.
const (
	DeliveryPushed    = "pushed"
	DeliveryOffline   = "offline"
	DeliveryDropped   = "dropped"
	DeliveryPublished = "published"
)

var (
	// HTTPRequests counts handled requests by route and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "friendconnect_http_requests_total",
		Help: "Total HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "friendconnect_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// FriendOps counts friend graph mutations by operation and result.
	FriendOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "friendconnect_friend_operations_total",
		Help: "Friend graph operations by operation and result",
	}, []string{"operation", "result"})

	NotificationsPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "friendconnect_notifications_persisted_total",
		Help: "Notifications appended to user logs by kind",
	}, []string{"kind"})

	// NotificationDeliveries counts live delivery attempts by outcome.
	NotificationDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "friendconnect_notification_deliveries_total",
		Help: "Live notification delivery attempts by outcome",
	}, []string{"outcome"})

	OnlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "friendconnect_online_users",
		Help: "Users with a registered live channel on this instance",
	})

	RecommendationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "friendconnect_recommendation_duration_seconds",
		Help:    "Recommendation computation time in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	})

	// RecommendationCandidates tracks candidates scored per computation.
	RecommendationCandidates = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "friendconnect_recommendation_candidates",
		Help:    "Candidates scored per recommendation computation",
		Buckets: []float64{0, 1, 10, 50, 100, 500, 1000, 5000},
	})
)

// Middleware records request counts and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
