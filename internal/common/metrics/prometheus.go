// Package metrics 提供 Prometheus 指标收集
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 指标收集器
type Metrics struct {
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge
	reservationsTotal    *prometheus.CounterVec
	reservationConflicts prometheus.Counter
	paymentsTotal        *prometheus.CounterVec
	notificationsTotal   *prometheus.CounterVec
	notificationDropped  prometheus.Counter
	cacheLookupsTotal    *prometheus.CounterVec
	mqttPublishTotal     *prometheus.CounterVec
	roomsByStatus        *prometheus.GaugeVec
}

var (
	defaultMetrics *Metrics
	defaultOnce    sync.Once
)

// New 在指定注册表上创建指标
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "villa_pms"
	}
	f := promauto.With(reg)

	return &Metrics{
		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "path"}),
		httpRequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		}),
		reservationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_transitions_total",
			Help:      "Reservation lifecycle transitions by resulting status",
		}, []string{"status"}),
		reservationConflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_conflicts_total",
			Help:      "Reservation attempts rejected because the room was taken",
		}),
		paymentsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payment reconciliation outcomes",
		}, []string{"gateway", "outcome"}),
		notificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Guest notifications by channel, kind and result",
		}, []string{"channel", "kind", "result"}),
		notificationDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dropped_total",
			Help:      "Notifications dropped because the queue was full",
		}),
		cacheLookupsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache name and result",
		}, []string{"cache", "result"}),
		mqttPublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_publish_total",
			Help:      "MQTT publishes by result",
		}, []string{"result"}),
		roomsByStatus: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_by_status",
			Help:      "Number of rooms in each operational status",
		}, []string{"status"}),
	}
}

// Init 在默认注册表上初始化，只生效一次
func Init(namespace string) *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(namespace, prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// GetMetrics 获取默认指标收集器
func GetMetrics() *Metrics {
	return Init("")
}

// Middleware 记录 HTTP 指标
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		m.httpRequestsInFlight.Inc()
		defer m.httpRequestsInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler 暴露 /metrics
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordReservation 记录预订状态迁移
func (m *Metrics) RecordReservation(status string) {
	if m == nil {
		return
	}
	m.reservationsTotal.WithLabelValues(status).Inc()
}

// RecordReservationConflict 记录预订冲突
func (m *Metrics) RecordReservationConflict() {
	if m == nil {
		return
	}
	m.reservationConflicts.Inc()
}

// RecordPayment 记录支付对账结果（paid/failed/duplicate/rejected）
func (m *Metrics) RecordPayment(gateway, outcome string) {
	if m == nil {
		return
	}
	m.paymentsTotal.WithLabelValues(gateway, outcome).Inc()
}

// RecordNotification 记录通知发送结果
func (m *Metrics) RecordNotification(channel, kind, result string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(channel, kind, result).Inc()
}

// RecordNotificationDropped 记录因队列满被丢弃的通知
func (m *Metrics) RecordNotificationDropped() {
	if m == nil {
		return
	}
	m.notificationDropped.Inc()
}

// RecordCacheLookup 记录缓存命中情况
func (m *Metrics) RecordCacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookupsTotal.WithLabelValues(cache, result).Inc()
}

// RecordMQTTPublish 记录 MQTT 发布
func (m *Metrics) RecordMQTTPublish(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.mqttPublishTotal.WithLabelValues(result).Inc()
}

// SetRoomsByStatus 刷新房态分布
func (m *Metrics) SetRoomsByStatus(counts map[string]int64) {
	if m == nil {
		return
	}
	for status, n := range counts {
		m.roomsByStatus.WithLabelValues(status).Set(float64(n))
	}
}
