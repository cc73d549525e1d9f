package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Total number of chat messages posted",
	})
	AuthResolutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_auth_resolutions_total",
		Help: "Bearer token resolutions by outcome",
	}, []string{"result"})
	InviteChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_invite_checks_total",
		Help: "Invite code verifications by outcome",
	}, []string{"result"})
	HttpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HttpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(MessagesTotal, AuthResolutionsTotal, InviteChecksTotal, HttpRequestsTotal, HttpRequestDuration)
}

// ObserveAuth 记录一次 token 解析结果：anonymous、authenticated 或 rejected。
func ObserveAuth(result string) {
	AuthResolutionsTotal.WithLabelValues(result).Inc()
}

func ObserveInviteCheck(ok bool) {
	result := "invalid"
	if ok {
		result = "valid"
	}
	InviteChecksTotal.WithLabelValues(result).Inc()
}

// GinMiddleware 统计基础请求指标，供 Prometheus 拉取。
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		HttpRequestsTotal.With(labels).Inc()
		HttpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
