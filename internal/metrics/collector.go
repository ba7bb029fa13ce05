// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/BaSui01/askall/automator"
	"github.com/BaSui01/askall/types"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 平台指标
	platformResultsTotal     *prometheus.CounterVec
	platformDuration         *prometheus.HistogramVec
	platformStateTransitions *prometheus.CounterVec
	platformRetries          *prometheus.CounterVec

	// 会话指标
	sessionsOpened *prometheus.CounterVec

	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses prometheus.Counter
	cacheErrors *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.1, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"method", "path"},
	)

	// 平台指标
	c.platformResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "platform_results_total",
			Help:      "Per-platform results by source and outcome",
		},
		[]string{"platform", "source", "outcome"}, // outcome: ok 或错误码
	)

	c.platformDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "platform_duration_seconds",
			Help:      "Time to produce one platform result",
			Buckets:   []float64{0.01, 0.1, 1, 5, 10, 30, 60, 120, 180},
		},
		[]string{"platform", "source"},
	)

	c.platformStateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "platform_state_transitions_total",
			Help:      "Automator state transitions",
		},
		[]string{"platform", "from_state", "to_state"},
	)

	c.platformRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "platform_submit_retries_total",
			Help:      "Retries of the fill-and-submit step",
		},
		[]string{"platform"},
	)

	c.sessionsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "browser_sessions_opened_total",
			Help:      "Browser session launches",
		},
		[]string{"status"},
	)

	// 缓存指标
	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"tier"},
	)

	c.cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
	)

	c.cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_errors_total",
			Help:      "Cache store errors degraded to miss or no-op",
		},
		[]string{"operation"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// =============================================================================
// 🤖 平台指标记录
// =============================================================================

// RecordPlatformResult 记录一个平台结果，code 为空表示成功
func (c *Collector) RecordPlatformResult(platform types.Platform, source string, code types.ErrorCode, duration time.Duration) {
	outcome := "ok"
	if code != "" {
		outcome = string(code)
	}
	c.platformResultsTotal.WithLabelValues(string(platform), source, outcome).Inc()
	c.platformDuration.WithLabelValues(string(platform), source).Observe(duration.Seconds())
}

// OnTransition 记录状态机迁移
func (c *Collector) OnTransition(platform types.Platform, from, to automator.State) {
	c.platformStateTransitions.WithLabelValues(string(platform), from.String(), to.String()).Inc()
}

// RecordRetry 记录一次填写提交重试
func (c *Collector) RecordRetry(platform types.Platform) {
	c.platformRetries.WithLabelValues(string(platform)).Inc()
}

// RecordSessionOpen 记录浏览器会话启动
func (c *Collector) RecordSessionOpen(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.sessionsOpened.WithLabelValues(status).Inc()
}

// =============================================================================
// 💾 缓存指标记录
// =============================================================================

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(tier string) {
	c.cacheHits.WithLabelValues(tier).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss() {
	c.cacheMisses.Inc()
}

// RecordCacheError 记录缓存存储错误
func (c *Collector) RecordCacheError(op string) {
	c.cacheErrors.WithLabelValues(op).Inc()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
