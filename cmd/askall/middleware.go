package main

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/askall/api/handlers"
	"github.com/BaSui01/askall/internal/ctxkeys"
	"github.com/BaSui01/askall/internal/metrics"
	"github.com/BaSui01/askall/types"
)

// Middleware 类型定义
type Middleware func(http.Handler) http.Handler

// Chain 将多个中间件串联，第一个最外层
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// queryRoutes 触发一次批次的路由
var queryRoutes = []string{"/api/v1/query", "/query"}

// knownRoutes 作为 path 标签的路由，其余归为 "other" 以限制基数
var knownRoutes = toSet(append([]string{"/health", "/healthz", "/ready", "/readyz", "/version"}, queryRoutes...))

func normalizePath(path string) string {
	if _, ok := knownRoutes[path]; ok {
		return path
	}
	return "other"
}

// statusRecorder 记录处理器写出的第一个状态码
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func record(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w}
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
		r.ResponseWriter.WriteHeader(code)
	}
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

// Status 未写出任何内容时视为 200
func (r *statusRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// =============================================================================
// 🧱 基础
// =============================================================================

// Recovery panic 恢复中间件
func Recovery(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.Any("error", rec),
						zap.String("path", r.URL.Path),
						zap.Stack("stack"),
					)
					handlers.WriteErrorMessage(w, r, http.StatusInternalServerError, types.ErrInternalError, "internal server error", nil)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestID 为每个请求分配 X-Request-ID 并写入 context；客户端提供时沿用
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" || len(id) > 128 {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)
			next.ServeHTTP(w, r.WithContext(ctxkeys.WithRequestID(r.Context(), id)))
		})
	}
}

// SecurityHeaders 只返回 JSON 的 API：禁止嵌入与缓存，回答不应留在代理里
func SecurityHeaders() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// 📊 观测
// =============================================================================

// Observe 记录访问日志与 HTTP 指标。quietPaths（健康检查等）只在 debug 级别记录。
// collector 为 nil 时只记日志。
func Observe(logger *zap.Logger, collector *metrics.Collector, quietPaths []string) Middleware {
	quiet := toSet(quietPaths)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := record(w)
			next.ServeHTTP(rec, r)
			elapsed := time.Since(start)

			if collector != nil {
				collector.RecordHTTPRequest(r.Method, normalizePath(r.URL.Path), rec.Status(), elapsed)
			}

			level := zap.InfoLevel
			if _, ok := quiet[r.URL.Path]; ok {
				level = zap.DebugLevel
			}
			requestID, _ := ctxkeys.RequestID(r.Context())
			if ce := logger.Check(level, "request"); ce != nil {
				ce.Write(
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", rec.Status()),
					zap.Duration("duration", elapsed),
					zap.String("remote_addr", r.RemoteAddr),
					zap.String("request_id", requestID),
				)
			}
		})
	}
}

// OTelTracing 为每个请求创建 server span，并从请求头提取上游 trace context；
// 批次 span 挂在它下面
func OTelTracing() Middleware {
	tracer := otel.Tracer("askall/http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			ctx, span := tracer.Start(ctx, r.Method+" "+normalizePath(r.URL.Path),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			if id, ok := ctxkeys.RequestID(ctx); ok {
				span.SetAttributes(attribute.String("request_id", id))
			}

			rec := record(w)
			next.ServeHTTP(rec, r.WithContext(ctx))

			span.SetAttributes(attribute.Int("http.response.status_code", rec.Status()))
			if rec.Status() >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rec.Status()))
			}
		})
	}
}

// =============================================================================
// ⏱️ 批次期限
// =============================================================================

// QueryDeadline 给提问请求加上与服务端写超时一致的期限。
// 写超时只会断开连接，期限则让仍在运行的批次停下并关闭浏览器会话。
func QueryDeadline(timeout time.Duration) Middleware {
	routes := toSet(queryRoutes)
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := routes[r.URL.Path]; !ok {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// =============================================================================
// 🔐 APIKeyAuth
// =============================================================================

// APIKeyAuth 校验 X-API-Key；validKeys 为空时不鉴权。
// 通过后把 key 的短哈希写入 context，供限流分桶与日志使用。
func APIKeyAuth(validKeys []string, skipPaths []string, logger *zap.Logger) Middleware {
	skipSet := toSet(skipPaths)
	return func(next http.Handler) http.Handler {
		if len(validKeys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, skip := skipSet[r.URL.Path]; skip {
				next.ServeHTTP(w, r)
				return
			}
			key := r.Header.Get("X-API-Key")
			if !matchAPIKey(validKeys, key) {
				logger.Debug("rejected request without valid API key",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				handlers.WriteErrorMessage(w, r, http.StatusUnauthorized, types.ErrUnauthorized, "invalid or missing API key", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctxkeys.WithAPIKeyID(r.Context(), apiKeyID(key))))
		})
	}
}

func matchAPIKey(validKeys []string, key string) bool {
	if key == "" {
		return false
	}
	matched := 0
	for _, k := range validKeys {
		matched |= subtle.ConstantTimeCompare([]byte(k), []byte(key))
	}
	return matched == 1
}

func apiKeyID(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:4])
}

// =============================================================================
// 🚦 RateLimiter
// =============================================================================

// callerKey 已鉴权的请求按 API Key 分桶，否则按来源 IP
func callerKey(r *http.Request) string {
	if id, ok := ctxkeys.APIKeyID(r.Context()); ok {
		return "key:" + id
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return "ip:" + ip
}

// RateLimiter 按调用方限流；rps <= 0 时关闭。
// 批次本身串行执行，这里限制的是排队长度。需放在 APIKeyAuth 之后。
func RateLimiter(ctx context.Context, rps float64, burst int, skipPaths []string, logger *zap.Logger) Middleware {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = 1
	}
	skipSet := toSet(skipPaths)
	retryAfter := strconv.Itoa(int(math.Ceil(1 / rps)))

	type bucket struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}
	var (
		mu      sync.Mutex
		buckets = make(map[string]*bucket)
	)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mu.Lock()
				for k, b := range buckets {
					if time.Since(b.lastSeen) > 3*time.Minute {
						delete(buckets, k)
					}
				}
				mu.Unlock()
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, skip := skipSet[r.URL.Path]; skip {
				next.ServeHTTP(w, r)
				return
			}
			key := callerKey(r)
			mu.Lock()
			b, ok := buckets[key]
			if !ok {
				b = &bucket{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
				buckets[key] = b
			}
			b.lastSeen = time.Now()
			mu.Unlock()

			if !b.limiter.Allow() {
				logger.Debug("rate limited", zap.String("caller", key))
				w.Header().Set("Retry-After", retryAfter)
				handlers.WriteErrorMessage(w, r, http.StatusTooManyRequests, types.ErrRateLimited, "too many requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}
