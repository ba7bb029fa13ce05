package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/BaSui01/askall/api/handlers"
	"github.com/BaSui01/askall/internal/ctxkeys"
	"github.com/BaSui01/askall/internal/metrics"
	"github.com/BaSui01/askall/types"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *handlers.ErrorInfo {
	t.Helper()
	var resp handlers.Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

func TestSecurityHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	SecurityHeaders()(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-referrer", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "default-src 'none'; frame-ancestors 'none'", w.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Empty(t, w.Header().Get("X-XSS-Protection"))
}

func TestStatusRecorder(t *testing.T) {
	w := httptest.NewRecorder()
	rec := record(w)
	assert.Equal(t, http.StatusOK, rec.Status())
	assert.Same(t, rec, record(rec), "nested middlewares share one recorder")

	rec.WriteHeader(http.StatusAccepted)
	rec.WriteHeader(http.StatusBadRequest)
	_, err := rec.Write([]byte("x"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusAccepted, rec.Status())
	assert.Equal(t, http.StatusAccepted, w.Code)
}

// counterValue 从默认 registry 读取带 labels 的计数
func counterValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	next:
		for _, m := range f.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestObserve(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	collector := metrics.NewCollector("observe_test", zap.NewNop())

	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := Chain(notFound, RequestID(), Observe(zap.New(core), collector, skipAuthPaths))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/query", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/wp-admin", nil))

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, int64(http.StatusNotFound), entries[0].ContextMap()["status"])
	assert.NotEmpty(t, entries[0].ContextMap()["request_id"])
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level, "readiness checks stay quiet")

	assert.Equal(t, 1.0, counterValue(t, "observe_test_http_requests_total",
		map[string]string{"method": "POST", "path": "/api/v1/query", "status": "4xx"}))
	assert.Equal(t, 1.0, counterValue(t, "observe_test_http_requests_total",
		map[string]string{"method": "GET", "path": "other"}))
}

func TestObserve_WithoutCollector(t *testing.T) {
	w := httptest.NewRecorder()
	Observe(zap.NewNop(), nil, nil)(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestQueryDeadline(t *testing.T) {
	var deadline time.Time
	var hasDeadline bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, hasDeadline = r.Context().Deadline()
	})
	h := QueryDeadline(time.Minute)(inner)

	start := time.Now()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/query", nil))
	require.True(t, hasDeadline)
	assert.WithinDuration(t, start.Add(time.Minute), deadline, 5*time.Second)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.False(t, hasDeadline, "only question routes are bounded")

	QueryDeadline(0)(inner).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/query", nil))
	assert.False(t, hasDeadline)
}

func TestQueryDeadline_CancelsBatch(t *testing.T) {
	var batchErr error
	slowBatch := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			batchErr = r.Context().Err()
		case <-time.After(5 * time.Second):
		}
	})
	QueryDeadline(20*time.Millisecond)(slowBatch).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/query", nil))
	assert.ErrorIs(t, batchErr, context.DeadlineExceeded)
}

func TestRequestID(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ctxkeys.RequestID(r.Context())
	})
	h := RequestID()(inner)

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
	})

	t.Run("propagated", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Request-ID", "client-id-1")
		h.ServeHTTP(w, r)
		assert.Equal(t, "client-id-1", seen)
		assert.Equal(t, "client-id-1", w.Header().Get("X-Request-ID"))
	})
}

func TestRecovery(t *testing.T) {
	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	w := httptest.NewRecorder()
	Recovery(zap.NewNop())(panicky).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, string(types.ErrInternalError), decodeError(t, w).Code)
}

func TestAPIKeyAuth(t *testing.T) {
	var keyID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keyID, _ = ctxkeys.APIKeyID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := APIKeyAuth([]string{"k1", "k2"}, skipAuthPaths, zap.NewNop())(inner)

	tests := []struct {
		name       string
		path       string
		key        string
		wantStatus int
	}{
		{"valid key", "/api/v1/query", "k2", http.StatusOK},
		{"missing key", "/api/v1/query", "", http.StatusUnauthorized},
		{"wrong key", "/api/v1/query", "nope", http.StatusUnauthorized},
		{"skip path", "/health", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keyID = ""
			r := httptest.NewRequest(http.MethodPost, tt.path, nil)
			if tt.key != "" {
				r.Header.Set("X-API-Key", tt.key)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, string(types.ErrUnauthorized), decodeError(t, w).Code)
			}
			if tt.key == "k2" {
				assert.Equal(t, apiKeyID("k2"), keyID)
				assert.Len(t, keyID, 8)
			}
		})
	}
}

func TestAPIKeyAuth_DisabledWithoutKeys(t *testing.T) {
	w := httptest.NewRecorder()
	APIKeyAuth(nil, nil, zap.NewNop())(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/query", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := RateLimiter(ctx, 0.001, 2, skipAuthPaths, zap.NewNop())(okHandler())

	do := func(path, addr string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, path, nil)
		r.RemoteAddr = addr
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	assert.Equal(t, http.StatusOK, do("/query", "10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, do("/query", "10.0.0.1:1001").Code)

	limited := do("/query", "10.0.0.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))
	assert.Equal(t, string(types.ErrRateLimited), decodeError(t, limited).Code)

	// 其他 IP 与健康检查不受影响
	assert.Equal(t, http.StatusOK, do("/query", "10.0.0.2:1000").Code)
	assert.Equal(t, http.StatusOK, do("/health", "10.0.0.1:1003").Code)
}

func TestRateLimiter_PerAPIKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := Chain(okHandler(),
		APIKeyAuth([]string{"team-a", "team-b"}, skipAuthPaths, zap.NewNop()),
		RateLimiter(ctx, 0.001, 1, skipAuthPaths, zap.NewNop()),
	)
	do := func(key string) int {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/query", nil)
		r.RemoteAddr = "10.0.0.9:4000"
		r.Header.Set("X-API-Key", key)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	// 同一出口 IP 后的不同 key 各有独立额度
	assert.Equal(t, http.StatusOK, do("team-a"))
	assert.Equal(t, http.StatusTooManyRequests, do("team-a"))
	assert.Equal(t, http.StatusOK, do("team-b"))
}

func TestCallerKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/query", nil)
	r.RemoteAddr = "192.0.2.7:5555"
	assert.Equal(t, "ip:192.0.2.7", callerKey(r))

	r = r.WithContext(ctxkeys.WithAPIKeyID(r.Context(), "abcd1234"))
	assert.Equal(t, "key:abcd1234", callerKey(r))
}

func TestRateLimiter_Disabled(t *testing.T) {
	h := RateLimiter(context.Background(), 0, 0, nil, zap.NewNop())(okHandler())
	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/query", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/api/v1/query", normalizePath("/api/v1/query"))
	assert.Equal(t, "/health", normalizePath("/health"))
	assert.Equal(t, "other", normalizePath("/api/v1/query/../../etc"))
	assert.Equal(t, "other", normalizePath("/favicon.ico"))
}

func TestOTelTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	w := httptest.NewRecorder()
	Chain(failing, RequestID(), OTelTracing()).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/query", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "POST /api/v1/query", spans[0].Name())
	assert.Equal(t, "Error", spans[0].Status().Code.String())
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	Chain(okHandler(), mw("a"), mw("b"), mw("c")).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}
