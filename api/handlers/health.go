package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/BaSui01/askall/api"
	"github.com/BaSui01/askall/types"
	"go.uber.org/zap"
)

// =============================================================================
// 🏥 健康检查 Handler
// =============================================================================

// readyTimeout 单次就绪检查的总时限
const readyTimeout = 5 * time.Second

// Pinger 可探活的依赖。*browser.SessionManager 检查 profile 目录或远程 DevTools，
// *cache.ResponseCache 检查缓存后端。
type Pinger interface {
	Ping(ctx context.Context) error
}

// Batches 批次状态，*orchestrator.Orchestrator 实现此接口
type Batches interface {
	Busy() bool
	Platforms() []types.Platform
}

// HealthStatus 健康状态响应
type HealthStatus struct {
	Status    string                 `json:"status"` // "healthy", "unhealthy"
	Timestamp time.Time              `json:"timestamp"`
	Batch     string                 `json:"batch,omitempty"` // "idle", "running"
	Platforms []types.Platform       `json:"platforms,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult 单个检查结果
type CheckResult struct {
	Status  string `json:"status"` // "pass", "fail", "skipped"
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// HealthHandler 健康检查处理器。
// 就绪意味着下一批次能打开浏览器；缓存不可用只降级为全部实时提问，因此不影响就绪。
type HealthHandler struct {
	logger  *zap.Logger
	browser Pinger
	cache   Pinger
	batches Batches
}

// NewHealthHandler 创建健康检查处理器；cache 为 nil 表示未启用缓存
func NewHealthHandler(browser Pinger, cache Pinger, batches Batches, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		logger:  logger,
		browser: browser,
		cache:   cache,
		batches: batches,
	}
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleHealth 处理 /health 与 /healthz（存活检查）
// @Summary 健康检查
// @Tags 健康
// @Produce json
// @Success 200 {object} HealthStatus "服务正常"
// @Router /health [get]
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// HandleReady 处理 /ready 与 /readyz
// @Summary 准备情况检查
// @Description 浏览器前置条件与缓存后端的状态，以及当前是否有批次在运行
// @Tags 健康
// @Produce json
// @Success 200 {object} HealthStatus "可以接受提问"
// @Failure 503 {object} HealthStatus "浏览器无法启动"
// @Router /ready [get]
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult, 2),
	}
	if h.batches != nil {
		status.Batch = "idle"
		if h.batches.Busy() {
			status.Batch = "running"
		}
		status.Platforms = h.batches.Platforms()
	}

	browserResult := h.check(ctx, "browser", h.browser)
	status.Checks["browser"] = browserResult
	status.Checks["cache"] = h.check(ctx, "cache", h.cache)

	if browserResult.Status == "fail" {
		status.Status = "unhealthy"
		WriteJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

func (h *HealthHandler) check(ctx context.Context, name string, target Pinger) CheckResult {
	if target == nil {
		return CheckResult{Status: "skipped"}
	}

	start := time.Now()
	err := target.Ping(ctx)
	latency := time.Since(start)

	result := CheckResult{Status: "pass", Latency: latency.String()}
	if err != nil {
		result.Status = "fail"
		result.Message = err.Error()
		h.logger.Warn("health check failed",
			zap.String("check", name),
			zap.Error(err),
			zap.Duration("latency", latency),
		)
	}
	return result
}

// HandleVersion 处理 /version 请求
// @Summary 版本信息
// @Tags 健康
// @Produce json
// @Success 200 {object} api.VersionInfo "版本信息"
// @Router /version [get]
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, r, api.VersionInfo{
			Version:   version,
			BuildTime: buildTime,
			GitCommit: gitCommit,
		})
	}
}
