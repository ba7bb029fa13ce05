// Package orchestrator 按固定顺序向所有平台提问并汇总结果。
package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/askall/browser"
	"github.com/BaSui01/askall/internal/ctxkeys"
	"github.com/BaSui01/askall/types"
)

const tracerName = "askall/orchestrator"

// Runner 单个平台的自动化执行器，*automator.Automator 实现此接口
type Runner interface {
	Platform() types.Platform
	Run(ctx context.Context, session browser.Session, question string) (string, error)
}

// Cache 回答缓存，*cache.ResponseCache 实现此接口
type Cache interface {
	Get(ctx context.Context, platform types.Platform, question string) (string, bool)
	Put(ctx context.Context, platform types.Platform, question, response string)
}

// Observer 批次指标
type Observer interface {
	// RecordPlatformResult code 为空表示成功
	RecordPlatformResult(platform types.Platform, source string, code types.ErrorCode, duration time.Duration)
	RecordSessionOpen(err error)
}

type nopObserver struct{}

func (nopObserver) RecordPlatformResult(types.Platform, string, types.ErrorCode, time.Duration) {}
func (nopObserver) RecordSessionOpen(error)                                                     {}

type nopCache struct{}

func (nopCache) Get(context.Context, types.Platform, string) (string, bool) { return "", false }
func (nopCache) Put(context.Context, types.Platform, string, string)         {}

// Option 配置 Orchestrator
type Option func(*Orchestrator)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver 设置指标观察者
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithMeter 替换默认 meter
func WithMeter(meter metric.Meter) Option {
	return func(o *Orchestrator) {
		if meter != nil {
			o.meter = meter
		}
	}
}

// WithTracer 替换默认 tracer
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// Orchestrator 串行执行各平台并保证每批只打开一个 Session
type Orchestrator struct {
	mu       sync.Mutex
	running  atomic.Bool
	sessions browser.Opener
	runners  []Runner
	cache    Cache
	observer Observer
	tracer   trace.Tracer
	meter    metric.Meter
	logger   *zap.Logger

	batchDuration metric.Float64Histogram
	batchFailures metric.Int64Counter
}

// New 创建 Orchestrator。runners 按 types.Platforms() 顺序排列，cache 可为 nil。
func New(sessions browser.Opener, runners []Runner, c Cache, opts ...Option) *Orchestrator {
	if c == nil {
		c = nopCache{}
	}
	o := &Orchestrator{
		sessions: sessions,
		runners:  sortRunners(runners),
		cache:    c,
		observer: nopObserver{},
		tracer:   otel.Tracer(tracerName),
		meter:    otel.Meter(tracerName),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(zap.String("component", "orchestrator"))
	o.initInstruments()
	return o
}

func (o *Orchestrator) initInstruments() {
	var err error
	o.batchDuration, err = o.meter.Float64Histogram("askall.batch.duration",
		metric.WithDescription("Duration of one QueryAll batch"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 10, 30, 60, 120, 300, 600))
	if err != nil {
		o.logger.Warn("create batch duration histogram", zap.Error(err))
		o.batchDuration, _ = noop.NewMeterProvider().Meter(tracerName).Float64Histogram("askall.batch.duration")
	}
	o.batchFailures, err = o.meter.Int64Counter("askall.platform.failures",
		metric.WithDescription("Platforms that produced a placeholder result"),
		metric.WithUnit("{platform}"))
	if err != nil {
		o.logger.Warn("create platform failure counter", zap.Error(err))
		o.batchFailures, _ = noop.NewMeterProvider().Meter(tracerName).Int64Counter("askall.platform.failures")
	}
}

func sortRunners(runners []Runner) []Runner {
	rank := make(map[types.Platform]int)
	for i, p := range types.Platforms() {
		rank[p] = i
	}
	sorted := append([]Runner(nil), runners...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, ok := rank[sorted[i].Platform()]
		if !ok {
			ri = len(rank)
		}
		rj, ok := rank[sorted[j].Platform()]
		if !ok {
			rj = len(rank)
		}
		return ri < rj
	})
	return sorted
}

// Platforms 返回结果顺序
func (o *Orchestrator) Platforms() []types.Platform {
	out := make([]types.Platform, len(o.runners))
	for i, r := range o.runners {
		out[i] = r.Platform()
	}
	return out
}

// Busy 报告当前是否有批次占用浏览器；新的 QueryAll 会排队等待
func (o *Orchestrator) Busy() bool {
	return o.running.Load()
}

// QueryAll 向每个平台提问，每个平台恰好返回一个结果。
// 只有空问题会返回错误；平台失败以占位结果体现。
func (o *Orchestrator) QueryAll(ctx context.Context, question string) ([]types.PlatformResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "question is required")
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.running.Store(true)
	defer o.running.Store(false)

	b := &batch{
		Orchestrator: o,
		id:           uuid.NewString(),
		question:     question,
	}
	b.logger = o.logger.With(zap.String("batch_id", b.id))
	if rid, ok := ctxkeys.RequestID(ctx); ok {
		b.logger = b.logger.With(zap.String("request_id", rid))
	}

	ctx, span := o.tracer.Start(ctx, "QueryAll", trace.WithAttributes(
		attribute.String("askall.batch_id", b.id),
		attribute.Int("askall.platforms", len(o.runners)),
	))
	defer span.End()
	defer b.closeSession()

	b.logger.Info("batch started", zap.Int("platforms", len(o.runners)))
	start := time.Now()

	results := make([]types.PlatformResult, 0, len(o.runners))
	failed := 0
	for _, r := range o.runners {
		res := b.query(ctx, r)
		if res.Failed() {
			failed++
		}
		results = append(results, res)
	}

	span.SetAttributes(attribute.Int("askall.failed", failed))
	o.batchDuration.Record(ctx, time.Since(start).Seconds())
	if failed > 0 {
		o.batchFailures.Add(ctx, int64(failed))
	}
	b.logger.Info("batch finished",
		zap.Int("failed", failed),
		zap.Bool("session_opened", b.session != nil),
		zap.Duration("duration", time.Since(start)),
	)
	return results, nil
}

// batch 一次 QueryAll 的状态
type batch struct {
	*Orchestrator
	id         string
	question   string
	logger     *zap.Logger
	session    browser.Session
	sessionErr error
}

func (b *batch) query(ctx context.Context, r Runner) types.PlatformResult {
	p := r.Platform()
	ctx, span := b.tracer.Start(ctx, "platform "+string(p), trace.WithAttributes(
		attribute.String("askall.platform", string(p)),
	))
	defer span.End()

	logger := b.logger.With(zap.String("platform", string(p)))
	start := time.Now()

	if response, ok := b.cache.Get(ctx, p, b.question); ok {
		logger.Info("served from cache")
		span.SetAttributes(attribute.String("askall.source", types.SourceCache))
		b.observer.RecordPlatformResult(p, types.SourceCache, "", time.Since(start))
		return types.PlatformResult{Platform: p, Response: response, Source: types.SourceCache}
	}
	span.SetAttributes(attribute.String("askall.source", types.SourceBrowser))

	response, err := b.runPlatform(ctx, r)
	if err != nil {
		res := types.NewFailedResult(p, err)
		logger.Warn("platform failed", zap.String("code", string(res.Error.Code)), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, string(res.Error.Code))
		b.observer.RecordPlatformResult(p, types.SourceBrowser, res.Error.Code, time.Since(start))
		return res
	}

	b.cache.Put(ctx, p, b.question, response)
	logger.Info("platform answered", zap.Int("response_len", len(response)), zap.Duration("duration", time.Since(start)))
	b.observer.RecordPlatformResult(p, types.SourceBrowser, "", time.Since(start))
	return types.PlatformResult{Platform: p, Response: response, Source: types.SourceBrowser}
}

func (b *batch) runPlatform(ctx context.Context, r Runner) (response string, err error) {
	session, err := b.ensureSession(ctx)
	if err != nil {
		return "", err
	}

	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Error("automator panicked",
				zap.String("platform", string(r.Platform())),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
			err = types.NewError(types.ErrInternalError, fmt.Sprintf("automator panic: %v", rec)).
				WithPlatform(r.Platform())
		}
	}()
	return r.Run(ctx, session, b.question)
}

// ensureSession 首次需要浏览器时打开 Session；打开失败后本批次不再重试
func (b *batch) ensureSession(ctx context.Context) (browser.Session, error) {
	if b.session != nil {
		return b.session, nil
	}
	if b.sessionErr != nil {
		return nil, b.sessionErr
	}

	session, err := b.sessions.Open(ctx)
	b.observer.RecordSessionOpen(err)
	if err != nil {
		b.logger.Error("open browser session", zap.Error(err))
		b.sessionErr = types.NewError(types.ErrSessionUnavailable, "browser session unavailable").WithCause(err)
		return nil, b.sessionErr
	}
	b.logger.Info("browser session opened")
	b.session = session
	return session, nil
}

func (b *batch) closeSession() {
	if b.session == nil {
		return
	}
	if err := b.session.Close(); err != nil {
		b.logger.Warn("close browser session", zap.Error(err))
		return
	}
	b.logger.Info("browser session closed")
}
