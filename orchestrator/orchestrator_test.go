package orchestrator

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/BaSui01/askall/automator"
	"github.com/BaSui01/askall/browser"
	"github.com/BaSui01/askall/browser/browsertest"
	"github.com/BaSui01/askall/cache"
	"github.com/BaSui01/askall/testutil"
	"github.com/BaSui01/askall/types"
)

// fakeRunner 按脚本返回结果
type fakeRunner struct {
	platform types.Platform
	fn       func(ctx context.Context, session browser.Session, question string) (string, error)
	calls    atomic.Int32
}

func (r *fakeRunner) Platform() types.Platform { return r.platform }

func (r *fakeRunner) Run(ctx context.Context, session browser.Session, question string) (string, error) {
	r.calls.Add(1)
	return r.fn(ctx, session, question)
}

func answering(p types.Platform, answer string) *fakeRunner {
	return &fakeRunner{platform: p, fn: func(context.Context, browser.Session, string) (string, error) {
		return answer, nil
	}}
}

func failing(p types.Platform, err error) *fakeRunner {
	return &fakeRunner{platform: p, fn: func(context.Context, browser.Session, string) (string, error) {
		return "", err
	}}
}

type countingObserver struct {
	mu       sync.Mutex
	results  map[types.Platform]types.ErrorCode
	sources  map[types.Platform]string
	opens    int
	openErrs int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{
		results: make(map[types.Platform]types.ErrorCode),
		sources: make(map[types.Platform]string),
	}
}

func (o *countingObserver) RecordPlatformResult(p types.Platform, source string, code types.ErrorCode, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results[p] = code
	o.sources[p] = source
}

func (o *countingObserver) RecordSessionOpen(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
	if err != nil {
		o.openErrs++
	}
}

func newFileCache(t *testing.T) (*cache.ResponseCache, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := cache.NewFileStore(dir)
	require.NoError(t, err)
	return cache.New(store), dir
}

func countEntries(t *testing.T, dir string) int {
	t.Helper()
	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(files)
}

func allAnswering() []Runner {
	return []Runner{
		answering(types.PlatformClaude, "claude says 4"),
		answering(types.PlatformOpenAI, "openai says 4"),
		answering(types.PlatformGemini, "gemini says 4"),
	}
}

func assertOrder(t *testing.T, results []types.PlatformResult) {
	t.Helper()
	require.Len(t, results, len(types.Platforms()))
	for i, p := range types.Platforms() {
		assert.Equal(t, p, results[i].Platform)
	}
}

func TestQueryAll_EmptyQuestion(t *testing.T) {
	opener := browsertest.NewOpener(browsertest.NewSession())
	o := New(opener, allAnswering(), nil)

	for _, q := range []string{"", "   ", "\n\t"} {
		results, err := o.QueryAll(context.Background(), q)
		assert.Nil(t, results)
		assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))
	}
	assert.Zero(t, opener.Opens())
}

func TestQueryAll_FixedOrder(t *testing.T) {
	runners := allAnswering()
	reversed := []Runner{runners[2], runners[0], runners[1]}
	o := New(browsertest.NewOpener(browsertest.NewSession()), reversed, nil)

	results, err := o.QueryAll(context.Background(), "What is 2+2?")

	require.NoError(t, err)
	assertOrder(t, results)
	assert.Equal(t, types.Platforms(), o.Platforms())
}

func TestQueryAll_AllCached(t *testing.T) {
	c, _ := newFileCache(t)
	ctx := context.Background()
	for _, p := range types.Platforms() {
		c.Put(ctx, p, "What is 2+2?", "stored "+string(p))
	}
	opener := browsertest.NewOpener(browsertest.NewSession())
	runners := allAnswering()
	o := New(opener, runners, c)

	results, err := o.QueryAll(ctx, "What is 2+2?")

	require.NoError(t, err)
	assertOrder(t, results)
	for _, res := range results {
		assert.Equal(t, types.SourceCache, res.Source)
		assert.Equal(t, "stored "+string(res.Platform), res.Response)
		assert.False(t, res.Failed())
	}
	assert.Zero(t, opener.Opens())
	for _, r := range runners {
		assert.Zero(t, r.(*fakeRunner).calls.Load())
	}
}

func TestQueryAll_AllSucceedPopulatesCache(t *testing.T) {
	c, dir := newFileCache(t)
	session := browsertest.NewSession()
	opener := browsertest.NewOpener(session)
	obs := newCountingObserver()
	o := New(opener, allAnswering(), c, WithObserver(obs), WithLogger(zaptest.NewLogger(t)))

	results, err := o.QueryAll(context.Background(), "  a brand new question  ")

	require.NoError(t, err)
	assertOrder(t, results)
	for _, res := range results {
		assert.False(t, res.Failed())
		assert.Equal(t, types.SourceBrowser, res.Source)
		assert.NotEmpty(t, res.Response)
	}
	assert.Equal(t, 3, countEntries(t, dir))
	assert.Equal(t, 1, opener.Opens())
	assert.Equal(t, 1, session.Closed())
	assert.Equal(t, 1, obs.opens)

	got, ok := c.Get(context.Background(), types.PlatformOpenAI, "a brand new question")
	require.True(t, ok)
	assert.Equal(t, "openai says 4", got)
}

func TestQueryAll_FailureIsolation(t *testing.T) {
	c, dir := newFileCache(t)
	runners := []Runner{
		answering(types.PlatformClaude, "4"),
		failing(types.PlatformOpenAI, types.NewError(types.ErrUIContract, "entry surface missing")),
		answering(types.PlatformGemini, "4"),
	}
	obs := newCountingObserver()
	o := New(browsertest.NewOpener(browsertest.NewSession()), runners, c, WithObserver(obs))

	results, err := o.QueryAll(testutil.TestContext(t), "q")

	require.NoError(t, err)
	testutil.AssertResultOrder(t, results, types.Platforms()...)
	assert.False(t, results[0].Failed())
	assert.False(t, results[2].Failed())
	testutil.AssertFailedWith(t, results[1], types.ErrUIContract)
	assert.Equal(t, 2, countEntries(t, dir))
	assert.Equal(t, types.ErrUIContract, obs.results[types.PlatformOpenAI])
}

func TestQueryAll_PanicIsRecovered(t *testing.T) {
	runners := []Runner{
		answering(types.PlatformClaude, "4"),
		&fakeRunner{platform: types.PlatformOpenAI, fn: func(context.Context, browser.Session, string) (string, error) {
			panic("selector engine exploded")
		}},
		answering(types.PlatformGemini, "4"),
	}
	session := browsertest.NewSession()
	o := New(browsertest.NewOpener(session), runners, nil)

	results, err := o.QueryAll(context.Background(), "q")

	require.NoError(t, err)
	assertOrder(t, results)
	require.True(t, results[1].Failed())
	assert.Equal(t, types.ErrInternalError, results[1].Error.Code)
	assert.Contains(t, results[1].Error.Message, "selector engine exploded")
	assert.False(t, results[2].Failed())
	assert.Equal(t, 1, session.Closed())
}

func TestQueryAll_AllFailClosesSessionOnce(t *testing.T) {
	boom := errors.New("boom")
	runners := []Runner{
		failing(types.PlatformClaude, boom),
		failing(types.PlatformOpenAI, boom),
		failing(types.PlatformGemini, boom),
	}
	session := browsertest.NewSession()
	opener := browsertest.NewOpener(session)
	o := New(opener, runners, nil)

	results, err := o.QueryAll(context.Background(), "q")

	require.NoError(t, err)
	assertOrder(t, results)
	for _, res := range results {
		require.True(t, res.Failed())
		assert.Equal(t, types.ErrInternalError, res.Error.Code)
	}
	assert.Equal(t, 1, opener.Opens())
	assert.Equal(t, 1, session.Closed())
}

func TestQueryAll_SessionUnavailable(t *testing.T) {
	c, _ := newFileCache(t)
	c.Put(context.Background(), types.PlatformGemini, "q", "cached gemini")
	opener := browsertest.NewOpener(nil)
	opener.Err = errors.New("chrome not found")
	runners := allAnswering()
	obs := newCountingObserver()
	o := New(opener, runners, c, WithObserver(obs))

	results, err := o.QueryAll(context.Background(), "q")

	require.NoError(t, err)
	assertOrder(t, results)
	for _, res := range results[:2] {
		require.True(t, res.Failed())
		assert.Equal(t, types.ErrSessionUnavailable, res.Error.Code)
	}
	assert.Equal(t, "cached gemini", results[2].Response)
	assert.Equal(t, 1, opener.Opens())
	assert.Equal(t, 1, obs.openErrs)
	assert.Zero(t, runners[0].(*fakeRunner).calls.Load())
}

func TestQueryAll_SessionOpenedLazilyOnce(t *testing.T) {
	c, _ := newFileCache(t)
	c.Put(context.Background(), types.PlatformClaude, "q", "cached claude")
	session := browsertest.NewSession()
	opener := browsertest.NewOpener(session)
	var seen []browser.Session
	record := func(p types.Platform) *fakeRunner {
		return &fakeRunner{platform: p, fn: func(_ context.Context, s browser.Session, _ string) (string, error) {
			seen = append(seen, s)
			return "live", nil
		}}
	}
	o := New(opener, []Runner{
		record(types.PlatformClaude), record(types.PlatformOpenAI), record(types.PlatformGemini),
	}, c)

	results, err := o.QueryAll(context.Background(), "q")

	require.NoError(t, err)
	assert.Equal(t, types.SourceCache, results[0].Source)
	assert.Equal(t, 1, opener.Opens())
	require.Len(t, seen, 2)
	assert.Same(t, session, seen[0])
	assert.Same(t, session, seen[1])
	assert.Equal(t, 1, session.Closed())
}

func TestQueryAll_BatchesAreSerialized(t *testing.T) {
	var active, maxActive atomic.Int32
	slow := func(p types.Platform) *fakeRunner {
		return &fakeRunner{platform: p, fn: func(context.Context, browser.Session, string) (string, error) {
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			active.Add(-1)
			return "ok", nil
		}}
	}
	o := New(browsertest.NewOpener(browsertest.NewSession()), []Runner{
		slow(types.PlatformClaude), slow(types.PlatformOpenAI), slow(types.PlatformGemini),
	}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.QueryAll(context.Background(), "q")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxActive.Load())
}

func TestOrchestrator_BusyDuringBatch(t *testing.T) {
	var o *Orchestrator
	var seen atomic.Bool
	runner := &fakeRunner{platform: types.PlatformClaude, fn: func(context.Context, browser.Session, string) (string, error) {
		seen.Store(o.Busy())
		return "4", nil
	}}
	o = New(browsertest.NewOpener(browsertest.NewSession()), []Runner{runner}, nil)

	assert.False(t, o.Busy())
	_, err := o.QueryAll(context.Background(), "2+2?")
	require.NoError(t, err)
	assert.True(t, seen.Load())
	assert.False(t, o.Busy())
}

func TestQueryAll_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	runners := []Runner{
		answering(types.PlatformClaude, "4"),
		failing(types.PlatformOpenAI, errors.New("boom")),
		answering(types.PlatformGemini, "4"),
	}
	o := New(browsertest.NewOpener(browsertest.NewSession()), runners, nil, WithTracer(tp.Tracer(tracerName)))

	_, err := o.QueryAll(context.Background(), "q")
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 4)
	names := make([]string, 0, len(spans))
	for _, s := range spans {
		names = append(names, s.Name())
	}
	assert.ElementsMatch(t, []string{"QueryAll", "platform claude", "platform openai", "platform gemini"}, names)
}

func TestQueryAll_RecordsOTelMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	runners := []Runner{
		answering(types.PlatformClaude, "4"),
		failing(types.PlatformOpenAI, errors.New("boom")),
		failing(types.PlatformGemini, errors.New("boom")),
	}
	o := New(browsertest.NewOpener(browsertest.NewSession()), runners, nil, WithMeter(mp.Meter(tracerName)))

	_, err := o.QueryAll(context.Background(), "q")
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = true
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok && m.Name == "askall.platform.failures" {
				require.Len(t, sum.DataPoints, 1)
				assert.Equal(t, int64(2), sum.DataPoints[0].Value)
			}
		}
	}
	assert.True(t, found["askall.batch.duration"])
	assert.True(t, found["askall.platform.failures"])
}

func TestQueryAll_OneResultPerPlatformProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		fails := rapid.SliceOfN(rapid.Bool(), 3, 3).Draw(rt, "fails")
		question := rapid.StringMatching(`[a-z0-9 ?]{1,40}`).Filter(func(s string) bool {
			for _, c := range s {
				if c != ' ' {
					return true
				}
			}
			return false
		}).Draw(rt, "question")

		runners := make([]Runner, 0, 3)
		for i, p := range types.Platforms() {
			if fails[i] {
				runners = append(runners, failing(p, errors.New("boom")))
			} else {
				runners = append(runners, answering(p, "answer"))
			}
		}
		session := browsertest.NewSession()
		o := New(browsertest.NewOpener(session), runners, nil)

		results, err := o.QueryAll(context.Background(), question)
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 3 {
			rt.Fatalf("got %d results", len(results))
		}
		for i, p := range types.Platforms() {
			if results[i].Platform != p {
				rt.Fatalf("result %d is %s, want %s", i, results[i].Platform, p)
			}
			if results[i].Failed() != fails[i] {
				rt.Fatalf("result %d failed=%v, want %v", i, results[i].Failed(), fails[i])
			}
		}
		if session.Closed() != 1 {
			rt.Fatalf("session closed %d times", session.Closed())
		}
	})
}

func TestQueryAll_WithPlatformAutomators(t *testing.T) {
	timeouts := automator.Timeouts{
		Probe:        10 * time.Millisecond,
		EntrySurface: 10 * time.Millisecond,
		LoginSettle:  10 * time.Millisecond,
		Answer:       time.Second,
	}
	page := func(answer string) *browsertest.Page {
		return browsertest.NewPage().SetVisible("entry-surface", true).SetText("answer", answer)
	}
	broken := browsertest.NewPage()
	session := browsertest.NewSession(page("  Four.  "), broken, page("\n4\n"))

	var runners []Runner
	for _, d := range automator.Descriptors() {
		runners = append(runners, automator.New(d, automator.WithTimeouts(timeouts)))
	}
	c, dir := newFileCache(t)
	o := New(browsertest.NewOpener(session), runners, c)

	results, err := o.QueryAll(context.Background(), "What is 2+2?")

	require.NoError(t, err)
	assertOrder(t, results)
	assert.Equal(t, "Four.", results[0].Response)
	assert.Equal(t, types.ErrUIContract, results[1].Error.Code)
	assert.Equal(t, "4", results[2].Response)
	assert.Equal(t, 2, countEntries(t, dir))
	assert.Equal(t, 1, broken.Closed())
	assert.Equal(t, 1, session.Closed())
}
