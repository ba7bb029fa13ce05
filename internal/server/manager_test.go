package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func testConfig() Config {
	return Config{
		Addr:            "127.0.0.1:0",
		ReadTimeout:     5 * time.Second,
		BatchTimeout:    10 * time.Second,
		ShutdownTimeout: time.Second,
	}
}

// --- Config ---

func TestNewManager_Timeouts(t *testing.T) {
	cfg := testConfig()
	m := NewManager("api", okHandler(), cfg, nil)

	assert.Equal(t, cfg.BatchTimeout, m.server.WriteTimeout)
	assert.Equal(t, cfg.ReadTimeout, m.server.ReadHeaderTimeout)
	assert.Equal(t, 2*cfg.ReadTimeout, m.server.IdleTimeout)
	assert.Equal(t, maxHeaderBytes, m.server.MaxHeaderBytes)
	assert.False(t, m.IsRunning())
}

// --- Start / Shutdown lifecycle ---

func TestManager_StartAndShutdown(t *testing.T) {
	m := NewManager("api", okHandler(), testConfig(), zap.NewNop())

	require.NoError(t, m.Start())
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	resp, err := http.Get("http://" + m.Addr() + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	require.NoError(t, m.Shutdown(context.Background()))
	assert.False(t, m.IsRunning())
}

func TestManager_DoubleStart(t *testing.T) {
	m := NewManager("api", http.NewServeMux(), testConfig(), nil)

	require.NoError(t, m.Start())
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	err := m.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api server already started")
}

func TestManager_ShutdownIdempotent(t *testing.T) {
	m := NewManager("api", http.NewServeMux(), testConfig(), zap.NewNop())

	require.NoError(t, m.Start())
	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_StartAfterShutdown(t *testing.T) {
	m := NewManager("metrics", http.NewServeMux(), testConfig(), zap.NewNop())

	require.NoError(t, m.Start())
	require.NoError(t, m.Shutdown(context.Background()))

	err := m.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestManager_Addr(t *testing.T) {
	cfg := testConfig()
	cfg.Addr = ":9999"
	m := NewManager("api", http.NewServeMux(), cfg, zap.NewNop())

	assert.Equal(t, ":9999", m.Addr())
}

// --- 批次排空 ---

func TestManager_ShutdownWaitsForRunningBatch(t *testing.T) {
	started := make(chan struct{})
	m := NewManager("api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte("answers"))
	}), testConfig(), zap.NewNop())
	require.NoError(t, m.Start())

	type reply struct {
		body string
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		resp, err := http.Post("http://"+m.Addr()+"/query", "application/json", nil)
		if err != nil {
			done <- reply{err: err}
			return
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		done <- reply{body: string(body)}
	}()
	<-started

	require.NoError(t, m.Shutdown(context.Background()))
	got := <-done
	require.NoError(t, got.err)
	assert.Equal(t, "answers", got.body)
}

func TestManager_ShutdownAbortsBatchAfterTimeout(t *testing.T) {
	started := make(chan struct{})
	aborted := make(chan error, 1)
	cfg := testConfig()
	cfg.ShutdownTimeout = 50 * time.Millisecond
	m := NewManager("api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
		aborted <- r.Context().Err()
	}), cfg, zap.NewNop())
	require.NoError(t, m.Start())

	go func() {
		resp, err := http.Post("http://"+m.Addr()+"/query", "application/json", nil)
		if err == nil {
			resp.Body.Close()
		}
	}()
	<-started

	err := m.Shutdown(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case cause := <-aborted:
		assert.ErrorIs(t, cause, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("running batch was not cancelled")
	}
	assert.False(t, m.IsRunning())
}

func TestManager_ListenError(t *testing.T) {
	first := NewManager("a", http.NewServeMux(), testConfig(), zap.NewNop())
	require.NoError(t, first.Start())
	t.Cleanup(func() { _ = first.Shutdown(context.Background()) })

	cfg := testConfig()
	cfg.Addr = first.Addr()
	second := NewManager("b", http.NewServeMux(), cfg, zap.NewNop())

	err := second.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}

// --- Group ---

func TestGroup_StartWaitShutdown(t *testing.T) {
	api := NewManager("api", okHandler(), testConfig(), zap.NewNop())
	metrics := NewManager("metrics", okHandler(), testConfig(), zap.NewNop())
	g := NewGroup(zap.NewNop(), api, nil, metrics)

	require.NoError(t, g.Start())

	for _, m := range []*Manager{api, metrics} {
		resp, err := http.Get("http://" + m.Addr() + "/")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.NoError(t, g.Wait(ctx))

	require.NoError(t, g.Shutdown(context.Background()))
	assert.False(t, api.IsRunning())
	assert.False(t, metrics.IsRunning())
}

func TestGroup_StartFailureStopsStarted(t *testing.T) {
	api := NewManager("api", okHandler(), testConfig(), zap.NewNop())
	require.NoError(t, api.Start())
	t.Cleanup(func() { _ = api.Shutdown(context.Background()) })

	first := NewManager("first", okHandler(), testConfig(), zap.NewNop())
	cfg := testConfig()
	cfg.Addr = api.Addr()
	clash := NewManager("clash", okHandler(), cfg, zap.NewNop())

	g := NewGroup(nil, first, clash)
	require.Error(t, g.Start())
	assert.False(t, first.IsRunning())
}

func TestGroup_WaitReturnsServerError(t *testing.T) {
	m := NewManager("api", okHandler(), testConfig(), zap.NewNop())
	g := NewGroup(zap.NewNop(), m)
	m.errCh <- assert.AnError

	err := g.Wait(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}
