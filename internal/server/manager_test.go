package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/genflow/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func testManager(name string) *Manager {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.ShutdownTimeout = time.Second
	return NewManager(name, okHandler(), cfg, zap.NewNop())
}

// --- Config ---

func TestConfigFrom(t *testing.T) {
	sc := config.DefaultServerConfig()
	sc.WriteTimeout = 150 * time.Second
	sc.TLSCertFile = "cert.pem"
	sc.TLSKeyFile = "key.pem"

	cfg := ConfigFrom(sc, 9091)
	assert.Equal(t, ":9091", cfg.Addr)
	assert.Equal(t, 150*time.Second, cfg.WriteTimeout)
	assert.Equal(t, sc.ShutdownTimeout, cfg.ShutdownTimeout)
	assert.Equal(t, 10*time.Second, cfg.ReadHeaderTimeout)
	assert.Equal(t, "cert.pem", cfg.TLSCertFile)
}

// --- Start / Shutdown lifecycle ---

func TestManager_StartAndShutdown(t *testing.T) {
	m := testManager("api")
	assert.False(t, m.IsRunning())
	assert.Empty(t, m.ListenAddr())

	require.NoError(t, m.Start())
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	assert.True(t, m.IsRunning())

	resp, err := http.Get("http://" + m.ListenAddr() + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	require.NoError(t, m.Shutdown(context.Background()))
	assert.False(t, m.IsRunning())
	// 重复关闭是空操作
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_DoubleStart(t *testing.T) {
	m := testManager("api")
	require.NoError(t, m.Start())
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	err := m.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")
}

func TestManager_StartAfterShutdown(t *testing.T) {
	m := testManager("api")
	require.NoError(t, m.Start())
	require.NoError(t, m.Shutdown(context.Background()))

	err := m.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestManager_PortInUse(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	cfg := DefaultConfig()
	cfg.Addr = l.Addr().String()
	m := NewManager("api", okHandler(), cfg, nil)
	assert.Error(t, m.Start())
}

func TestManager_TLSMissingKeyPair(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.TLSCertFile = "/nonexistent/cert.pem"
	cfg.TLSKeyFile = "/nonexistent/key.pem"
	m := NewManager("api", okHandler(), cfg, zap.NewNop())

	assert.Error(t, m.Start())
	assert.False(t, m.IsRunning())
}

// --- Run ---

func TestRun_ShutsDownOnCancel(t *testing.T) {
	api := testManager("api")
	metrics := testManager("metrics")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, zap.NewNop(), api, metrics) }()

	require.Eventually(t, func() bool { return api.IsRunning() && metrics.IsRunning() }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, api.IsRunning())
	assert.False(t, metrics.IsRunning())
}

func TestRun_StartFailureStopsStarted(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	api := testManager("api")
	cfg := DefaultConfig()
	cfg.Addr = l.Addr().String()
	busy := NewManager("metrics", okHandler(), cfg, zap.NewNop())

	err = Run(context.Background(), zap.NewNop(), api, busy)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start metrics")
	assert.False(t, api.IsRunning())
}
