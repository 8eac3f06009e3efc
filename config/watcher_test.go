package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWatcher_RequiresPath(t *testing.T) {
	_, err := NewWatcher(NewLoader())
	assert.Error(t, err)
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0o644))

	w, err := NewWatcher(NewLoader().WithConfigPath(path),
		WithPollInterval(10*time.Millisecond),
		WithDebounceDelay(5*time.Millisecond))
	require.NoError(t, err)

	var level atomic.Value
	w.OnReload(func(c *Config) { level.Store(c.Log.Level) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// 无效配置被拒绝，不触发回调
	future := time.Now().Add(time.Second)
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: loud\n"), 0o644))
	require.NoError(t, os.Chtimes(path, future, future))
	time.Sleep(80 * time.Millisecond)
	assert.Nil(t, level.Load())

	future = future.Add(time.Second)
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644))
	require.NoError(t, os.Chtimes(path, future, future))
	assert.Eventually(t, func() bool { return level.Load() == "debug" }, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
