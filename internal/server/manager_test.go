package server

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

func TestManagerStartAndShutdown(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})
	m := NewManager(handler, testConfig(), zap.NewNop())

	require.NoError(t, m.Start())
	assert.True(t, m.IsRunning())

	require.NoError(t, m.Shutdown(context.Background()))
	assert.False(t, m.IsRunning())
}

func TestManagerDoubleStart(t *testing.T) {
	m := NewManager(http.NewServeMux(), testConfig(), zap.NewNop())

	require.NoError(t, m.Start())
	defer m.Shutdown(context.Background())

	err := m.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")
}

func TestManagerStartAfterClose(t *testing.T) {
	m := NewManager(http.NewServeMux(), testConfig(), zap.NewNop())

	require.NoError(t, m.Start())
	require.NoError(t, m.Shutdown(context.Background()))

	err := m.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestManagerShutdownIdempotent(t *testing.T) {
	m := NewManager(http.NewServeMux(), testConfig(), zap.NewNop())

	require.NoError(t, m.Start())
	require.NoError(t, m.Shutdown(context.Background()))
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestManagerBindFailure(t *testing.T) {
	cfg := testConfig()
	cfg.Addr = "256.256.256.256:99999"
	m := NewManager(http.NewServeMux(), cfg, zap.NewNop())

	assert.Error(t, m.Start())
}
