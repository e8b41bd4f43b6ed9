package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, port int) *Server {
	t.Helper()
	server := NewServer(port, zerolog.Nop())
	require.NoError(t, server.Start())
	time.Sleep(100 * time.Millisecond)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	})
	return server
}

func TestHealthEndpoint(t *testing.T) {
	port := 19997
	startTestServer(t, port)

	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/health", port))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"status":"healthy"`)
	assert.Contains(t, string(body), `"timestamp"`)
}

func TestMetricsEndpoint(t *testing.T) {
	port := 19996
	startTestServer(t, port)

	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/metrics", port))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "# HELP")
	assert.Contains(t, string(body), "# TYPE")
}

func TestServerShutdown(t *testing.T) {
	port := 19995
	server := NewServer(port, zerolog.Nop())
	require.NoError(t, server.Start())
	time.Sleep(100 * time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/health", port))
	require.NoError(t, err)
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))

	time.Sleep(100 * time.Millisecond)
	resp2, err := http.Get(fmt.Sprintf("http://localhost:%d/health", port))
	if resp2 != nil {
		resp2.Body.Close()
	}
	assert.Error(t, err)
}

func TestShutdownWithoutStart(t *testing.T) {
	server := NewServer(19994, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.Shutdown(ctx))
}
