package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProber_Ready(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ready","bus_connected":true,"active_captures":2}`))
	}))
	defer srv.Close()

	p := NewProber(srv.URL, 2*time.Second)
	ready, err := p.Ready(context.Background())
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestProber_NotReadyWhileStarting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"status":"starting","bus_connected":false}`))
	}))
	defer srv.Close()

	p := NewProber(srv.URL, 2*time.Second)
	ready, err := p.Ready(context.Background())
	require.NoError(t, err)
	assert.False(t, ready)
}

func TestProber_ErrorOnNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewProber(srv.URL, 2*time.Second)
	ready, err := p.Ready(context.Background())
	assert.Error(t, err)
	assert.False(t, ready)
}

func TestProber_ErrorWhenUnreachable(t *testing.T) {
	p := NewProber("http://127.0.0.1:1/health", 200*time.Millisecond)
	ready, err := p.Ready(context.Background())
	assert.Error(t, err)
	assert.False(t, ready)
}
