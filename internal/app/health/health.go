// Package health exposes the readiness surface of a service and the probe
// client the coordinator uses before trusting the capture worker with a
// start command.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Report is the readiness payload. Status is "ready" once the bus
// subscription is established, "starting" before that.
type Report struct {
	Status         string `json:"status"`
	BusConnected   bool   `json:"bus_connected"`
	ActiveCaptures int    `json:"active_captures,omitempty"`
	ArmedTimers    int    `json:"scheduled_jobs,omitempty"`
}

// Serve starts the health listener in a background goroutine: GET /health
// returns the current report, GET /metrics the prometheus registry.
func Serve(addr string, logger *zap.Logger, report func() Report) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, report())
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{Addr: addr, Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server stopped", zap.Error(err))
		}
	}()
	return srv
}

// Prober polls a service's /health endpoint.
type Prober struct {
	url    string
	client *http.Client
}

func NewProber(url string, timeout time.Duration) *Prober {
	return &Prober{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Ready reports whether the probed service answered with status "ready".
func (p *Prober) Ready(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return false, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("health check returned %d", resp.StatusCode)
	}

	var report Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return false, fmt.Errorf("malformed health response: %w", err)
	}
	return report.Status == "ready", nil
}
