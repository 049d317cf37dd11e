package deploy

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/charmbracelet/log"
)

// HealthMonitor probes the serving address on a fixed interval. It holds no
// shared state with the server; cancellation of ctx is the only stop signal.
type HealthMonitor struct {
	addr        string
	interval    time.Duration
	dialTimeout time.Duration
	logger      *log.Logger
}

func NewHealthMonitor(host string, port int, interval time.Duration, logger *log.Logger) *HealthMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &HealthMonitor{
		addr:        fmt.Sprintf("%s:%d", host, port),
		interval:    interval,
		dialTimeout: 5 * time.Second,
		logger:      logger,
	}
}

// Run blocks until ctx is canceled.
func (h *HealthMonitor) Run(ctx context.Context) {
	h.logger.Info("health monitoring started", "addr", h.addr, "interval", h.interval)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("health monitoring stopped")
			return
		case <-ticker.C:
			h.probe()
		}
	}
}

func (h *HealthMonitor) probe() {
	conn, err := net.DialTimeout("tcp", h.addr, h.dialTimeout)
	if err != nil {
		h.logger.Warn("health check: system not responding", "addr", h.addr, "err", err)
		return
	}
	conn.Close()
	h.logger.Debug("health check: system responsive", "addr", h.addr)
}
