package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// GatewayHealth is the slice of the gateway client the monitor drives.
type GatewayHealth interface {
	Health(ctx context.Context) bool
	MockMode() bool
	SetMockMode(on bool)
}

// HealthMonitor probes the remote tool service on a cron schedule and
// flips the gateway in and out of mock mode. An unhealthy service is not
// an error: the assistant keeps answering with synthetic data until the
// service returns.
type HealthMonitor struct {
	gateway  GatewayHealth
	schedule string
	forced   bool // operator forced mock mode, never flip back
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewHealthMonitor creates a monitor. schedule is a cron spec, e.g.
// "@every 1m". When forced is true, the monitor leaves mock mode alone.
func NewHealthMonitor(gw GatewayHealth, schedule string, forced bool, logger *slog.Logger) *HealthMonitor {
	if schedule == "" {
		schedule = "@every 1m"
	}
	return &HealthMonitor{
		gateway:  gw,
		schedule: schedule,
		forced:   forced,
		logger:   logger,
	}
}

// Probe runs one health check and updates mock mode.
func (m *HealthMonitor) Probe(ctx context.Context) {
	if m.forced {
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	healthy := m.gateway.Health(probeCtx)
	if healthy == m.gateway.MockMode() {
		// State change: healthy while mocked, or unhealthy while live.
		m.logger.Info("tool service health changed", "healthy", healthy)
		m.gateway.SetMockMode(!healthy)
	}
}

// Start probes once immediately and then on the configured schedule.
func (m *HealthMonitor) Start(ctx context.Context) error {
	m.Probe(ctx)

	m.cron = cron.New()
	_, err := m.cron.AddFunc(m.schedule, func() { m.Probe(ctx) })
	if err != nil {
		return err
	}
	m.cron.Start()

	go func() {
		<-ctx.Done()
		m.Stop()
	}()
	return nil
}

// Stop halts scheduled probes.
func (m *HealthMonitor) Stop() {
	if m.cron != nil {
		m.cron.Stop()
	}
}
