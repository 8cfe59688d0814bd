package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"beacon/config"

	"go.uber.org/fx"
)

// LivenessParams holds dependencies for the LivenessMonitor, injected by Fx.
type LivenessParams struct {
	fx.In

	Lc       fx.Lifecycle
	Config   *config.Config
	Logger   *slog.Logger
	Registry *Registry
}

// LivenessMonitor pings every connection on a fixed interval and reaps the ones
// that left the previous ping unanswered.
type LivenessMonitor struct {
	registry *Registry
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewLivenessMonitor creates the monitor and ties its loop to the application lifecycle.
func NewLivenessMonitor(params LivenessParams) *LivenessMonitor {
	monitor := newLivenessMonitor(params.Registry, params.Config.Realtime.HeartbeatInterval, params.Logger)

	params.Lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			monitor.Start()

			return nil
		},
		OnStop: func(context.Context) error {
			monitor.Stop()

			return nil
		},
	})

	return monitor
}

func newLivenessMonitor(registry *Registry, interval time.Duration, logger *slog.Logger) *LivenessMonitor {
	return &LivenessMonitor{
		registry: registry,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the heartbeat loop. Calling Start on a running monitor is a no-op.
func (m *LivenessMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.run(ctx, m.done)

	m.logger.Info("[Liveness] Monitor started", slog.Duration("interval", m.interval))
}

// Stop ends the heartbeat loop and waits for it to exit.
func (m *LivenessMonitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done

	m.logger.Info("[Liveness] Monitor stopped")
}

func (m *LivenessMonitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep performs one ping/reap pass and returns how many connections were reaped.
// A connection that never answers is therefore gone after at most two intervals.
func (m *LivenessMonitor) Sweep() int {
	reaped := 0

	for _, conn := range m.registry.All() {
		if !conn.IsOpen() || conn.AwaitingPong() {
			conn.Terminate()
			m.registry.Remove(conn)
			reaped++

			m.logger.Info("[Liveness] Reaped unresponsive connection",
				slog.String("user_id", conn.UserID().String()),
				slog.String("connection_id", conn.ID()),
			)

			continue
		}

		if err := conn.Ping(); err != nil {
			conn.Terminate()
			m.registry.Remove(conn)
			reaped++

			m.logger.Warn("[Liveness] Ping failed",
				slog.String("connection_id", conn.ID()),
				slog.Any("error", err),
			)
		}
	}

	if reaped > 0 {
		m.logger.Debug("[Liveness] Sweep finished",
			slog.Int("reaped", reaped),
			slog.Int("remaining", m.registry.ConnectionCount()),
		)
	}

	return reaped
}
