package realtime

import (
	"testing"
	"time"

	"beacon/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/fx/fxtest"
)

func TestLivenessMonitor_ReapsWithinTwoSweeps(t *testing.T) {
	registry := NewRegistry(discardLogger())
	monitor := newLivenessMonitor(registry, time.Minute, discardLogger())

	userID := uuid.New()
	silent, silentTransport := newTestConnection(userID)
	responsive, responsiveTransport := newTestConnection(userID)
	registry.Add(silent)
	registry.Add(responsive)

	assert.Zero(t, monitor.Sweep())
	assert.True(t, silent.AwaitingPong())
	assert.Equal(t, 1, silentTransport.Pings())
	assert.Equal(t, 1, responsiveTransport.Pings())

	responsive.Pong()

	assert.Equal(t, 1, monitor.Sweep())
	assert.False(t, silent.IsOpen())
	assert.True(t, silentTransport.Closed())
	assert.Equal(t, []*Connection{responsive}, registry.Connections(userID))
	assert.Equal(t, 2, responsiveTransport.Pings())
}

func TestLivenessMonitor_PingFailureReaps(t *testing.T) {
	registry := NewRegistry(discardLogger())
	monitor := newLivenessMonitor(registry, time.Minute, discardLogger())

	conn, transport := newTestConnection(uuid.New())
	transport.pingErr = errBrokenPipe
	registry.Add(conn)

	assert.Equal(t, 1, monitor.Sweep())
	assert.Zero(t, registry.ConnectionCount())
}

func TestLivenessMonitor_LifecycleRunsTicker(t *testing.T) {
	registry := NewRegistry(discardLogger())
	conn, transport := newTestConnection(uuid.New())
	registry.Add(conn)

	cfg := &config.Config{}
	cfg.Realtime.HeartbeatInterval = 10 * time.Millisecond

	lc := fxtest.NewLifecycle(t)
	NewLivenessMonitor(LivenessParams{
		Lc:       lc,
		Config:   cfg,
		Logger:   discardLogger(),
		Registry: registry,
	})

	lc.RequireStart()
	assert.Eventually(t, func() bool {
		return registry.ConnectionCount() == 0
	}, time.Second, 5*time.Millisecond)
	lc.RequireStop()

	assert.True(t, transport.Closed())
}
