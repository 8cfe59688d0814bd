package handler

import (
	"net/http"
	"time"

	"beacon/internal/realtime"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
)

// StatsHandler exposes liveness and registry counters.
type StatsHandler struct {
	registry  *realtime.Registry
	startedAt time.Time
}

// NewStatsHandler is the constructor for StatsHandler.
func NewStatsHandler(registry *realtime.Registry) *StatsHandler {
	return &StatsHandler{registry: registry, startedAt: time.Now()}
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	realtime.Stats
	Traffic string `json:"traffic"`
	Uptime  string `json:"uptime"`
}

func (h *StatsHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *StatsHandler) Stats(c echo.Context) error {
	stats := h.registry.Stats()

	return c.JSON(http.StatusOK, StatsResponse{
		Stats:   stats,
		Traffic: humanize.IBytes(uint64(max(stats.BytesSent, 0))),
		Uptime:  time.Since(h.startedAt).Round(time.Second).String(),
	})
}
