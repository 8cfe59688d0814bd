package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"testing"
	"time"

	"beacon/config"
	deliverycontext "beacon/internal/delivery/context"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newBufferedGormLogger(debug bool) (*bytes.Buffer, logger.Interface) {
	var buf bytes.Buffer
	cfg := &config.Config{}
	cfg.Env.Debug = debug

	return &buf, newGormSlogLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), cfg)
}

func TestGormSlogLogger_TraceCarriesRequestID(t *testing.T) {
	buf, l := newBufferedGormLogger(true)
	ctx := deliverycontext.WithRequestID(context.Background(), "req-1")

	l.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)

	assert.Contains(t, buf.String(), `"request_id":"req-1"`)
	assert.Contains(t, buf.String(), `"msg":"GORM query"`)
}

func TestGormSlogLogger_IgnoresRecordNotFound(t *testing.T) {
	buf, l := newBufferedGormLogger(false)

	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT", 0 }, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String())

	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT", 0 }, errors.New("boom"))
	assert.Contains(t, buf.String(), "GORM query failed")
}

func TestGormSlogLogger_SlowQuery(t *testing.T) {
	buf, l := newBufferedGormLogger(false)

	l.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) { return "SELECT pg_sleep(1)", 1 }, nil)
	assert.Contains(t, buf.String(), "GORM slow query")
}

func TestPoolMonitor_ReportsOnlyNewWaits(t *testing.T) {
	var buf bytes.Buffer
	m := &poolMonitor{logger: slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}

	m.report(context.Background(), sql.DBStats{WaitCount: 3}, sql.DBStats{WaitCount: 3})
	assert.Empty(t, buf.String())

	m.report(context.Background(),
		sql.DBStats{WaitCount: 3, WaitDuration: time.Millisecond},
		sql.DBStats{WaitCount: 5, WaitDuration: 101 * time.Millisecond},
	)
	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Contains(t, buf.String(), `"waits":2`)
}
