package notification

import (
	"context"
	"log/slog"
	"strconv"
	"testing"

	"beacon/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkTokens(t *testing.T) {
	tokens := make([]string, 1201)
	for i := range tokens {
		tokens[i] = "t" + strconv.Itoa(i)
	}

	chunks := chunkTokens(tokens, firebaseBatchSize)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 500)
	assert.Len(t, chunks[1], 500)
	assert.Len(t, chunks[2], 201)
	assert.Equal(t, "t1200", chunks[2][200])

	assert.Nil(t, chunkTokens(nil, firebaseBatchSize))
}

func TestNewPushService_NoopWhenUnconfigured(t *testing.T) {
	svc, err := NewPushService(Params{
		Ctx:    context.Background(),
		Config: &config.Config{},
		Logger: slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)

	success, failure, invalid, err := svc.SendBatchNotification(context.Background(), []string{"a"}, "t", "b", nil)
	assert.NoError(t, err)
	assert.Zero(t, success)
	assert.Zero(t, failure)
	assert.Empty(t, invalid)
}
