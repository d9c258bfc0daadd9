package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu    sync.Mutex
	tasks []Task
	fail  bool
}

func (h *recordingHandler) Handle(_ context.Context, msg redis.XMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail {
		return errors.New("boom")
	}
	h.tasks = append(h.tasks, DecodeTask(msg.Values))
	return nil
}

func newTestConsumer(t *testing.T, handler MessageHandler) (*redis.Client, *Consumer) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewConsumer(client, ConsumerOptions{
		Stream:   "media:cleanup",
		Group:    "media-cleanup",
		Consumer: "test",
		Block:    -1,
	}, zerolog.Nop(), handler)
	require.NoError(t, c.EnsureGroup(context.Background()))
	return client, c
}

func TestProducerAndConsumer(t *testing.T) {
	handler := &recordingHandler{}
	client, consumer := newTestConsumer(t, handler)
	ctx := context.Background()

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	_, err := NewProducer(client, "media:cleanup").Enqueue(ctx, DeleteObjectTask("asset-1", "owner/asset-1.png", at))
	require.NoError(t, err)

	n, err := consumer.read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, handler.tasks, 1)
	assert.Equal(t, Task{
		Type:        TypeDeleteObject,
		ObjectKey:   "owner/asset-1.png",
		AssetID:     "asset-1",
		RequestedAt: "2024-01-02T03:04:05Z",
	}, handler.tasks[0])

	pending, err := client.XPending(ctx, "media:cleanup", "media-cleanup").Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestEnsureGroupIsIdempotent(t *testing.T) {
	_, consumer := newTestConsumer(t, &recordingHandler{})
	assert.NoError(t, consumer.EnsureGroup(context.Background()))
}

func TestFailedMessageIsReclaimed(t *testing.T) {
	handler := &recordingHandler{fail: true}
	client, consumer := newTestConsumer(t, handler)
	ctx := context.Background()

	_, err := NewProducer(client, "media:cleanup").Enqueue(ctx, DeleteObjectTask("asset-2", "k", time.Now()))
	require.NoError(t, err)

	n, err := consumer.read(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	pending, err := client.XPending(ctx, "media:cleanup", "media-cleanup").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)

	handler.fail = false
	n, err = consumer.claimStalled(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, handler.tasks, 1)
	assert.Equal(t, "asset-2", handler.tasks[0].AssetID)

	pending, err = client.XPending(ctx, "media:cleanup", "media-cleanup").Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestDecodeTaskIgnoresForeignValues(t *testing.T) {
	task := DecodeTask(map[string]interface{}{"type": "delete_object", "objectKey": 42})
	assert.Equal(t, TypeDeleteObject, task.Type)
	assert.Empty(t, task.ObjectKey)
}
