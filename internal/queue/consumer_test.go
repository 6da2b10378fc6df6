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
	mu      sync.Mutex
	seen    []string
	fail    bool
	discard bool
}

func (h *recordingHandler) Handle(_ context.Context, msg redis.XMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, msg.Values["to"].(string))
	if h.discard {
		return Discard(errors.New("550 mailbox unavailable"))
	}
	if h.fail {
		return errors.New("smtp down")
	}
	return nil
}

func newTestConsumer(t *testing.T, handler MessageHandler) (*Consumer, *redis.Client) {
	t.Helper()
	c, client, _ := newTestConsumerWithServer(t, handler)
	return c, client
}

func newTestConsumerWithServer(t *testing.T, handler MessageHandler) (*Consumer, *redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewConsumer(client, "mail:outbound", "mail-workers", "worker-1", time.Minute, 3, zerolog.Nop(), handler)
	c.block = 10 * time.Millisecond
	require.NoError(t, c.EnsureGroup(context.Background()))
	return c, client, mr
}

func TestConsumer_EnsureGroupIdempotent(t *testing.T) {
	c, _ := newTestConsumer(t, &recordingHandler{})
	require.NoError(t, c.EnsureGroup(context.Background()))
}

func TestConsumer_HandledEntriesAreDeleted(t *testing.T) {
	handler := &recordingHandler{}
	c, client := newTestConsumer(t, handler)
	ctx := context.Background()

	for _, to := range []string{"a@campus.test", "b@campus.test"} {
		require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
			Stream: "mail:outbound",
			Values: map[string]any{"type": "mail", "to": to},
		}).Err())
	}

	require.NoError(t, c.read(ctx))

	assert.Equal(t, []string{"a@campus.test", "b@campus.test"}, handler.seen)

	n, err := client.XLen(ctx, "mail:outbound").Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConsumer_FailedEntriesStayPending(t *testing.T) {
	handler := &recordingHandler{fail: true}
	c, client := newTestConsumer(t, handler)
	ctx := context.Background()

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: "mail:outbound",
		Values: map[string]any{"type": "mail", "to": "a@campus.test"},
	}).Err())

	require.NoError(t, c.read(ctx))

	pending, err := client.XPending(ctx, "mail:outbound", "mail-workers").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)

	n, err := client.XLen(ctx, "mail:outbound").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestConsumer_EmptyStream(t *testing.T) {
	c, _ := newTestConsumer(t, &recordingHandler{})
	require.NoError(t, c.read(context.Background()))
}

func TestConsumer_DiscardedEntriesAreDeleted(t *testing.T) {
	handler := &recordingHandler{discard: true}
	c, client := newTestConsumer(t, handler)
	ctx := context.Background()

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: "mail:outbound",
		Values: map[string]any{"type": "mail", "to": "nobody@campus.test", "body": "code 1234"},
	}).Err())

	require.NoError(t, c.read(ctx))

	n, err := client.XLen(ctx, "mail:outbound").Result()
	require.NoError(t, err)
	assert.Zero(t, n)

	pending, err := client.XPending(ctx, "mail:outbound", "mail-workers").Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestConsumer_ExhaustedEntriesAreDropped(t *testing.T) {
	handler := &recordingHandler{fail: true}
	c, client, mr := newTestConsumerWithServer(t, handler)
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mr.SetTime(start)

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: "mail:outbound",
		Values: map[string]any{"type": "mail", "to": "a@campus.test", "body": "secret-abc"},
	}).Err())
	require.NoError(t, c.read(ctx))

	for i := 1; i <= 10; i++ {
		mr.SetTime(start.Add(time.Duration(i) * 2 * time.Minute))
		require.NoError(t, c.claimStalled(ctx))
	}

	assert.Len(t, handler.seen, 3, "one read plus two claims before the limit")

	n, err := client.XLen(ctx, "mail:outbound").Result()
	require.NoError(t, err)
	assert.Zero(t, n)

	pending, err := client.XPending(ctx, "mail:outbound", "mail-workers").Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestConsumer_StalledEntryIsRetried(t *testing.T) {
	handler := &recordingHandler{fail: true}
	c, client, mr := newTestConsumerWithServer(t, handler)
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mr.SetTime(start)

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: "mail:outbound",
		Values: map[string]any{"type": "mail", "to": "a@campus.test"},
	}).Err())
	require.NoError(t, c.read(ctx))

	// Not idle long enough yet.
	mr.SetTime(start.Add(30 * time.Second))
	require.NoError(t, c.claimStalled(ctx))
	assert.Len(t, handler.seen, 1)

	handler.fail = false
	mr.SetTime(start.Add(2 * time.Minute))
	require.NoError(t, c.claimStalled(ctx))
	assert.Len(t, handler.seen, 2)

	n, err := client.XLen(ctx, "mail:outbound").Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}
