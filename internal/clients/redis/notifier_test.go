package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/habitlens-backend/internal/logger"
	"github.com/yungbote/habitlens-backend/internal/types"
)

type payloadRecorder struct {
	mu       sync.Mutex
	payloads []types.ChangePayload
}

func (r *payloadRecorder) record(p types.ChangePayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, p)
}

func (r *payloadRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

func (r *payloadRecorder) last() types.ChangePayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.payloads[len(r.payloads)-1]
}

func newTestNotifier(t *testing.T, channel string) (*ChangeNotifier, *miniredis.Miniredis, *payloadRecorder) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := NewRedisClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = rdb.Close() })

	rec := &payloadRecorder{}
	n, err := NewChangeNotifier(rdb, channel, 50*time.Millisecond, time.Minute, rec.record, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(n.Stop)
	return n, mr, rec
}

func TestChannelNameSanitized(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := NewRedisClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = rdb.Close() })

	cases := []struct {
		name    string
		channel string
		wantErr bool
	}{
		{name: "plain", channel: "health_changes"},
		{name: "namespaced", channel: "habitlens:changes.v1"},
		{name: "space", channel: "health changes", wantErr: true},
		{name: "empty", channel: "", wantErr: true},
		{name: "injection", channel: "ch; FLUSHALL", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewChangeNotifier(rdb, tc.channel, time.Second, time.Minute, func(types.ChangePayload) {}, logger.NewNop())
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStartDeliversValidPayloads(t *testing.T) {
	n, mr, rec := newTestNotifier(t, "habitlens:changes")
	require.NoError(t, n.Start())
	require.Eventually(t, func() bool { return n.State() == StateListening }, 2*time.Second, 10*time.Millisecond)

	rdb := NewRedisClient(mr.Addr(), "", 0)
	defer rdb.Close()
	require.NoError(t, PublishChange(context.Background(), rdb, "habitlens:changes", types.ChangePayload{
		UserID:    "u1",
		BucketDay: "2026-03-14",
	}))

	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "u1", rec.last().UserID)
	assert.Equal(t, "2026-03-14", rec.last().BucketDay)
}

func TestMalformedPayloadDiscardedSilently(t *testing.T) {
	n, mr, rec := newTestNotifier(t, "habitlens:changes")
	require.NoError(t, n.Start())
	require.Eventually(t, func() bool { return n.State() == StateListening }, 2*time.Second, 10*time.Millisecond)

	rdb := NewRedisClient(mr.Addr(), "", 0)
	defer rdb.Close()
	require.NoError(t, rdb.Publish(context.Background(), "habitlens:changes", "{not json").Err())
	require.NoError(t, rdb.Publish(context.Background(), "habitlens:changes", `{"user_id":42}`).Err())
	require.NoError(t, PublishChange(context.Background(), rdb, "habitlens:changes", types.ChangePayload{UserID: "u1"}))

	// Only the valid payload arrives; the listener survives the bad ones.
	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "u1", rec.last().UserID)
}

func TestStartIsIdempotent(t *testing.T) {
	n, _, _ := newTestNotifier(t, "habitlens:changes")
	require.NoError(t, n.Start())
	require.NoError(t, n.Start())
	require.Eventually(t, func() bool { return n.State() == StateListening }, 2*time.Second, 10*time.Millisecond)
}

func TestStopIsTerminal(t *testing.T) {
	n, _, _ := newTestNotifier(t, "habitlens:changes")
	require.NoError(t, n.Start())
	require.Eventually(t, func() bool { return n.State() == StateListening }, 2*time.Second, 10*time.Millisecond)

	n.Stop()
	assert.Equal(t, StateStopped, n.State())
	n.Stop() // second stop is a no-op
	assert.Error(t, n.Start())
}

func TestConnectionLossSchedulesSingleReconnect(t *testing.T) {
	n, mr, rec := newTestNotifier(t, "habitlens:changes")
	require.NoError(t, n.Start())
	require.Eventually(t, func() bool { return n.State() == StateListening }, 2*time.Second, 10*time.Millisecond)

	// Concurrent triggers while a reconnect is pending are no-ops.
	n.scheduleReconnect()
	assert.Equal(t, StateReconnectScheduled, n.State())
	n.scheduleReconnect()
	assert.Equal(t, StateReconnectScheduled, n.State())

	// After the fixed delay the notifier reconnects and keeps delivering.
	require.Eventually(t, func() bool { return n.State() == StateListening }, 2*time.Second, 10*time.Millisecond)

	rdb := NewRedisClient(mr.Addr(), "", 0)
	defer rdb.Close()
	require.NoError(t, PublishChange(context.Background(), rdb, "habitlens:changes", types.ChangePayload{UserID: "u2"}))
	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 10*time.Millisecond)
}
