package streaming

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPublishSubscribe(t *testing.T) {
	m := NewManager(nil, zap.NewNop())

	ch := m.Subscribe("run-1", 8)
	defer m.Unsubscribe("run-1", ch)

	m.Publish("run-1", Event{Type: EventRunStarted, Message: "starting"})
	m.Publish("run-2", Event{Type: EventRunStarted, Message: "other run"})

	select {
	case evt := <-ch:
		assert.Equal(t, EventRunStarted, evt.Type)
		assert.Equal(t, "run-1", evt.RunID)
		assert.Equal(t, uint64(1), evt.Seq)
		assert.False(t, evt.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}

	select {
	case evt := <-ch:
		t.Fatalf("unexpected cross-run event: %+v", evt)
	default:
	}
}

func TestReplaySince(t *testing.T) {
	m := NewManager(nil, zap.NewNop())

	for i := 0; i < 5; i++ {
		m.Publish("run-1", Event{Type: EventRoundStarted, Round: i + 1})
	}

	replay := m.ReplaySince("run-1", 3)
	require.Len(t, replay, 2)
	assert.Equal(t, uint64(4), replay[0].Seq)
	assert.Equal(t, uint64(5), replay[1].Seq)

	assert.Nil(t, m.ReplaySince("unknown", 0))
}

func TestRingOverflow(t *testing.T) {
	m := NewManager(nil, zap.NewNop())
	m.SetRingCapacity(4)

	for i := 0; i < 10; i++ {
		m.Publish("run-1", Event{Type: EventKeepAlive})
	}

	replay := m.ReplaySince("run-1", 0)
	require.Len(t, replay, 4, "ring keeps only the newest events")
	assert.Equal(t, uint64(7), replay[0].Seq)
	assert.Equal(t, uint64(10), replay[3].Seq)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	m := NewManager(nil, zap.NewNop())

	ch := m.Subscribe("run-1", 1)
	defer m.Unsubscribe("run-1", ch)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			m.Publish("run-1", Event{Type: EventKeepAlive})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestPublishDuringSubscriberChurn(t *testing.T) {
	m := NewManager(nil, zap.NewNop())

	// a held subscriber keeps the run's fanout map alive across the churn
	held := m.Subscribe("run-1", 256)
	defer m.Unsubscribe("run-1", held)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			ch := m.Subscribe("run-1", 1)
			m.Unsubscribe("run-1", ch)
		}
		close(done)
	}()

	for i := 0; i < 200; i++ {
		m.Publish("run-1", Event{Type: EventKeepAlive})
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber churn did not finish")
	}

	// the held subscriber saw a prefix of the publishes in order
	var last uint64
	for {
		select {
		case evt := <-held:
			assert.Greater(t, evt.Seq, last)
			last = evt.Seq
		default:
			assert.NotZero(t, last, "held subscriber received no events")
			return
		}
	}
}

func TestForget(t *testing.T) {
	m := NewManager(nil, zap.NewNop())
	ch := m.Subscribe("run-1", 1)
	m.Publish("run-1", Event{Type: EventRunCompleted})

	m.Forget("run-1")

	_, open := <-ch
	assert.False(t, open, "subscriber channel closed on Forget")
	assert.Nil(t, m.ReplaySince("run-1", 0))
}

func TestRedisMirror(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	m := NewManager(rdb, zap.NewNop())
	m.Publish("run-1", Event{Type: EventRunStarted, Message: "starting"})
	m.Publish("run-1", Event{Type: EventRoundStarted, Round: 1})

	ctx := context.Background()
	entries, err := rdb.XRange(ctx, StreamKey("run-1"), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, string(EventRunStarted), entries[0].Values["type"])
	assert.Contains(t, entries[1].Values["payload"], `"ROUND_STARTED"`)

	ttl := mr.TTL(StreamKey("run-1"))
	assert.Greater(t, ttl, time.Duration(0), "mirrored stream carries a TTL")
}
