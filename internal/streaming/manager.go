// Package streaming fans research-run progress events out to in-process
// subscribers (SSE/WS handlers) and, when a Redis client is supplied, mirrors
// them onto a Redis Stream so external consumers can tail a run.
package streaming

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultRingCapacity = 256

	// mirrored stream entries expire with the run; cap length so an
	// abandoned consumer cannot grow Redis unbounded
	mirrorMaxLen = 1024
	mirrorTTL    = 24 * time.Hour
)

// Manager provides per-run pub/sub with bounded replay. The zero Redis
// client is valid; mirroring is then disabled.
type Manager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	history     map[string]*ring
	capacity    int

	rdb    *redis.Client
	logger *zap.Logger
}

// NewManager builds a streaming manager. rdb may be nil.
func NewManager(rdb *redis.Client, logger *zap.Logger) *Manager {
	return &Manager{
		subscribers: make(map[string]map[chan Event]struct{}),
		history:     make(map[string]*ring),
		capacity:    defaultRingCapacity,
		rdb:         rdb,
		logger:      logger,
	}
}

// SetRingCapacity overrides replay capacity for rings created afterwards.
func (m *Manager) SetRingCapacity(n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.capacity = n
	m.mu.Unlock()
}

// Subscribe registers a buffered channel for a run's events. The caller must
// drain it and call Unsubscribe when done.
func (m *Manager) Subscribe(runID string, buffer int) chan Event {
	ch := make(chan Event, buffer)
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.subscribers[runID]
	if subs == nil {
		subs = make(map[chan Event]struct{})
		m.subscribers[runID] = subs
	}
	subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (m *Manager) Unsubscribe(runID string, ch chan Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if subs, ok := m.subscribers[runID]; ok {
		if _, found := subs[ch]; found {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(m.subscribers, runID)
		}
	}
}

// Publish assigns the event a sequence number, stores it for replay, fans it
// out to subscribers (dropping to slow ones) and mirrors it to Redis.
func (m *Manager) Publish(runID string, evt Event) {
	evt.RunID = runID
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	m.mu.Lock()
	rg := m.history[runID]
	if rg == nil {
		rg = newRing(m.capacity)
		m.history[runID] = rg
	}
	rg.nextSeq++
	evt.Seq = rg.nextSeq
	rg.push(evt)
	m.mu.Unlock()

	// fan out under the read lock: Subscribe/Unsubscribe mutate the map and
	// close channels from handler goroutines, and both need the write lock.
	// Sends are non-blocking, so holding RLock here cannot deadlock.
	m.mu.RLock()
	for ch := range m.subscribers[runID] {
		select {
		case ch <- evt:
		default:
			// slow subscriber, drop
		}
	}
	m.mu.RUnlock()

	m.mirror(runID, evt)
}

// ReplaySince returns buffered events with Seq > since, best-effort within
// ring capacity.
func (m *Manager) ReplaySince(runID string, since uint64) []Event {
	m.mu.RLock()
	rg := m.history[runID]
	m.mu.RUnlock()
	if rg == nil {
		return nil
	}
	return rg.since(since)
}

// Forget drops replay history and subscribers for a finished run.
func (m *Manager) Forget(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ch := range m.subscribers[runID] {
		close(ch)
	}
	delete(m.subscribers, runID)
	delete(m.history, runID)
}

// StreamKey is the Redis Stream key carrying a run's mirrored events.
func StreamKey(runID string) string {
	return "deepresearch:events:" + runID
}

func (m *Manager) mirror(runID string, evt Event) {
	if m.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := StreamKey(runID)
	err := m.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		MaxLen: mirrorMaxLen,
		Approx: true,
		Values: map[string]any{
			"type":    string(evt.Type),
			"seq":     evt.Seq,
			"payload": string(evt.Marshal()),
		},
	}).Err()
	if err != nil {
		m.logger.Warn("event mirror failed",
			zap.String("run_id", runID),
			zap.String("type", string(evt.Type)),
			zap.Error(err),
		)
		return
	}
	m.rdb.Expire(ctx, key, mirrorTTL)
}

// ring is a fixed-capacity replay buffer.
type ring struct {
	buf     []Event
	start   int
	count   int
	nextSeq uint64
}

func newRing(capacity int) *ring { return &ring{buf: make([]Event, capacity)} }

func (r *ring) push(e Event) {
	if len(r.buf) == 0 {
		return
	}
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = e
		r.count++
		return
	}
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) since(seq uint64) []Event {
	if r.count == 0 {
		return nil
	}
	out := make([]Event, 0, r.count)
	for i := 0; i < r.count; i++ {
		ev := r.buf[(r.start+i)%len(r.buf)]
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}
