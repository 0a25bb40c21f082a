// Package broadcast maintains the per-process registry of live subscriber
// sessions and fans fabric deliveries out to them. Subscriptions track
// demand: a fabric topic is subscribed when its first session registers and
// released when its last session leaves.
package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/ArowuTest/xoso-live-backend/internal/config"
	"github.com/ArowuTest/xoso-live-backend/internal/fabric"
	"github.com/ArowuTest/xoso-live-backend/internal/models"
)

// Registry owns every bucket of live sessions, keyed by channel key. It is
// instantiated once per process and guarded by a mutex; no package-level
// state.
type Registry struct {
	cfg    config.StreamConfig
	fabric fabric.Fabric
	logger *slog.Logger

	mu      sync.Mutex
	buckets map[string]*bucket
	closed  bool

	wg sync.WaitGroup
}

type bucket struct {
	key       string
	sessions  map[string]*Session
	delivered map[string]struct{}
	sub       fabric.Subscription
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg config.StreamConfig, fab fabric.Fabric, logger *slog.Logger) *Registry {
	return &Registry{
		cfg:     cfg,
		fabric:  fab,
		logger:  logger,
		buckets: make(map[string]*bucket),
	}
}

// Run starts the maintenance tickers: the periodic dedup-set reset that
// bounds per-key memory, and the idle sweep that drops stale sessions. It
// blocks until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	dedupTicker := time.NewTicker(r.cfg.DedupWindow)
	sweepTicker := time.NewTicker(r.cfg.SweepInterval)
	defer dedupTicker.Stop()
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-dedupTicker.C:
			r.resetDedup()
		case <-sweepTicker.C:
			r.sweepIdle()
		}
	}
}

// Register files a new session under the channel key. The first session of
// a bucket subscribes the fabric topic and starts the bucket's drain
// goroutine.
func (r *Registry) Register(ctx context.Context, key string) (*Session, error) {
	session := newSession(key, r.cfg.SessionBuffer)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, fabric.ErrUnavailable
	}

	b, ok := r.buckets[key]
	if !ok {
		sub, err := r.fabric.Subscribe(ctx, key)
		if err != nil {
			return nil, err
		}
		b = &bucket{
			key:       key,
			sessions:  make(map[string]*Session),
			delivered: make(map[string]struct{}),
			sub:       sub,
		}
		r.buckets[key] = b
		r.wg.Add(1)
		go r.drain(b)
	}
	b.sessions[session.ID] = session
	return session, nil
}

// Deregister removes a session from its bucket synchronously, so a closed
// transport never keeps receiving fan-out writes. The last session out
// releases the bucket's fabric subscription.
func (r *Registry) Deregister(session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(session)
}

func (r *Registry) removeLocked(session *Session) {
	b, ok := r.buckets[session.Key]
	if !ok {
		return
	}
	if _, filed := b.sessions[session.ID]; !filed {
		return
	}
	delete(b.sessions, session.ID)
	session.close()
	if len(b.sessions) == 0 {
		delete(r.buckets, b.key)
		_ = b.sub.Close()
	}
}

// SessionCount reports the live sessions for a key. Used by tests and the
// health endpoint.
func (r *Registry) SessionCount(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buckets[key]
	if !ok {
		return 0
	}
	return len(b.sessions)
}

// drain consumes fabric deliveries for one bucket and replicates each to
// every session in it. It exits when the subscription channel closes.
func (r *Registry) drain(b *bucket) {
	defer r.wg.Done()
	for msg := range b.sub.Messages() {
		var live models.LiveMessage
		if err := json.Unmarshal(msg.Payload, &live); err != nil {
			r.logger.Warn("dropping malformed fabric message", "key", b.key, "error", err)
			continue
		}
		if r.suppressed(b, live) {
			continue
		}
		r.fanOut(b, live)
	}
}

// suppressed records the (slot, value) pair in the bucket's dedup set and
// reports whether it was already delivered within the window.
func (r *Registry) suppressed(b *bucket, live models.LiveMessage) bool {
	dedupKey := live.PrizeType + "|" + live.PrizeData
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, seen := b.delivered[dedupKey]; seen {
		return true
	}
	b.delivered[dedupKey] = struct{}{}
	return false
}

// fanOut replicates one message to the bucket's sessions in fixed-size
// chunks with a scheduler yield between them, so one large broadcast never
// monopolizes the scheduler. A failed session is dropped and the loop
// continues for the rest.
func (r *Registry) fanOut(b *bucket, live models.LiveMessage) {
	r.mu.Lock()
	targets := make([]*Session, 0, len(b.sessions))
	for _, s := range b.sessions {
		targets = append(targets, s)
	}
	r.mu.Unlock()

	chunk := r.cfg.FanoutChunkSize
	if chunk <= 0 {
		chunk = 64
	}

	var dead []*Session
	for i, s := range targets {
		if i > 0 && i%chunk == 0 {
			runtime.Gosched()
		}
		if !s.send(live) {
			dead = append(dead, s)
		}
	}

	if len(dead) > 0 {
		r.mu.Lock()
		for _, s := range dead {
			r.removeLocked(s)
		}
		r.mu.Unlock()
		r.logger.Info("dropped dead sessions during fan-out", "key", b.key, "count", len(dead))
	}
}

// resetDedup clears every bucket's recently-delivered set.
func (r *Registry) resetDedup() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.buckets {
		b.delivered = make(map[string]struct{})
	}
}

// sweepIdle drops sessions with no transport activity past the idle
// threshold, releasing subscriptions for buckets left empty.
func (r *Registry) sweepIdle() {
	cutoff := time.Now().Add(-r.cfg.IdleTimeout)

	r.mu.Lock()
	var stale []*Session
	for _, b := range r.buckets {
		for _, s := range b.sessions {
			if s.idleSince().Before(cutoff) {
				stale = append(stale, s)
			}
		}
	}
	for _, s := range stale {
		r.removeLocked(s)
	}
	r.mu.Unlock()

	if len(stale) > 0 {
		r.logger.Info("idle sweep removed sessions", "count", len(stale))
	}
}

// Close deregisters every session and releases every subscription, then
// waits for the drain goroutines to finish.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	for _, b := range r.buckets {
		for _, s := range b.sessions {
			s.close()
		}
		_ = b.sub.Close()
	}
	r.buckets = make(map[string]*bucket)
	r.mu.Unlock()
	r.wg.Wait()
}
