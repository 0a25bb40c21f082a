package fabric

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryFabric is an in-process Fabric used by tests and by single-node
// development runs without a Redis instance. Expiries are honoured lazily
// on read.
type MemoryFabric struct {
	mu      sync.Mutex
	hashes  map[string]map[string]string
	strings map[string]memoryValue
	leases  map[string]string
	subs    map[string]map[*memorySubscription]struct{}
	closed  bool
}

type memoryValue struct {
	value     string
	expiresAt time.Time
}

// NewMemoryFabric creates an empty in-memory fabric.
func NewMemoryFabric() *MemoryFabric {
	return &MemoryFabric{
		hashes:  make(map[string]map[string]string),
		strings: make(map[string]memoryValue),
		leases:  make(map[string]string),
		subs:    make(map[string]map[*memorySubscription]struct{}),
	}
}

func (f *MemoryFabric) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.hashes[key]))
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (f *MemoryFabric) HSet(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := f.hashes[key]
	if h == nil {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (f *MemoryFabric) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mv, ok := f.strings[key]
	if !ok {
		return "", nil
	}
	if !mv.expiresAt.IsZero() && time.Now().After(mv.expiresAt) {
		delete(f.strings, key)
		return "", nil
	}
	return mv.value, nil
}

func (f *MemoryFabric) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	mv := memoryValue{value: value}
	if ttl > 0 {
		mv.expiresAt = time.Now().Add(ttl)
	}
	f.strings[key] = mv
	return nil
}

func (f *MemoryFabric) Publish(ctx context.Context, topic string, payload []byte) error {
	f.mu.Lock()
	subs := make([]*memorySubscription, 0, len(f.subs[topic]))
	for s := range f.subs[topic] {
		subs = append(subs, s)
	}
	f.mu.Unlock()

	msg := Message{Topic: topic, Payload: payload}
	for _, s := range subs {
		select {
		case s.out <- msg:
		default:
			// a slow test subscriber drops rather than deadlocks
		}
	}
	return nil
}

func (f *MemoryFabric) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrUnavailable
	}
	sub := &memorySubscription{fabric: f, topic: topic, out: make(chan Message, 64)}
	if f.subs[topic] == nil {
		f.subs[topic] = make(map[*memorySubscription]struct{})
	}
	f.subs[topic][sub] = struct{}{}
	return sub, nil
}

// SubscriberCount reports the live subscriptions for a topic. Test helper.
func (f *MemoryFabric) SubscriberCount(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[topic])
}

func (f *MemoryFabric) AcquireLease(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, held := f.leases[key]; held {
		return nil, ErrLeaseHeld
	}
	token := uuid.NewString()
	f.leases[key] = token
	return &memoryLease{fabric: f, key: key, token: token}, nil
}

func (f *MemoryFabric) Ping(ctx context.Context) error { return nil }

func (f *MemoryFabric) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	for _, subs := range f.subs {
		for s := range subs {
			close(s.out)
		}
	}
	f.subs = make(map[string]map[*memorySubscription]struct{})
	return nil
}

type memorySubscription struct {
	fabric *MemoryFabric
	topic  string
	out    chan Message
	once   sync.Once
}

func (s *memorySubscription) Messages() <-chan Message { return s.out }

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.fabric.mu.Lock()
		if subs, ok := s.fabric.subs[s.topic]; ok {
			if _, live := subs[s]; live {
				delete(subs, s)
				close(s.out)
			}
			if len(subs) == 0 {
				delete(s.fabric.subs, s.topic)
			}
		}
		s.fabric.mu.Unlock()
	})
	return nil
}

type memoryLease struct {
	fabric *MemoryFabric
	key    string
	token  string
}

func (l *memoryLease) Refresh(ctx context.Context, ttl time.Duration) error {
	l.fabric.mu.Lock()
	defer l.fabric.mu.Unlock()
	if l.fabric.leases[l.key] != l.token {
		return ErrLeaseHeld
	}
	return nil
}

func (l *memoryLease) Release(ctx context.Context) error {
	l.fabric.mu.Lock()
	defer l.fabric.mu.Unlock()
	if l.fabric.leases[l.key] == l.token {
		delete(l.fabric.leases, l.key)
	}
	return nil
}
