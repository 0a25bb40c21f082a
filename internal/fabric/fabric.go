// Package fabric provides the shared low-latency cache and publish/subscribe
// layer used by the poller and the broadcast registry. The production
// implementation is backed by a pooled Redis client; an in-memory
// implementation backs the tests.
package fabric

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable is returned when the fabric cannot be reached after
	// the configured retry ceiling.
	ErrUnavailable = errors.New("fabric: unavailable")

	// ErrLeaseHeld is returned by AcquireLease when another owner already
	// holds the lease for the key.
	ErrLeaseHeld = errors.New("fabric: lease held by another owner")
)

// Message is one delivery from a subscribed topic.
type Message struct {
	Topic   string
	Payload []byte
}

// Subscription is a live topic subscription. Messages are delivered on the
// channel returned by Messages until Close is called or the fabric shuts
// down, at which point the channel is closed.
type Subscription interface {
	Messages() <-chan Message
	Close() error
}

// Lease is a held mutual-exclusion lease. Release is compare-and-delete:
// it only removes the lease if this owner still holds it.
type Lease interface {
	Refresh(ctx context.Context, ttl time.Duration) error
	Release(ctx context.Context) error
}

// Fabric is the shared cache/pub-sub contract. All hash and string writes
// refresh the key's expiry so channel state self-expires after the last
// write.
type Fabric interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	AcquireLease(ctx context.Context, key string, ttl time.Duration) (Lease, error)

	Ping(ctx context.Context) error
	Close() error
}
