package fabric

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ArowuTest/xoso-live-backend/internal/config"
)

// RedisFabric implements Fabric on a pooled go-redis client.
type RedisFabric struct {
	client *redis.Client
	logger *slog.Logger
	cancel context.CancelFunc
}

// NewRedisFabric connects to Redis with bounded pool sizing and retry
// backoff, verifies the connection, and starts the heartbeat loop that
// pings idle connections so a stale connection is never handed to a caller.
func NewRedisFabric(cfg config.RedisConfig, logger *slog.Logger) (*RedisFabric, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		PoolTimeout:     cfg.PoolTimeout,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: cfg.MinRetryBackoff,
		MaxRetryBackoff: cfg.MaxRetryBackoff,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, wrapErr(err)
	}

	hbCtx, hbCancel := context.WithCancel(context.Background())
	f := &RedisFabric{client: client, logger: logger, cancel: hbCancel}
	go f.heartbeat(hbCtx, cfg.HeartbeatInterval)
	return f, nil
}

// heartbeat pings the pool periodically. go-redis drops broken connections
// on a failed ping, so this keeps the idle pool healthy between bursts of
// traffic.
func (f *RedisFabric) heartbeat(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := f.client.Ping(pingCtx).Err(); err != nil {
				f.logger.Warn("fabric heartbeat failed", "error", err)
			}
			cancel()
		}
	}
}

// HGetAll reads every field of a hash key.
func (f *RedisFabric) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	res, err := f.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, wrapErr(err)
	}
	return res, nil
}

// HSet writes hash fields and refreshes the key's expiry.
func (f *RedisFabric) HSet(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	if len(fields) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	pipe := f.client.TxPipeline()
	pipe.HSet(ctx, key, args...)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return wrapErr(err)
	}
	return nil
}

// Get reads a string key. A missing key yields an empty string, not an
// error.
func (f *RedisFabric) Get(ctx context.Context, key string) (string, error) {
	val, err := f.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", wrapErr(err)
	}
	return val, nil
}

// Set writes a string key with an expiry.
func (f *RedisFabric) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := f.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return wrapErr(err)
	}
	return nil
}

// Publish sends a payload to every subscriber of a topic.
func (f *RedisFabric) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := f.client.Publish(ctx, topic, payload).Err(); err != nil {
		return wrapErr(err)
	}
	return nil
}

// Subscribe opens a topic subscription backed by a dedicated pub/sub
// connection. Messages are pumped onto the subscription's channel until it
// is closed.
func (f *RedisFabric) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	ps := f.client.Subscribe(ctx, topic)
	// Receive forces the SUBSCRIBE round-trip so failures surface here
	// instead of on the first read.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, wrapErr(err)
	}

	sub := &redisSubscription{ps: ps, out: make(chan Message, 64)}
	go sub.pump()
	return sub, nil
}

type redisSubscription struct {
	ps  *redis.PubSub
	out chan Message
}

func (s *redisSubscription) pump() {
	defer close(s.out)
	for msg := range s.ps.Channel() {
		s.out <- Message{Topic: msg.Channel, Payload: []byte(msg.Payload)}
	}
}

func (s *redisSubscription) Messages() <-chan Message { return s.out }

func (s *redisSubscription) Close() error { return s.ps.Close() }

// releaseScript deletes the lease key only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// refreshScript extends the lease TTL only when the caller still owns it.
var refreshScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// AcquireLease takes the per-channel-key poller lease with SET NX and a
// random owner token. Contention returns ErrLeaseHeld immediately; the
// caller decides whether to retry.
func (f *RedisFabric) AcquireLease(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	token := uuid.NewString()
	ok, err := f.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, wrapErr(err)
	}
	if !ok {
		return nil, ErrLeaseHeld
	}
	return &redisLease{client: f.client, key: key, token: token}, nil
}

type redisLease struct {
	client *redis.Client
	key    string
	token  string
}

func (l *redisLease) Refresh(ctx context.Context, ttl time.Duration) error {
	res, err := refreshScript.Run(ctx, l.client, []string{l.key}, l.token, ttl.Milliseconds()).Int()
	if err != nil {
		return wrapErr(err)
	}
	if res == 0 {
		return ErrLeaseHeld
	}
	return nil
}

func (l *redisLease) Release(ctx context.Context) error {
	_, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		return wrapErr(err)
	}
	return nil
}

// Ping checks fabric reachability.
func (f *RedisFabric) Ping(ctx context.Context) error {
	if err := f.client.Ping(ctx).Err(); err != nil {
		return wrapErr(err)
	}
	return nil
}

// Close stops the heartbeat and releases all pooled connections.
func (f *RedisFabric) Close() error {
	f.cancel()
	return f.client.Close()
}

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrUnavailable, err)
}
