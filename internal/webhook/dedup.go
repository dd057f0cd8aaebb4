package webhook

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventDeduper caches the ids of events whose processing finished. A hit is
// only a hint: the webhook_events ledger decides.
type EventDeduper interface {
	// Seen reports whether id was remembered. It does not mark it.
	Seen(ctx context.Context, id string) (bool, error)
	// Remember marks id once its processing is recorded in the ledger.
	Remember(ctx context.Context, id string) error
}

type redisEventDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (d *redisEventDeduper) Seen(ctx context.Context, id string) (bool, error) {
	n, err := d.client.Exists(ctx, d.prefix+":"+id).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *redisEventDeduper) Remember(ctx context.Context, id string) error {
	return d.client.Set(ctx, d.prefix+":"+id, "1", d.ttl).Err()
}

type memoryEventDeduper struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	ttl    time.Duration
	nextGC time.Time
}

func newMemoryEventDeduper(ttl time.Duration) *memoryEventDeduper {
	return &memoryEventDeduper{
		seen:   make(map[string]time.Time),
		ttl:    ttl,
		nextGC: time.Now().Add(ttl),
	}
}

func (d *memoryEventDeduper) Seen(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	exp, ok := d.seen[id]
	return ok && exp.After(time.Now()), nil
}

func (d *memoryEventDeduper) Remember(_ context.Context, id string) error {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.seen[id] = now.Add(d.ttl)
	if now.After(d.nextGC) {
		for k, exp := range d.seen {
			if exp.Before(now) {
				delete(d.seen, k)
			}
		}
		d.nextGC = now.Add(d.ttl)
	}
	return nil
}

// NewEventDeduper uses Redis when a client is given, in-memory otherwise.
func NewEventDeduper(client *redis.Client, ttl time.Duration) EventDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if client == nil {
		return newMemoryEventDeduper(ttl)
	}
	return &redisEventDeduper{
		client: client,
		prefix: "paylink:webhook:event",
		ttl:    ttl,
	}
}
