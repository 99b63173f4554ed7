package billing

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// EventDeduper records processed webhook event ids in Redis so a redelivered
// event is applied once across all instances.
type EventDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewEventDeduper(client *redis.Client, ttl time.Duration) *EventDeduper {
	return &EventDeduper{client: client, ttl: ttl}
}

func eventKey(id string) string {
	return "billing:event:" + id
}

// Add records the event id if it is new and reports whether it was.
func (d *EventDeduper) Add(ctx context.Context, eventID string) (bool, error) {
	return d.client.SetNX(ctx, eventKey(eventID), 1, d.ttl).Result()
}

// Remove forgets an event id so a failed delivery can be retried.
func (d *EventDeduper) Remove(ctx context.Context, eventID string) error {
	return d.client.Del(ctx, eventKey(eventID)).Err()
}

// StatusCache keeps live subscription lookups for a short while. Redis
// failures degrade to cache misses.
type StatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStatusCache(client *redis.Client, ttl time.Duration) *StatusCache {
	if ttl < 0 {
		ttl = 0
	}
	return &StatusCache{client: client, ttl: ttl}
}

func subscriptionKey(id string) string {
	return "billing:subscription:" + id
}

func (c *StatusCache) Load(ctx context.Context, subscriptionID string) (*Subscription, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, subscriptionKey(subscriptionID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			_ = c.client.Del(ctx, subscriptionKey(subscriptionID)).Err()
		}
		return nil, false
	}
	var sub Subscription
	if err := sonic.Unmarshal(data, &sub); err != nil {
		_ = c.client.Del(ctx, subscriptionKey(subscriptionID)).Err()
		return nil, false
	}
	return &sub, true
}

func (c *StatusCache) Store(ctx context.Context, sub *Subscription) {
	if c == nil || c.client == nil || c.ttl == 0 || sub == nil {
		return
	}
	data, err := sonic.Marshal(sub)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, subscriptionKey(sub.ID), data, c.ttl).Err()
}

func (c *StatusCache) Evict(ctx context.Context, subscriptionID string) {
	if c == nil || c.client == nil || subscriptionID == "" {
		return
	}
	_ = c.client.Del(ctx, subscriptionKey(subscriptionID)).Err()
}
