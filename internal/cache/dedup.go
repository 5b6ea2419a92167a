// Package cache provides the optional Redis fast path in front of the
// durable checkout log.
package cache

import (
	"context"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DeliveryDedup suppresses replayed webhook deliveries with a SETNX fast
// path so an obvious duplicate never reaches the database. It is advisory
// only: the checkout log remains the durable idempotency guard, so both a
// nil dedup and a Redis outage are safe.
type DeliveryDedup struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDeliveryDedup creates a dedup over the given client. Seen markers
// expire after ttl.
func NewDeliveryDedup(client *redis.Client, ttl time.Duration) *DeliveryDedup {
	return &DeliveryDedup{client: client, ttl: ttl}
}

// FirstDelivery reports whether this is the first sighting of the event id.
// It fails open: a nil receiver or a Redis error counts as a first delivery
// and the request proceeds to the durable guard.
func (d *DeliveryDedup) FirstDelivery(ctx context.Context, eventID string) bool {
	if d == nil || d.client == nil {
		return true
	}

	ok, err := d.client.SetNX(ctx, "webhook:delivered:"+eventID, 1, d.ttl).Result()
	if err != nil {
		zctx.From(ctx).Warn("webhook dedup unavailable",
			zap.String("event_id", eventID), zap.Error(err))
		return true
	}
	return ok
}
