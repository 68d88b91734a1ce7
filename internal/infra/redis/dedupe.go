package redis

import (
	"context"
	"fmt"
	"time"

	"telegram-lesson-market/internal/usecase"
)

var _ usecase.ChargeDeduper = (*ChargeDedupe)(nil)

// ChargeDedupe remembers applied provider charge ids so redelivered
// confirmations are dropped even across process restarts. The conditional
// UPDATE on the purchase row is the real idempotency barrier; this is the
// fast path in front of it.
type ChargeDedupe struct {
	client *Client
	ttl    time.Duration
}

func NewChargeDedupe(client *Client, ttl time.Duration) *ChargeDedupe {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &ChargeDedupe{client: client, ttl: ttl}
}

func chargeKey(chargeID string) string {
	return fmt.Sprintf("charge_seen:%s", chargeID)
}

func (d *ChargeDedupe) Seen(ctx context.Context, chargeID string) (bool, error) {
	return d.client.Exists(ctx, chargeKey(chargeID))
}

func (d *ChargeDedupe) Mark(ctx context.Context, chargeID string) error {
	return d.client.Set(ctx, chargeKey(chargeID), "1", d.ttl)
}
