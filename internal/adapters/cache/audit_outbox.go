// Package cache holds the Redis-backed adapters: the durable audit outbox and
// the rate limiter storage.
package cache

import (
	"context"
	"encoding/json"
	"sort"

	"loanbook/internal/core/services"

	"github.com/redis/go-redis/v9"
)

// AuditOutboxKey is the hash holding pending audit rows, keyed by correlation id
const AuditOutboxKey = "loanbook:audit:outbox"

// RedisAuditOutbox stores pending audit rows in a Redis hash so they survive
// a restart
type RedisAuditOutbox struct {
	rdb *redis.Client
	key string
}

// NewRedisAuditOutbox creates an outbox on rdb
func NewRedisAuditOutbox(rdb *redis.Client) *RedisAuditOutbox {
	return &RedisAuditOutbox{rdb: rdb, key: AuditOutboxKey}
}

func (o *RedisAuditOutbox) Push(ctx context.Context, p *services.PendingAudit) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return o.rdb.HSet(ctx, o.key, p.Entry.CorrelationID, raw).Err()
}

func (o *RedisAuditOutbox) Pending(ctx context.Context) ([]*services.PendingAudit, error) {
	all, err := o.rdb.HGetAll(ctx, o.key).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*services.PendingAudit, 0, len(all))
	for _, raw := range all {
		var p services.PendingAudit
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Entry.CreatedAt.Before(out[j].Entry.CreatedAt) })
	return out, nil
}

func (o *RedisAuditOutbox) Update(ctx context.Context, p *services.PendingAudit) error {
	exists, err := o.rdb.HExists(ctx, o.key, p.Entry.CorrelationID).Result()
	if err != nil {
		return err
	}
	if !exists {
		return services.ErrOutboxEntryNotFound
	}
	return o.Push(ctx, p)
}

func (o *RedisAuditOutbox) Remove(ctx context.Context, correlationID string) error {
	return o.rdb.HDel(ctx, o.key, correlationID).Err()
}
