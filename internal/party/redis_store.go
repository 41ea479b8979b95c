package party

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RetentionTTL is the sliding inactivity window after which a party
// expires. Every write restores the full window.
const RetentionTTL = 24 * time.Hour

// RedisStore is the durable owner of the serialized party form.
// Key layout: party:<id> holds the blob, party:<id>:nextNodeID and
// party:<id>:nextEdgeID hold the counters.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    RetentionTTL,
	}
}

func partyKey(id string) string {
	return "party:" + id
}

func nodeCounterKey(id string) string {
	return partyKey(id) + ":nextNodeID"
}

func edgeCounterKey(id string) string {
	return partyKey(id) + ":nextEdgeID"
}

func (s *RedisStore) Create(ctx context.Context, p *Party) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("party: failed to marshal: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, partyKey(p.ID), data, s.ttl)
	pipe.Set(ctx, nodeCounterKey(p.ID), p.NodeID, s.ttl)
	pipe.Set(ctx, edgeCounterKey(p.ID), p.EdgeID, s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Get(ctx context.Context, partyID string) (*Party, error) {
	val, err := s.client.Get(ctx, partyKey(partyID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNoParty
	}
	if err != nil {
		return nil, err
	}

	var p Party
	if err := json.Unmarshal(val, &p); err != nil {
		return nil, fmt.Errorf("party: failed to unmarshal: %w", err)
	}

	return &p, nil
}

func (s *RedisStore) Save(ctx context.Context, p *Party) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("party: failed to marshal: %w", err)
	}

	return s.client.Set(ctx, partyKey(p.ID), data, s.ttl).Err()
}

func (s *RedisStore) IncrNodeID(ctx context.Context, partyID string) (int, error) {
	return s.incr(ctx, nodeCounterKey(partyID))
}

func (s *RedisStore) IncrEdgeID(ctx context.Context, partyID string) (int, error) {
	return s.incr(ctx, edgeCounterKey(partyID))
}

// incr bumps a counter and refreshes its TTL in one round trip. INCR
// alone would let a busy party's counters outlive their blob's window
// unevenly.
func (s *RedisStore) incr(ctx context.Context, key string) (int, error) {
	pipe := s.client.Pipeline()
	next := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(next.Val()), nil
}
