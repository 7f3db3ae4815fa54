package discussion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisStatePrefix  = "agora:discussion:"
	redisEventsSuffix = ":events"
	redisIndexKey     = "agora:discussions"
)

// RedisStore persists discussion state in Redis so restarts and replicas
// see the same lifecycle. Event streams are kept as Redis lists.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration // 0 keeps discussions forever
}

// NewRedisStore creates a Redis-backed store. ttl bounds how long finished
// discussions are retained; zero disables expiry.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) stateKey(id string) string  { return redisStatePrefix + id }
func (s *RedisStore) eventsKey(id string) string { return redisStatePrefix + id + redisEventsSuffix }

func (s *RedisStore) Save(ctx context.Context, state *State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal discussion state: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.stateKey(state.DiscussionID), payload, s.ttl)
	pipe.SAdd(ctx, redisIndexKey, state.DiscussionID)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Get(ctx context.Context, discussionID string) (*State, error) {
	payload, err := s.client.Get(ctx, s.stateKey(discussionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(discussionID)
	}
	if err != nil {
		return nil, err
	}
	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("unmarshal discussion state: %w", err)
	}
	return &state, nil
}

func (s *RedisStore) List(ctx context.Context) ([]*State, error) {
	ids, err := s.client.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*State, 0, len(ids))
	for _, id := range ids {
		state, err := s.Get(ctx, id)
		if err != nil {
			// Expired state, drop the stale index entry.
			s.client.SRem(ctx, redisIndexKey, id)
			continue
		}
		out = append(out, state)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, discussionID string) error {
	removed, err := s.client.SRem(ctx, redisIndexKey, discussionID).Result()
	if err != nil {
		return err
	}
	if removed == 0 {
		return notFound(discussionID)
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.stateKey(discussionID))
	pipe.Del(ctx, s.eventsKey(discussionID))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) AppendEvents(ctx context.Context, discussionID string, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	payloads := make([]any, 0, len(events))
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal discussion event: %w", err)
		}
		payloads = append(payloads, payload)
	}
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.eventsKey(discussionID), payloads...)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.eventsKey(discussionID), s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) ClearEvents(ctx context.Context, discussionID string) error {
	exists, err := s.client.Exists(ctx, s.stateKey(discussionID)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return notFound(discussionID)
	}
	return s.client.Del(ctx, s.eventsKey(discussionID)).Err()
}

func (s *RedisStore) Events(ctx context.Context, discussionID string) ([]Event, error) {
	raw, err := s.client.LRange(ctx, s.eventsKey(discussionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(raw))
	for _, item := range raw {
		var e Event
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("unmarshal discussion event: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}
