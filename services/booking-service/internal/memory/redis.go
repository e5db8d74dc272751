package memory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
	"github.com/redis/go-redis/v9"
)

const DefaultFastTTL = 24 * time.Hour

type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps the serialized state under mem:<phone> with a TTL.
type RedisStore struct {
	rdb redisClient
	ttl time.Duration
}

func NewRedisStore(rdb redisClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultFastTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func redisKey(phone string) string {
	return "mem:" + phone
}

func (s *RedisStore) Load(ctx context.Context, phone string) (*model.ConversationState, bool, error) {
	raw, err := s.rdb.Get(ctx, redisKey(phone)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var state model.ConversationState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, false, err
	}
	return &state, true, nil
}

func (s *RedisStore) Save(ctx context.Context, state *model.ConversationState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, redisKey(state.CustomerPhone), raw, s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, phone string) error {
	return s.rdb.Del(ctx, redisKey(phone)).Err()
}
