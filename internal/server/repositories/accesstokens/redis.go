package accesstokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/idlink/internal/common"
	"github.com/dmitrijs2005/idlink/internal/server/models"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "idlink:access_token:"

// redisClient is the subset of *redis.Client the repository uses.
type redisClient interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisToken struct {
	AccountID  string    `json:"accountId"`
	TTLSeconds int64     `json:"ttl"`
	Created    time.Time `json:"created"`
}

// RedisRepository stores access tokens as JSON values that expire together
// with the token.
type RedisRepository struct {
	client redisClient
}

func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client}
}

func (r *RedisRepository) key(id string) string {
	return redisKeyPrefix + id
}

func (r *RedisRepository) Create(ctx context.Context, token *models.AccessToken) error {
	if token.ID == "" || token.AccountID == "" {
		return fmt.Errorf("access token: missing id or account id")
	}
	ttl := time.Until(token.ExpiresAt())
	if ttl <= 0 {
		return fmt.Errorf("access token: already expired")
	}

	data, err := json.Marshal(redisToken{
		AccountID:  token.AccountID,
		TTLSeconds: int64(token.TTL / time.Second),
		Created:    token.Created,
	})
	if err != nil {
		return fmt.Errorf("access token: marshal: %w", err)
	}
	if err := r.client.Set(ctx, r.key(token.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) Find(ctx context.Context, id string) (*models.AccessToken, error) {
	val, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}

	var rt redisToken
	if err := json.Unmarshal(val, &rt); err != nil {
		return nil, fmt.Errorf("access token: unmarshal: %w", err)
	}
	return &models.AccessToken{
		ID:        id,
		AccountID: rt.AccountID,
		TTL:       time.Duration(rt.TTLSeconds) * time.Second,
		Created:   rt.Created,
	}, nil
}

func (r *RedisRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}
