// Package usercache keeps user profiles in Redis in front of the ledger store.
package usercache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/Proton-105/himera-wallet/internal/domain"
)

// Cache provides Redis-backed caching for user profiles. A nil Cache or
// client turns every call into a miss.
type Cache struct {
	client redis.UniversalClient
}

func NewCache(client redis.UniversalClient) *Cache {
	return &Cache{client: client}
}

// entry keeps fields that domain.User hides from API responses.
type entry struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	ChatID    int64     `json:"chat_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Get fetches a cached user profile if it exists.
func (c *Cache) Get(ctx context.Context, userID string) (*domain.User, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}

	data, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached user: %w", err)
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode cached user: %w", err)
	}

	return &domain.User{UserID: e.UserID, Email: e.Email, Name: e.Name, ChatID: e.ChatID, CreatedAt: e.CreatedAt}, nil
}

// Set stores the user profile in cache for the provided TTL.
func (c *Cache) Set(ctx context.Context, user *domain.User, ttl time.Duration) error {
	if c == nil || c.client == nil || user == nil {
		return nil
	}

	payload, err := json.Marshal(entry{
		UserID:    user.UserID,
		Email:     user.Email,
		Name:      user.Name,
		ChatID:    user.ChatID,
		CreatedAt: user.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode user for cache: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey(user.UserID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("set cached user: %w", err)
	}

	return nil
}

func (c *Cache) Invalidate(ctx context.Context, userID string) error {
	if c == nil || c.client == nil {
		return nil
	}

	if err := c.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete cached user: %w", err)
	}

	return nil
}

func cacheKey(userID string) string {
	return "wallet:user:" + userID
}
