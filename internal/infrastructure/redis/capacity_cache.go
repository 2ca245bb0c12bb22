package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// CapacityCacheInterface はイベント定員キャッシュのインターフェース
type CapacityCacheInterface interface {
	GetRemaining(ctx context.Context, eventID string) (int, error)
	SetRemaining(ctx context.Context, eventID string, remaining int, ttl time.Duration) error
	Invalidate(ctx context.Context, eventID string) error
}

// CapacityCache はイベントの残り確定枠数のキャッシュを管理する
// 読み取り専用の参照値であり、登録可否判定には使わない
type CapacityCache struct {
	client *redis.Client
}

// NewCapacityCache は新しいCapacityCacheインスタンスを作成する
func NewCapacityCache(client *redis.Client) *CapacityCache {
	return &CapacityCache{client: client}
}

// GetRemaining はイベントの残り枠数をキャッシュから取得する
func (c *CapacityCache) GetRemaining(ctx context.Context, eventID string) (int, error) {
	key := c.remainingKey(eventID)
	val, err := c.client.Get(ctx, key).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrCacheMiss
		}
		return 0, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	return val, nil
}

// SetRemaining はイベントの残り枠数をキャッシュに保存する
func (c *CapacityCache) SetRemaining(ctx context.Context, eventID string, remaining int, ttl time.Duration) error {
	key := c.remainingKey(eventID)
	err := c.client.Set(ctx, key, remaining, ttl).Err()
	if err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate はイベントのキャッシュを無効化する
func (c *CapacityCache) Invalidate(ctx context.Context, eventID string) error {
	key := c.remainingKey(eventID)
	err := c.client.Del(ctx, key).Err()
	if err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func (c *CapacityCache) remainingKey(eventID string) string {
	return fmt.Sprintf("capacity:remaining:%s", eventID)
}

var _ CapacityCacheInterface = (*CapacityCache)(nil)
