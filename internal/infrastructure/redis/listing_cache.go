package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Triplerush/ReMarketBackend/internal/domain/listing"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// ListingCache は出品スナップショットのキャッシュを管理する
// 予約系の状態遷移は常にDBを正とし、キャッシュは読み取り高速化にのみ使う
type ListingCache struct {
	client *redis.Client
}

// NewListingCache は新しいListingCacheインスタンスを作成する
func NewListingCache(client *redis.Client) *ListingCache {
	return &ListingCache{client: client}
}

// Get は出品スナップショットをキャッシュから取得する
func (c *ListingCache) Get(ctx context.Context, listingID string) (*listing.Listing, error) {
	data, err := c.client.Get(ctx, c.snapshotKey(listingID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}

	var l listing.Listing
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("キャッシュの復元に失敗: %w", err)
	}
	return &l, nil
}

// Set は出品スナップショットをキャッシュに保存する
func (c *ListingCache) Set(ctx context.Context, l *listing.Listing, ttl time.Duration) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("キャッシュの直列化に失敗: %w", err)
	}
	if err := c.client.Set(ctx, c.snapshotKey(l.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate は出品のキャッシュを無効化する
func (c *ListingCache) Invalidate(ctx context.Context, listingID string) error {
	if err := c.client.Del(ctx, c.snapshotKey(listingID)).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func (c *ListingCache) snapshotKey(listingID string) string {
	return fmt.Sprintf("listing:snapshot:%s", listingID)
}
