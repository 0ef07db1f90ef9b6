package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Triplerush/ReMarketBackend/internal/domain/event"
)

// Publisher は出品の状態遷移イベントをRedis Pub/Subで発行する
type Publisher struct {
	client  *redis.Client
	channel string
}

// NewPublisher は新しいPublisherインスタンスを作成する
func NewPublisher(client *redis.Client, channel string) *Publisher {
	return &Publisher{client: client, channel: channel}
}

// Publish はイベントをJSONで発行する
// IDと発生時刻が未設定の場合はここで補完する
func (p *Publisher) Publish(ctx context.Context, ev event.StatusChanged) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("イベントの直列化に失敗: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("イベント発行に失敗: %w", err)
	}
	return nil
}

var _ event.Publisher = (*Publisher)(nil)
