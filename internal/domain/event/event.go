// Package event は出品の状態遷移を外部購読者へ通知するドメインイベントを定義する
// 通知・チャット連携そのものはスコープ外で、ここは連携点のみを提供する
package event

import (
	"context"
	"time"
)

// StatusChanged は Reserve / Complete / Cancel 成功時に発行されるイベント
type StatusChanged struct {
	ID            string    `json:"id"`
	ListingID     string    `json:"listing_id"`
	TransactionID string    `json:"transaction_id"`
	FromStatus    string    `json:"from_status"`
	ToStatus      string    `json:"to_status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher はドメインイベントの発行インターフェース
// 発行失敗は呼び出し元の操作を失敗させない（ベストエフォート）
type Publisher interface {
	Publish(ctx context.Context, ev StatusChanged) error
}
