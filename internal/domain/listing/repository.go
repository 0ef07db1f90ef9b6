package listing

import (
	"context"

	"github.com/Triplerush/ReMarketBackend/internal/domain/uow"
)

// Repository は出品リポジトリのインターフェース
type Repository interface {
	// Create は新しい出品を作成する
	Create(ctx context.Context, l *Listing) error

	// GetByID はIDから出品を取得する（ソフトデリート済みも含む。呼び出し側で Active を判定する）
	GetByID(ctx context.Context, id string) (*Listing, error)

	// ListAvailable は購入可能（active かつ approved）な出品一覧を取得する
	ListAvailable(ctx context.Context, limit, offset int) ([]*Listing, error)

	// ListBySeller は出品者の出品一覧を取得する
	ListBySeller(ctx context.Context, sellerID string, limit, offset int) ([]*Listing, error)

	// Update は出品のカタログ項目を更新する（バージョン一致時のみ）
	// Status はこのメソッドでは変更されない
	Update(ctx context.Context, l *Listing) error

	// UpdateStatus は読み取り時のバージョンが一致する場合のみ状態を遷移させる
	// 一致しない場合は ErrVersionConflict を返す
	// tx が nil の場合はプール接続で実行する
	UpdateStatus(ctx context.Context, tx uow.Tx, id string, version int, status Status) error

	// Deactivate は出品をソフトデリートする
	Deactivate(ctx context.Context, id string) error

	// CountByStatus はactiveな出品の状態別件数を取得する
	CountByStatus(ctx context.Context, status Status) (int, error)
}
