package transaction

import (
	"context"

	"github.com/Triplerush/ReMarketBackend/internal/domain/uow"
)

// Repository はトランザクションリポジトリのインターフェース
type Repository interface {
	// Create は新しいトランザクションを作成する（出品の状態遷移と同一トランザクション必須）
	Create(ctx context.Context, tx uow.Tx, t *Transaction) error

	// GetByID はIDからトランザクションを取得する
	GetByID(ctx context.Context, id string) (*Transaction, error)

	// GetByIdempotencyKey は冪等性キーからトランザクションを取得する
	GetByIdempotencyKey(ctx context.Context, key string) (*Transaction, error)

	// FindActiveByListing は出品に対する reserved のトランザクションを取得する
	// 存在しない場合は ErrTransactionNotFound を返す
	FindActiveByListing(ctx context.Context, listingID string) (*Transaction, error)

	// Update はトランザクションを更新する（出品の状態遷移と同一トランザクション必須）
	Update(ctx context.Context, tx uow.Tx, t *Transaction) error

	// ListByUser はユーザーが購入者または出品者であるトランザクション一覧を取得する
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Transaction, error)

	// ListAll は全トランザクション一覧を取得する（管理者用）
	ListAll(ctx context.Context, limit, offset int) ([]*Transaction, error)

	// CountByStatus は状態別件数を取得する
	CountByStatus(ctx context.Context, status Status) (int, error)
}
