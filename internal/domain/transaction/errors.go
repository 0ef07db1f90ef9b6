package transaction

import "errors"

// Transaction ドメインのエラー定義
var (
	ErrTransactionNotFound         = errors.New("トランザクションが見つかりません")
	ErrTransactionAlreadyCompleted = errors.New("トランザクションは既に完了しています")
	ErrTransactionAlreadyCancelled = errors.New("トランザクションは既にキャンセルされています")
	ErrListingIDRequired           = errors.New("出品IDは必須です")
	ErrBuyerIDRequired             = errors.New("購入者IDは必須です")
	ErrSellerIDRequired            = errors.New("出品者IDは必須です")
	ErrIdempotencyKeyAlreadyExists = errors.New("同じ冪等性キーのトランザクションが既に存在します")
)
