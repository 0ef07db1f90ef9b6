package listing

import "errors"

// Listing ドメインのエラー定義
var (
	ErrListingNotFound    = errors.New("出品が見つかりません")
	ErrListingNotApproved = errors.New("出品は購入可能な状態ではありません")
	ErrListingNotReserved = errors.New("出品は予約されていません")
	ErrListingNotPending  = errors.New("出品は承認待ちではありません")
	ErrVersionConflict    = errors.New("出品が他の操作によって更新されています")
	ErrSellerIDRequired   = errors.New("出品者IDは必須です")
	ErrBrandRequired      = errors.New("ブランドは必須です")
	ErrModelRequired      = errors.New("モデルは必須です")
	ErrInvalidPrice       = errors.New("価格は0以上である必要があります")
	ErrNoEditableFields   = errors.New("更新可能な項目が指定されていません")
)
