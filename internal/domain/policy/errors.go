package policy

import "errors"

// Policy ドメインのエラー定義
// いずれも API 層で 403 Forbidden にマッピングされる
var (
	ErrActorRequired    = errors.New("操作主体が特定できません")
	ErrSelfPurchase     = errors.New("自分の出品は購入できません")
	ErrNotSellerOrAdmin = errors.New("出品者または管理者のみが実行できます")
	ErrNotParticipant   = errors.New("このトランザクションの当事者ではありません")
	ErrNotOwnerOrAdmin  = errors.New("出品の所有者または管理者のみが実行できます")
	ErrAdminOnly        = errors.New("管理者のみが実行できます")
)
