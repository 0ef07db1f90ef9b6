// Package policy は操作主体の認可判定を一箇所に集約する
// I/O を持たない純粋な述語のみで構成され、全てのコア操作から一様に使われる
package policy

import (
	"github.com/Triplerush/ReMarketBackend/internal/domain/actor"
	"github.com/Triplerush/ReMarketBackend/internal/domain/listing"
	"github.com/Triplerush/ReMarketBackend/internal/domain/transaction"
)

// CanReserve は操作主体が出品を予約できるかを判定する
// 自分の出品は購入できない
func CanReserve(a actor.Actor, l *listing.Listing) error {
	if a.ID == "" {
		return ErrActorRequired
	}
	if a.ID == l.SellerID {
		return ErrSelfPurchase
	}
	return nil
}

// CanComplete は操作主体が売却を完了できるかを判定する
// 出品者本人または管理者のみ
func CanComplete(a actor.Actor, l *listing.Listing) error {
	if a.IsAdmin() || a.ID == l.SellerID {
		return nil
	}
	return ErrNotSellerOrAdmin
}

// CanCancel は操作主体が予約をキャンセルできるかを判定する
// 購入者、出品者、管理者のいずれか
func CanCancel(a actor.Actor, t *transaction.Transaction) error {
	if a.IsAdmin() || a.ID == t.BuyerID || a.ID == t.SellerID {
		return nil
	}
	return ErrNotParticipant
}

// CanReleaseListing は予約記録を伴わない reserved 出品を解放できるかを判定する
// 対応するトランザクションが存在しないため当事者の判定ができず、出品者本人または管理者に限る
func CanReleaseListing(a actor.Actor, l *listing.Listing) error {
	if a.IsAdmin() || a.ID == l.SellerID {
		return nil
	}
	return ErrNotSellerOrAdmin
}

// CanViewTransaction は操作主体がトランザクションを閲覧できるかを判定する
func CanViewTransaction(a actor.Actor, t *transaction.Transaction) error {
	if a.IsAdmin() || a.ID == t.BuyerID || a.ID == t.SellerID {
		return nil
	}
	return ErrNotParticipant
}

// CanEditListing は操作主体が出品のカタログ項目を編集できるかを判定する
// 所有者または管理者のみ
func CanEditListing(a actor.Actor, l *listing.Listing) error {
	if a.IsAdmin() || a.ID == l.SellerID {
		return nil
	}
	return ErrNotOwnerOrAdmin
}

// CanModerate は操作主体が出品の承認・却下を行えるかを判定する
func CanModerate(a actor.Actor) error {
	if a.IsAdmin() {
		return nil
	}
	return ErrAdminOnly
}
