package transaction

import "time"

// Status はトランザクションの状態を表す
type Status string

const (
	StatusReserved  Status = "reserved"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Transaction は購入者による出品への請求記録を表す
// completed または cancelled が終端状態
type Transaction struct {
	ID             string
	ListingID      string
	BuyerID        string
	SellerID       string
	Price          int // 予約時点の価格スナップショット
	Status         Status
	IdempotencyKey string
	CompletedAt    *time.Time
	CancelledAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewTransaction は新しいトランザクションを reserved 状態で作成する
func NewTransaction(listingID, buyerID, sellerID string, price int, idempotencyKey string) *Transaction {
	now := time.Now()
	return &Transaction{
		ListingID:      listingID,
		BuyerID:        buyerID,
		SellerID:       sellerID,
		Price:          price,
		Status:         StatusReserved,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewReconciledTransaction は予約記録のない旧データのための completed トランザクションを作成する
// 購入者不明のまま売却済みにする互換経路でのみ使用する
func NewReconciledTransaction(listingID, sellerID string, price int) *Transaction {
	t := NewTransaction(listingID, "", sellerID, price, "")
	now := time.Now()
	t.Status = StatusCompleted
	t.CompletedAt = &now
	return t
}

// IsReserved はトランザクションが予約中かを返す
func (t *Transaction) IsReserved() bool {
	return t.Status == StatusReserved
}

// IsTerminal はトランザクションが終端状態かを返す
func (t *Transaction) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusCancelled
}

// Complete はトランザクションを完了状態にする
func (t *Transaction) Complete() error {
	if t.Status == StatusCompleted {
		return ErrTransactionAlreadyCompleted
	}
	if t.Status == StatusCancelled {
		return ErrTransactionAlreadyCancelled
	}
	now := time.Now()
	t.Status = StatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	return nil
}

// Cancel はトランザクションをキャンセル状態にする
// 既にキャンセル済みの場合は ErrTransactionAlreadyCancelled を返し、呼び出し側が冪等に扱う
func (t *Transaction) Cancel() error {
	if t.Status == StatusCancelled {
		return ErrTransactionAlreadyCancelled
	}
	if t.Status == StatusCompleted {
		return ErrTransactionAlreadyCompleted
	}
	now := time.Now()
	t.Status = StatusCancelled
	t.CancelledAt = &now
	t.UpdatedAt = now
	return nil
}

// Validate はトランザクションの検証を行う
func (t *Transaction) Validate() error {
	if t.ListingID == "" {
		return ErrListingIDRequired
	}
	if t.BuyerID == "" {
		return ErrBuyerIDRequired
	}
	if t.SellerID == "" {
		return ErrSellerIDRequired
	}
	return nil
}
