package listing

import "time"

// Status は出品のライフサイクル状態を表す
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusReserved Status = "reserved"
	StatusSold     Status = "sold"
	StatusRejected Status = "rejected"
)

// Listing は出品エンティティを表す
// Active はソフトデリートのフラグで、Status とは独立して管理する
type Listing struct {
	ID          string
	SellerID    string
	Brand       string
	Model       string
	Description string
	ImageURLs   []string
	Price       int // 最小通貨単位
	Status      Status
	Active      bool
	Version     int // 楽観的ロック用
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewListing は新しい出品を作成する
// 管理者の承認待ちとして pending 状態で始まる
func NewListing(sellerID, brand, model, description string, price int, imageURLs []string) *Listing {
	now := time.Now()
	return &Listing{
		SellerID:    sellerID,
		Brand:       brand,
		Model:       model,
		Description: description,
		ImageURLs:   imageURLs,
		Price:       price,
		Status:      StatusPending,
		Active:      true,
		Version:     0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsApproved は出品が承認済みかを返す
func (l *Listing) IsApproved() bool {
	return l.Status == StatusApproved
}

// IsReserved は出品が予約中かを返す
func (l *Listing) IsReserved() bool {
	return l.Status == StatusReserved
}

// IsPending は出品が承認待ちかを返す
func (l *Listing) IsPending() bool {
	return l.Status == StatusPending
}

// CanBeReserved は出品が予約可能な状態かを返す
func (l *Listing) CanBeReserved() bool {
	return l.Active && l.Status == StatusApproved
}

// Validate は出品の検証を行う
func (l *Listing) Validate() error {
	if l.SellerID == "" {
		return ErrSellerIDRequired
	}
	if l.Brand == "" {
		return ErrBrandRequired
	}
	if l.Model == "" {
		return ErrModelRequired
	}
	if l.Price < 0 {
		return ErrInvalidPrice
	}
	return nil
}
