package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Triplerush/ReMarketBackend/internal/domain/actor"
	"github.com/Triplerush/ReMarketBackend/internal/domain/listing"
	"github.com/Triplerush/ReMarketBackend/internal/domain/policy"
	"github.com/Triplerush/ReMarketBackend/internal/pkg/logger"
)

// ListingSnapshotCache は出品詳細の読み取りキャッシュ（nil可）
type ListingSnapshotCache interface {
	Get(ctx context.Context, listingID string) (*listing.Listing, error)
	Set(ctx context.Context, l *listing.Listing, ttl time.Duration) error
	Invalidate(ctx context.Context, listingID string) error
}

// 出品詳細キャッシュのTTL
// 予約系の遷移は即時に無効化されるため、カタログ項目の編集遅延のみを許容する
const listingCacheTTL = 30 * time.Second

// ListingService は出品カタログの管理を行う
// 予約機械への入力となる status（pending → approved/rejected）の遷移もここが担い、
// reserved/sold への遷移は ReservationService のみが行う
type ListingService struct {
	listingRepo listing.Repository
	cache       ListingSnapshotCache
}

func NewListingService(lr listing.Repository, cache ListingSnapshotCache) *ListingService {
	return &ListingService{listingRepo: lr, cache: cache}
}

type CreateListingInput struct {
	SellerID    string
	Brand       string
	Model       string
	Description string
	Price       int
	ImageURLs   []string
}

// CreateListing は承認待ちの出品を作成する
func (s *ListingService) CreateListing(ctx context.Context, input CreateListingInput) (*listing.Listing, error) {
	l := listing.NewListing(input.SellerID, input.Brand, input.Model, input.Description, input.Price, input.ImageURLs)
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if err := s.listingRepo.Create(ctx, l); err != nil {
		return nil, fmt.Errorf("出品作成に失敗しました: %w", err)
	}
	return l, nil
}

// GetListing は出品を取得する（ソフトデリート済みは存在しない扱い）
func (s *ListingService) GetListing(ctx context.Context, id string) (*listing.Listing, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, id); err == nil {
			return cached, nil
		}
	}

	l, err := s.listingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !l.Active {
		return nil, listing.ErrListingNotFound
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, l, listingCacheTTL); err != nil {
			logger.Debug("出品キャッシュの保存に失敗", zap.String("listing_id", id), zap.Error(err))
		}
	}
	return l, nil
}

// ListListings は購入可能な出品一覧を返す
func (s *ListingService) ListListings(ctx context.Context, limit, offset int) ([]*listing.Listing, error) {
	return s.listingRepo.ListAvailable(ctx, normalizeLimit(limit), normalizeOffset(offset))
}

// ListSellerListings は出品者自身の出品一覧を返す（状態を問わない）
func (s *ListingService) ListSellerListings(ctx context.Context, sellerID string, limit, offset int) ([]*listing.Listing, error) {
	return s.listingRepo.ListBySeller(ctx, sellerID, normalizeLimit(limit), normalizeOffset(offset))
}

type UpdateListingInput struct {
	ID          string
	Actor       actor.Actor
	Brand       *string
	Model       *string
	Description *string
	Price       *int
	ImageURLs   []string
}

// UpdateListing は出品のカタログ項目を更新する
// status はこの経路では決して変更されない
func (s *ListingService) UpdateListing(ctx context.Context, input UpdateListingInput) (*listing.Listing, error) {
	l, err := s.listingRepo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if !l.Active {
		return nil, listing.ErrListingNotFound
	}
	if err := policy.CanEditListing(input.Actor, l); err != nil {
		return nil, err
	}

	changed := false
	if input.Brand != nil {
		l.Brand = *input.Brand
		changed = true
	}
	if input.Model != nil {
		l.Model = *input.Model
		changed = true
	}
	if input.Description != nil {
		l.Description = *input.Description
		changed = true
	}
	if input.Price != nil {
		l.Price = *input.Price
		changed = true
	}
	if input.ImageURLs != nil {
		l.ImageURLs = input.ImageURLs
		changed = true
	}
	if !changed {
		return nil, listing.ErrNoEditableFields
	}

	if err := l.Validate(); err != nil {
		return nil, err
	}
	if err := s.listingRepo.Update(ctx, l); err != nil {
		return nil, err
	}
	s.invalidate(ctx, l.ID)
	return l, nil
}

// ApproveListing は承認待ちの出品を購入可能にする（管理者専用）
func (s *ListingService) ApproveListing(ctx context.Context, id string, a actor.Actor) (*listing.Listing, error) {
	return s.moderate(ctx, id, a, listing.StatusApproved)
}

// RejectListing は承認待ちの出品を却下する（管理者専用）
func (s *ListingService) RejectListing(ctx context.Context, id string, a actor.Actor) (*listing.Listing, error) {
	return s.moderate(ctx, id, a, listing.StatusRejected)
}

func (s *ListingService) moderate(ctx context.Context, id string, a actor.Actor, status listing.Status) (*listing.Listing, error) {
	if err := policy.CanModerate(a); err != nil {
		return nil, err
	}
	l, err := s.listingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !l.Active {
		return nil, listing.ErrListingNotFound
	}
	if !l.IsPending() {
		return nil, listing.ErrListingNotPending
	}

	// 管理者の承認が購入者の予約と競合しないよう、バージョン一致時のみ遷移させる
	if err := s.listingRepo.UpdateStatus(ctx, nil, l.ID, l.Version, status); err != nil {
		return nil, err
	}
	l.Status = status
	l.Version++
	s.invalidate(ctx, l.ID)
	return l, nil
}

// DeleteListing は出品をソフトデリートする
// Active は Status と直交しており、どの状態からでも無効化できる
func (s *ListingService) DeleteListing(ctx context.Context, id string, a actor.Actor) error {
	l, err := s.listingRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !l.Active {
		return listing.ErrListingNotFound
	}
	if err := policy.CanEditListing(a, l); err != nil {
		return err
	}
	if err := s.listingRepo.Deactivate(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *ListingService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil && !errors.Is(err, context.Canceled) {
		logger.Debug("出品キャッシュの無効化に失敗", zap.String("listing_id", id), zap.Error(err))
	}
}
