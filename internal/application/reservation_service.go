package application

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/Triplerush/ReMarketBackend/internal/domain/actor"
	"github.com/Triplerush/ReMarketBackend/internal/domain/event"
	"github.com/Triplerush/ReMarketBackend/internal/domain/listing"
	"github.com/Triplerush/ReMarketBackend/internal/domain/policy"
	"github.com/Triplerush/ReMarketBackend/internal/domain/transaction"
	"github.com/Triplerush/ReMarketBackend/internal/domain/uow"
	"github.com/Triplerush/ReMarketBackend/internal/pkg/logger"
	"github.com/Triplerush/ReMarketBackend/internal/pkg/metrics"
)

// ErrReservationConflict はリトライ上限まで競合が解消しなかったことを表す
var ErrReservationConflict = errors.New("競合によりリクエストを完了できませんでした")

const (
	maxAttempts = 3
	backoffBase = 50 * time.Millisecond

	opReserve  = "reserve"
	opComplete = "complete"
	opCancel   = "cancel"
)

// ListingCache は出品キャッシュの無効化インターフェース（nil可）
type ListingCache interface {
	Invalidate(ctx context.Context, listingID string) error
}

// ReservationService は approved → reserved → sold の状態遷移を調停するコーディネーター
// 出品の状態遷移とトランザクション記録の作成・終了を単一の原子的な単位で行う
// 排他制御はストレージ層の条件付き書き込み（楽観的ロック）のみに依存する
type ReservationService struct {
	txManager   uow.Manager
	listingRepo listing.Repository
	txnRepo     transaction.Repository
	publisher   event.Publisher
	cache       ListingCache
	metrics     *metrics.Metrics
}

func NewReservationService(
	tm uow.Manager,
	lr listing.Repository,
	tr transaction.Repository,
	pub event.Publisher,
	cache ListingCache,
	m *metrics.Metrics,
) *ReservationService {
	return &ReservationService{
		txManager:   tm,
		listingRepo: lr,
		txnRepo:     tr,
		publisher:   pub,
		cache:       cache,
		metrics:     m,
	}
}

type ReserveInput struct {
	ListingID      string
	Buyer          actor.Actor
	IdempotencyKey string
}

// Reserve は出品の予約を試みる
// 読み取り・検証・条件付き書き込みのサイクルを上限回数までリトライし、
// 同一出品への並行呼び出しのうち成功するのは常に1件のみ
func (s *ReservationService) Reserve(ctx context.Context, input ReserveInput) (*transaction.Transaction, error) {
	// 冪等性チェック: 同じキーの予約が既にあればそれを返す
	if input.IdempotencyKey != "" {
		existing, err := s.txnRepo.GetByIdempotencyKey(ctx, input.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, transaction.ErrTransactionNotFound) {
			return nil, fmt.Errorf("冪等性チェックに失敗: %w", err)
		}
	}

	var txn *transaction.Transaction
	err := s.retryOnConflict(ctx, opReserve, func() error {
		var err error
		txn, err = s.tryReserve(ctx, input)
		return err
	})
	if err != nil {
		// キー衝突はレース中の重複リクエスト: 勝った側の記録を返す
		if errors.Is(err, transaction.ErrIdempotencyKeyAlreadyExists) && input.IdempotencyKey != "" {
			if existing, getErr := s.txnRepo.GetByIdempotencyKey(ctx, input.IdempotencyKey); getErr == nil {
				s.metrics.RecordReservation(opReserve, "success")
				return existing, nil
			}
		}
		s.metrics.RecordReservation(opReserve, statusLabel(err))
		return nil, err
	}

	s.metrics.RecordReservation(opReserve, "success")
	s.afterTransition(ctx, txn.ListingID, txn.ID, string(listing.StatusApproved), string(listing.StatusReserved))
	return txn, nil
}

func (s *ReservationService) tryReserve(ctx context.Context, input ReserveInput) (*transaction.Transaction, error) {
	l, err := s.listingRepo.GetByID(ctx, input.ListingID)
	if err != nil {
		return nil, err
	}
	if !l.Active {
		return nil, listing.ErrListingNotFound
	}
	if err := policy.CanReserve(input.Buyer, l); err != nil {
		return nil, err
	}
	if !l.IsApproved() {
		return nil, listing.ErrListingNotApproved
	}

	txn := transaction.NewTransaction(l.ID, input.Buyer.ID, l.SellerID, l.Price, input.IdempotencyKey)
	if err := txn.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	// 読み取り時のバージョンが一致する場合のみ reserved へ遷移
	if err := s.listingRepo.UpdateStatus(ctx, tx, l.ID, l.Version, listing.StatusReserved); err != nil {
		return nil, err
	}
	if err := s.txnRepo.Create(ctx, tx, txn); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}
	return txn, nil
}

// Complete は予約を売却完了にする
// 予約記録がない旧データに対しては completed のトランザクションを直接作成して整合させる
func (s *ReservationService) Complete(ctx context.Context, listingID string, a actor.Actor) (*transaction.Transaction, error) {
	var txn *transaction.Transaction
	err := s.retryOnConflict(ctx, opComplete, func() error {
		var err error
		txn, err = s.tryComplete(ctx, listingID, a)
		return err
	})
	if err != nil {
		s.metrics.RecordReservation(opComplete, statusLabel(err))
		return nil, err
	}

	s.metrics.RecordReservation(opComplete, "success")
	s.afterTransition(ctx, listingID, txn.ID, string(listing.StatusReserved), string(listing.StatusSold))
	return txn, nil
}

func (s *ReservationService) tryComplete(ctx context.Context, listingID string, a actor.Actor) (*transaction.Transaction, error) {
	l, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !l.Active {
		return nil, listing.ErrListingNotFound
	}
	if err := policy.CanComplete(a, l); err != nil {
		return nil, err
	}
	if l.Status != listing.StatusReserved && l.Status != listing.StatusApproved {
		return nil, listing.ErrListingNotReserved
	}

	active, err := s.txnRepo.FindActiveByListing(ctx, l.ID)
	if err != nil && !errors.Is(err, transaction.ErrTransactionNotFound) {
		return nil, fmt.Errorf("トランザクション取得に失敗: %w", err)
	}

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if err := s.listingRepo.UpdateStatus(ctx, tx, l.ID, l.Version, listing.StatusSold); err != nil {
		return nil, err
	}

	if active == nil {
		// 互換フォールバック: 予約記録のない旧出品を売却済みに整合させる
		active = transaction.NewReconciledTransaction(l.ID, l.SellerID, l.Price)
		if err := s.txnRepo.Create(ctx, tx, active); err != nil {
			return nil, err
		}
	} else {
		if err := active.Complete(); err != nil {
			return nil, err
		}
		if err := s.txnRepo.Update(ctx, tx, active); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}
	return active, nil
}

// Cancel は予約を解放し、出品を approved へ戻す
// 既に終了済みのトランザクションに対する呼び出しは冪等に成功を返す
func (s *ReservationService) Cancel(ctx context.Context, listingID string, a actor.Actor) error {
	var cancelled *transaction.Transaction
	err := s.retryOnConflict(ctx, opCancel, func() error {
		var err error
		cancelled, err = s.tryCancel(ctx, listingID, a)
		return err
	})
	if err != nil {
		s.metrics.RecordReservation(opCancel, statusLabel(err))
		return err
	}

	s.metrics.RecordReservation(opCancel, "success")
	if cancelled != nil {
		s.afterTransition(ctx, listingID, cancelled.ID, string(listing.StatusReserved), string(listing.StatusApproved))
	}
	return nil
}

// tryCancel はキャンセルを1回試行する
// 解放すべき予約がなかった場合は (nil, nil) を返す
func (s *ReservationService) tryCancel(ctx context.Context, listingID string, a actor.Actor) (*transaction.Transaction, error) {
	l, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !l.Active {
		return nil, listing.ErrListingNotFound
	}

	active, err := s.txnRepo.FindActiveByListing(ctx, l.ID)
	if err != nil {
		if !errors.Is(err, transaction.ErrTransactionNotFound) {
			return nil, fmt.Errorf("トランザクション取得に失敗: %w", err)
		}
		// 予約記録なし: 出品だけが reserved のまま残っていれば解放して整合させる
		// トランザクション不在のため当事者判定ができず、解放は出品者または管理者に限る
		if l.Status == listing.StatusReserved {
			if err := policy.CanReleaseListing(a, l); err != nil {
				return nil, err
			}
			if err := s.listingRepo.UpdateStatus(ctx, nil, l.ID, l.Version, listing.StatusApproved); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	if err := policy.CanCancel(a, active); err != nil {
		return nil, err
	}
	if err := active.Cancel(); err != nil {
		if errors.Is(err, transaction.ErrTransactionAlreadyCancelled) {
			return nil, nil
		}
		return nil, err
	}

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if err := s.listingRepo.UpdateStatus(ctx, tx, l.ID, l.Version, listing.StatusApproved); err != nil {
		return nil, err
	}
	if err := s.txnRepo.Update(ctx, tx, active); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}
	return active, nil
}

// GetTransaction は当事者または管理者のみが閲覧できる
func (s *ReservationService) GetTransaction(ctx context.Context, id string, a actor.Actor) (*transaction.Transaction, error) {
	txn, err := s.txnRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.CanViewTransaction(a, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// ListUserTransactions はユーザーが購入者または出品者であるトランザクション一覧を返す
func (s *ReservationService) ListUserTransactions(ctx context.Context, userID string, limit, offset int) ([]*transaction.Transaction, error) {
	return s.txnRepo.ListByUser(ctx, userID, normalizeLimit(limit), normalizeOffset(offset))
}

// ListAllTransactions は全トランザクション一覧を返す（管理者専用）
func (s *ReservationService) ListAllTransactions(ctx context.Context, a actor.Actor, limit, offset int) ([]*transaction.Transaction, error) {
	if err := policy.CanModerate(a); err != nil {
		return nil, err
	}
	return s.txnRepo.ListAll(ctx, normalizeLimit(limit), normalizeOffset(offset))
}

// retryOnConflict はバージョン競合と一時的なストレージ障害をジッター付きバックオフでリトライする
// 上限到達後は ErrReservationConflict として報告する
func (s *ReservationService) retryOnConflict(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffWithJitter(attempt)):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		transient := isTransient(err)
		if !errors.Is(err, listing.ErrVersionConflict) && !transient {
			return err
		}
		s.metrics.RecordConflictRetry(op, transient)
		lastErr = err
	}
	return fmt.Errorf("%w: %v", ErrReservationConflict, lastErr)
}

// afterTransition は成功した遷移のドメインイベント発行とキャッシュ無効化を行う
// いずれもベストエフォートで、失敗しても操作自体は成功扱いのまま
func (s *ReservationService) afterTransition(ctx context.Context, listingID, transactionID, from, to string) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, listingID); err != nil {
			logger.Warn("出品キャッシュの無効化に失敗",
				zap.String("listing_id", listingID), zap.Error(err))
		}
	}
	if s.publisher != nil {
		ev := event.StatusChanged{
			ListingID:     listingID,
			TransactionID: transactionID,
			FromStatus:    from,
			ToStatus:      to,
			OccurredAt:    time.Now(),
		}
		if err := s.publisher.Publish(ctx, ev); err != nil {
			logger.Warn("ドメインイベントの発行に失敗",
				zap.String("listing_id", listingID), zap.Error(err))
		}
	}
}

// backoffWithJitter は指数バックオフにランダムなジッターを加える
// 競合した呼び出し同士が同時に再試行して再衝突するのを避ける
func backoffWithJitter(attempt int) time.Duration {
	base := backoffBase << (attempt - 1)
	return base + time.Duration(rand.Int63n(int64(base)))
}

// isTransient はリトライで解消しうるストレージ層の一時的エラーかを判定する
// ドメインとして確定したエラーはリトライしない
func isTransient(err error) bool {
	for _, sentinel := range []error{
		listing.ErrListingNotFound,
		listing.ErrListingNotApproved,
		listing.ErrListingNotReserved,
		listing.ErrVersionConflict,
		transaction.ErrTransactionNotFound,
		transaction.ErrTransactionAlreadyCompleted,
		transaction.ErrTransactionAlreadyCancelled,
		transaction.ErrIdempotencyKeyAlreadyExists,
		transaction.ErrBuyerIDRequired,
		transaction.ErrListingIDRequired,
		transaction.ErrSellerIDRequired,
		policy.ErrActorRequired,
		policy.ErrSelfPurchase,
		policy.ErrNotSellerOrAdmin,
		policy.ErrNotParticipant,
		context.Canceled,
		context.DeadlineExceeded,
	} {
		if errors.Is(err, sentinel) {
			return false
		}
	}
	return true
}

// statusLabel はメトリクス用にエラーを分類する
func statusLabel(err error) string {
	switch {
	case errors.Is(err, listing.ErrListingNotFound), errors.Is(err, transaction.ErrTransactionNotFound):
		return "not_found"
	case errors.Is(err, policy.ErrSelfPurchase),
		errors.Is(err, policy.ErrNotSellerOrAdmin),
		errors.Is(err, policy.ErrNotParticipant),
		errors.Is(err, policy.ErrActorRequired):
		return "forbidden"
	case errors.Is(err, listing.ErrListingNotApproved), errors.Is(err, listing.ErrListingNotReserved):
		return "invalid_state"
	case errors.Is(err, ErrReservationConflict):
		return "conflict"
	default:
		return "error"
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
