package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Triplerush/ReMarketBackend/internal/domain/listing"
	"github.com/Triplerush/ReMarketBackend/internal/domain/transaction"
	"github.com/Triplerush/ReMarketBackend/internal/pkg/logger"
	"github.com/Triplerush/ReMarketBackend/internal/pkg/metrics"
)

// ListingCounter は出品の状態別件数を取得するインターフェース
type ListingCounter interface {
	CountByStatus(ctx context.Context, status listing.Status) (int, error)
}

// TransactionCounter はトランザクションの状態別件数を取得するインターフェース
type TransactionCounter interface {
	CountByStatus(ctx context.Context, status transaction.Status) (int, error)
}

// StatsReconciler は在庫・取引の状態別件数を定期的にメトリクスへ反映するワーカー
type StatsReconciler struct {
	listingRepo ListingCounter
	txnRepo     TransactionCounter
	metrics     *metrics.Metrics
	interval    time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// NewStatsReconciler は新しいリコンサイラーを作成
func NewStatsReconciler(
	lr ListingCounter,
	tr TransactionCounter,
	m *metrics.Metrics,
	interval time.Duration,
) *StatsReconciler {
	return &StatsReconciler{
		listingRepo: lr,
		txnRepo:     tr,
		metrics:     m,
		interval:    interval,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start はリコンサイラーを開始
func (r *StatsReconciler) Start(ctx context.Context) {
	logger.Info("状態別件数リコンサイラー開始",
		zap.Duration("interval", r.interval),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer close(r.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("状態別件数リコンサイラー停止（コンテキストキャンセル）")
			return
		case <-r.stopCh:
			logger.Info("状態別件数リコンサイラー停止（シグナル受信）")
			return
		case <-ticker.C:
			r.reconcile(ctx)
		}
	}
}

// Stop はリコンサイラーを停止
func (r *StatsReconciler) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

// reconcile はDBの件数をゲージに反映する
func (r *StatsReconciler) reconcile(ctx context.Context) {
	log := logger.Get()
	log.Debug("状態別件数の集計開始")

	statuses := []listing.Status{
		listing.StatusPending,
		listing.StatusApproved,
		listing.StatusReserved,
		listing.StatusSold,
	}
	for _, status := range statuses {
		count, err := r.listingRepo.CountByStatus(ctx, status)
		if err != nil {
			log.Error("出品件数の集計失敗",
				zap.String("status", string(status)),
				zap.Error(err),
			)
			continue
		}
		r.metrics.ListingsByStatus.WithLabelValues(string(status)).Set(float64(count))
	}

	active, err := r.txnRepo.CountByStatus(ctx, transaction.StatusReserved)
	if err != nil {
		log.Error("トランザクション件数の集計失敗", zap.Error(err))
		return
	}
	r.metrics.ActiveTransactions.Set(float64(active))
}
