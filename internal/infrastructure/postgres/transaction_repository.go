package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Triplerush/ReMarketBackend/internal/domain/transaction"
	"github.com/Triplerush/ReMarketBackend/internal/domain/uow"
)

type transactionRow struct {
	ID             string         `db:"id"`
	ListingID      string         `db:"listing_id"`
	BuyerID        string         `db:"buyer_id"`
	SellerID       string         `db:"seller_id"`
	Price          int            `db:"price"`
	Status         string         `db:"status"`
	IdempotencyKey sql.NullString `db:"idempotency_key"`
	CompletedAt    *time.Time     `db:"completed_at"`
	CancelledAt    *time.Time     `db:"cancelled_at"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r *transactionRow) toEntity() *transaction.Transaction {
	return &transaction.Transaction{
		ID: r.ID, ListingID: r.ListingID, BuyerID: r.BuyerID, SellerID: r.SellerID,
		Price: r.Price, Status: transaction.Status(r.Status),
		IdempotencyKey: r.IdempotencyKey.String,
		CompletedAt:    r.CompletedAt, CancelledAt: r.CancelledAt,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

const transactionColumns = `id, listing_id, buyer_id, seller_id, price, status, idempotency_key, completed_at, cancelled_at, created_at, updated_at`

type TransactionRepository struct{ db *sqlx.DB }

func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create はトランザクション記録を挿入する
// 冪等性キーが重複している場合は ErrIdempotencyKeyAlreadyExists を返す
func (r *TransactionRepository) Create(ctx context.Context, tx uow.Tx, t *transaction.Transaction) error {
	query := `INSERT INTO transactions (listing_id, buyer_id, seller_id, price, status, idempotency_key, completed_at, cancelled_at, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`
	err := r.execer(tx).QueryRowxContext(ctx, query,
		t.ListingID, t.BuyerID, t.SellerID, t.Price, string(t.Status),
		nullableKey(t.IdempotencyKey), t.CompletedAt, t.CancelledAt, t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return transaction.ErrIdempotencyKeyAlreadyExists
		}
		return fmt.Errorf("トランザクション作成に失敗: %w", err)
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*transaction.Transaction, error) {
	var row transactionRow
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, transaction.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("トランザクション取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*transaction.Transaction, error) {
	var row transactionRow
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE idempotency_key = $1`
	if err := r.db.GetContext(ctx, &row, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, transaction.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("トランザクション取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *TransactionRepository) FindActiveByListing(ctx context.Context, listingID string) (*transaction.Transaction, error) {
	var row transactionRow
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE listing_id = $1 AND status = 'reserved'`
	if err := r.db.GetContext(ctx, &row, query, listingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, transaction.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("トランザクション取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *TransactionRepository) Update(ctx context.Context, tx uow.Tx, t *transaction.Transaction) error {
	query := `UPDATE transactions SET status = $1, completed_at = $2, cancelled_at = $3, updated_at = NOW() WHERE id = $4`
	result, err := r.execer(tx).ExecContext(ctx, query,
		string(t.Status), t.CompletedAt, t.CancelledAt, t.ID)
	if err != nil {
		return fmt.Errorf("トランザクション更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return transaction.ErrTransactionNotFound
	}
	return nil
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*transaction.Transaction, error) {
	var rows []transactionRow
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE buyer_id = $1 OR seller_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("トランザクション一覧取得に失敗: %w", err)
	}
	return toTransactionEntities(rows), nil
}

func (r *TransactionRepository) ListAll(ctx context.Context, limit, offset int) ([]*transaction.Transaction, error) {
	var rows []transactionRow
	query := `SELECT ` + transactionColumns + ` FROM transactions ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("トランザクション一覧取得に失敗: %w", err)
	}
	return toTransactionEntities(rows), nil
}

func (r *TransactionRepository) CountByStatus(ctx context.Context, status transaction.Status) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM transactions WHERE status = $1`, string(status))
	return count, err
}

func (r *TransactionRepository) execer(tx uow.Tx) sqlx.ExtContext {
	if stx := UnwrapTx(tx); stx != nil {
		return stx
	}
	return r.db
}

// nullableKey は空の冪等性キーを NULL として保存する
// 部分ユニークインデックスは NULL を重複と見なさない
func nullableKey(key string) sql.NullString {
	return sql.NullString{String: key, Valid: key != ""}
}

func toTransactionEntities(rows []transactionRow) []*transaction.Transaction {
	result := make([]*transaction.Transaction, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result
}

var _ transaction.Repository = (*TransactionRepository)(nil)
