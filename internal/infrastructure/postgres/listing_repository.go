package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Triplerush/ReMarketBackend/internal/domain/listing"
	"github.com/Triplerush/ReMarketBackend/internal/domain/uow"
)

type listingRow struct {
	ID          string         `db:"id"`
	SellerID    string         `db:"seller_id"`
	Brand       string         `db:"brand"`
	Model       string         `db:"model"`
	Description string         `db:"description"`
	ImageURLs   pq.StringArray `db:"image_urls"`
	Price       int            `db:"price"`
	Status      string         `db:"status"`
	Active      bool           `db:"active"`
	Version     int            `db:"version"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r *listingRow) toEntity() *listing.Listing {
	return &listing.Listing{
		ID: r.ID, SellerID: r.SellerID, Brand: r.Brand, Model: r.Model,
		Description: r.Description, ImageURLs: []string(r.ImageURLs),
		Price: r.Price, Status: listing.Status(r.Status), Active: r.Active,
		Version: r.Version, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

const listingColumns = `id, seller_id, brand, model, description, image_urls, price, status, active, version, created_at, updated_at`

type ListingRepository struct{ db *sqlx.DB }

func NewListingRepository(db *sqlx.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

func (r *ListingRepository) Create(ctx context.Context, l *listing.Listing) error {
	query := `INSERT INTO listings (seller_id, brand, model, description, image_urls, price, status, active, version, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`
	if err := r.db.QueryRowContext(ctx, query,
		l.SellerID, l.Brand, l.Model, l.Description, pq.Array(l.ImageURLs),
		l.Price, string(l.Status), l.Active, l.Version, l.CreatedAt, l.UpdatedAt,
	).Scan(&l.ID); err != nil {
		return fmt.Errorf("出品作成に失敗: %w", err)
	}
	return nil
}

func (r *ListingRepository) GetByID(ctx context.Context, id string) (*listing.Listing, error) {
	var row listingRow
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, listing.ErrListingNotFound
		}
		return nil, fmt.Errorf("出品取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *ListingRepository) ListAvailable(ctx context.Context, limit, offset int) ([]*listing.Listing, error) {
	var rows []listingRow
	query := `SELECT ` + listingColumns + ` FROM listings WHERE active = TRUE AND status = 'approved' ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("出品一覧取得に失敗: %w", err)
	}
	return toListingEntities(rows), nil
}

func (r *ListingRepository) ListBySeller(ctx context.Context, sellerID string, limit, offset int) ([]*listing.Listing, error) {
	var rows []listingRow
	query := `SELECT ` + listingColumns + ` FROM listings WHERE active = TRUE AND seller_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &rows, query, sellerID, limit, offset); err != nil {
		return nil, fmt.Errorf("出品一覧取得に失敗: %w", err)
	}
	return toListingEntities(rows), nil
}

// Update はカタログ項目のみを更新する（status はこのクエリでは変更しない）
// 読み取り時のバージョンが一致しない場合は ErrVersionConflict
func (r *ListingRepository) Update(ctx context.Context, l *listing.Listing) error {
	query := `UPDATE listings SET brand = $1, model = $2, description = $3, image_urls = $4, price = $5, updated_at = NOW(), version = version + 1 WHERE id = $6 AND version = $7`
	result, err := r.db.ExecContext(ctx, query,
		l.Brand, l.Model, l.Description, pq.Array(l.ImageURLs), l.Price, l.ID, l.Version)
	if err != nil {
		return fmt.Errorf("出品更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return listing.ErrVersionConflict
	}
	l.Version++
	return nil
}

// UpdateStatus は条件付き書き込みで状態を遷移させる
// 行が存在してもバージョンが進んでいれば何も更新されず、ErrVersionConflict を返す
func (r *ListingRepository) UpdateStatus(ctx context.Context, tx uow.Tx, id string, version int, status listing.Status) error {
	query := `UPDATE listings SET status = $1, updated_at = NOW(), version = version + 1 WHERE id = $2 AND version = $3`
	result, err := r.execer(tx).ExecContext(ctx, query, string(status), id, version)
	if err != nil {
		return fmt.Errorf("出品状態更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return listing.ErrVersionConflict
	}
	return nil
}

func (r *ListingRepository) Deactivate(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE listings SET active = FALSE, updated_at = NOW(), version = version + 1 WHERE id = $1 AND active = TRUE`, id)
	if err != nil {
		return fmt.Errorf("出品削除に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return listing.ErrListingNotFound
	}
	return nil
}

func (r *ListingRepository) CountByStatus(ctx context.Context, status listing.Status) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM listings WHERE active = TRUE AND status = $1`, string(status))
	return count, err
}

func (r *ListingRepository) execer(tx uow.Tx) sqlx.ExtContext {
	if stx := UnwrapTx(tx); stx != nil {
		return stx
	}
	return r.db
}

func toListingEntities(rows []listingRow) []*listing.Listing {
	result := make([]*listing.Listing, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result
}

var _ listing.Repository = (*ListingRepository)(nil)
