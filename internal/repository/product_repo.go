package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sentinnell/analytics_api/internal/database"
	"github.com/sentinnell/analytics_api/internal/models"
	"github.com/sentinnell/analytics_api/internal/utils"
)

// existsChunk bounds the IN list of a single Exists statement.
const existsChunk = 500

// SortKey enumerates the orderings Query supports.
type SortKey int

const (
	SortCreatedDesc SortKey = iota
	SortPriceAsc
)

// ProductFilter narrows Query. Zero values disable a filter.
type ProductFilter struct {
	Name       string // substring of name
	CategoryID int64
	Limit      int // <= 0 means unlimited
	Offset     int
}

// UpsertResult reports what Upsert did.
type UpsertResult struct {
	ID      int64
	Created bool
}

// ProductRepository handles data access for products.
type ProductRepository struct {
	store *database.Store
	now   func() time.Time
}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository(store *database.Store) *ProductRepository {
	return &ProductRepository{store: store, now: time.Now}
}

const insertProduct = `
	INSERT INTO products (
		shopee_id, name, price, original_price, category_id, shop_id, shop_name, shop_type,
		stock, commission_rate, seller_commission_rate, shopee_commission_rate, sales,
		rating_star, price_discount_rate, image_url, item_status, discount, offer_link,
		product_link, affiliate_link, short_link, sub_ids, period_start_time, period_end_time,
		product_metadata, created_at, updated_at
	) VALUES (
		:shopee_id, :name, :price, :original_price, :category_id, :shop_id, :shop_name, :shop_type,
		:stock, :commission_rate, :seller_commission_rate, :shopee_commission_rate, :sales,
		:rating_star, :price_discount_rate, :image_url, :item_status, :discount, :offer_link,
		:product_link, :affiliate_link, :short_link, :sub_ids, :period_start_time, :period_end_time,
		:product_metadata, :created_at, :updated_at
	)`

// Optional columns keep their stored value when the incoming one is NULL.
const updateProduct = `
	UPDATE products SET
		name = :name,
		price = :price,
		original_price = :original_price,
		category_id = :category_id,
		shop_id = :shop_id,
		shop_name = :shop_name,
		shop_type = :shop_type,
		stock = :stock,
		commission_rate = :commission_rate,
		seller_commission_rate = :seller_commission_rate,
		shopee_commission_rate = :shopee_commission_rate,
		sales = :sales,
		rating_star = :rating_star,
		price_discount_rate = :price_discount_rate,
		image_url = :image_url,
		item_status = :item_status,
		discount = :discount,
		offer_link = :offer_link,
		product_link = :product_link,
		affiliate_link = :affiliate_link,
		short_link = COALESCE(:short_link, short_link),
		sub_ids = COALESCE(:sub_ids, sub_ids),
		period_start_time = COALESCE(:period_start_time, period_start_time),
		period_end_time = COALESCE(:period_end_time, period_end_time),
		product_metadata = COALESCE(:product_metadata, product_metadata),
		updated_at = :updated_at
	WHERE id = :id`

// Upsert inserts the product or merges it into the stored row with the same
// external id. Lookup and write share one transaction that holds the write
// lock from BEGIN, so concurrent upserts of one id never both insert.
// On success p carries the stored id and bookkeeping timestamps.
func (r *ProductRepository) Upsert(ctx context.Context, p *models.Product) (UpsertResult, error) {
	if strings.TrimSpace(p.ExternalID) == "" {
		return UpsertResult{}, fmt.Errorf("%w: product has no external id", utils.ErrValidation)
	}

	var result UpsertResult
	var row models.Product
	err := r.store.Write(ctx, "upsert", func(ctx context.Context, tx *sqlx.Tx) error {
		now := r.now().UTC()
		row = *p

		var existing struct {
			ID        int64     `db:"id"`
			CreatedAt time.Time `db:"created_at"`
			UpdatedAt time.Time `db:"updated_at"`
		}
		err := tx.GetContext(ctx, &existing, `SELECT id, created_at, updated_at FROM products WHERE shopee_id = ?`, p.ExternalID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			row.CreatedAt = now
			row.UpdatedAt = now
			res, err := tx.NamedExecContext(ctx, insertProduct, &row)
			if err != nil {
				return err
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			row.ID = id
			result = UpsertResult{ID: id, Created: true}
			return nil
		case err != nil:
			return err
		}

		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
		row.UpdatedAt = monotonicUpdate(now, existing.CreatedAt, existing.UpdatedAt)
		if _, err := tx.NamedExecContext(ctx, updateProduct, &row); err != nil {
			return err
		}
		result = UpsertResult{ID: existing.ID}
		return nil
	})
	if err != nil {
		return UpsertResult{}, err
	}

	p.ID = row.ID
	p.CreatedAt = row.CreatedAt
	p.UpdatedAt = row.UpdatedAt
	return result, nil
}

// Query returns a fully materialized page of products.
func (r *ProductRepository) Query(ctx context.Context, filter ProductFilter, sort SortKey) ([]models.Product, error) {
	orderBy := "created_at DESC, id DESC"
	if sort == SortPriceAsc {
		orderBy = "price ASC, id ASC"
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	q := `SELECT * FROM products
		WHERE (? = '' OR name LIKE '%' || ? || '%' ESCAPE '\')
		AND (? = 0 OR category_id = ?)
		ORDER BY ` + orderBy + `
		LIMIT ? OFFSET ?`
	name := escapeLike(filter.Name)

	products := make([]models.Product, 0)
	err := r.store.Read(ctx, "query", func(ctx context.Context, conn *sqlx.Conn) error {
		products = products[:0]
		return conn.SelectContext(ctx, &products, q, name, name, filter.CategoryID, filter.CategoryID, limit, offset)
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

// Exists returns the subset of ids that are persisted. It never writes.
func (r *ProductRepository) Exists(ctx context.Context, ids []string) (map[string]struct{}, error) {
	found := make(map[string]struct{})
	unique := dedupe(ids)
	if len(unique) == 0 {
		return found, nil
	}

	err := r.store.Read(ctx, "exists", func(ctx context.Context, conn *sqlx.Conn) error {
		clear(found)
		for start := 0; start < len(unique); start += existsChunk {
			end := min(start+existsChunk, len(unique))
			q, args, err := sqlx.In(`SELECT shopee_id FROM products WHERE shopee_id IN (?)`, unique[start:end])
			if err != nil {
				return err
			}
			var hits []string
			if err := conn.SelectContext(ctx, &hits, conn.Rebind(q), args...); err != nil {
				return err
			}
			for _, id := range hits {
				found[id] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// GetByExternalID returns a single product by its catalog id.
func (r *ProductRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Product, error) {
	var p models.Product
	err := r.store.Read(ctx, "get", func(ctx context.Context, conn *sqlx.Conn) error {
		err := conn.GetContext(ctx, &p, `SELECT * FROM products WHERE shopee_id = ? LIMIT 1`, externalID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", utils.ErrProductNotFound, externalID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateCategory moves a stored product to another category.
func (r *ProductRepository) UpdateCategory(ctx context.Context, externalID string, categoryID int64) error {
	return r.store.Write(ctx, "update_category", func(ctx context.Context, tx *sqlx.Tx) error {
		var stamps struct {
			CreatedAt time.Time `db:"created_at"`
			UpdatedAt time.Time `db:"updated_at"`
		}
		err := tx.GetContext(ctx, &stamps, `SELECT created_at, updated_at FROM products WHERE shopee_id = ?`, externalID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", utils.ErrProductNotFound, externalID)
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE products SET category_id = ?, updated_at = ? WHERE shopee_id = ?`,
			categoryID, monotonicUpdate(r.now().UTC(), stamps.CreatedAt, stamps.UpdatedAt), externalID)
		return err
	})
}

// monotonicUpdate picks the next updated_at for a stored row: the current time,
// but never earlier than the row's creation or its previous update.
func monotonicUpdate(now, createdAt, updatedAt time.Time) time.Time {
	next := now
	if next.Before(createdAt) {
		next = createdAt
	}
	if next.Before(updatedAt) {
		next = updatedAt
	}
	return next
}

// Count returns the number of stored products.
func (r *ProductRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.store.Read(ctx, "count", func(ctx context.Context, conn *sqlx.Conn) error {
		return conn.GetContext(ctx, &n, `SELECT COUNT(1) FROM products`)
	})
	return n, err
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
