package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type productRepository struct {
	q querier
}

const selectProduct = `
	SELECT id, name, price_minor, stock_quantity, created_at, updated_at
	FROM products
	WHERE id = $1
`

func (r *productRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	return r.get(ctx, selectProduct, id)
}

// GetForUpdate блокирует строку товара до конца транзакции.
func (r *productRepository) GetForUpdate(ctx context.Context, id string) (domain.Product, error) {
	return r.get(ctx, selectProduct+" FOR UPDATE", id)
}

func (r *productRepository) get(ctx context.Context, query, id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var p domain.Product
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.PriceMinor, &p.StockQuantity, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return p, nil
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) error {
	if errs := product.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid product: %w", errs[0])
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	if product.UpdatedAt.IsZero() {
		product.UpdatedAt = now
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO products (id, name, price_minor, stock_quantity, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`,
		product.ID, product.Name, product.PriceMinor, product.StockQuantity, product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("product %s already exists", product.ID)
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// DecrementStock уменьшает остаток условным UPDATE: строка меняется,
// только если stock_quantity >= amount.
func (r *productRepository) DecrementStock(ctx context.Context, id string, amount int64) (bool, error) {
	if amount <= 0 {
		return false, domain.ErrItemQtyInvalid
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $2,
		    updated_at = $3
		WHERE id = $1
		  AND stock_quantity >= $2
	`, id, amount, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return true, nil
	}

	var exists bool
	if err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check product exists: %w", err)
	}
	if !exists {
		return false, domain.ErrProductNotFound
	}
	return false, nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
