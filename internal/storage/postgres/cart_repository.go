package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type cartRepository struct {
	q querier
}

// GetOrCreate создаёт корзину при первом обращении (ON CONFLICT по user_id)
// и возвращает её вместе с позициями и товарами.
func (r *cartRepository) GetOrCreate(ctx context.Context, userID string) (domain.Cart, error) {
	if userID == "" {
		return domain.Cart{}, domain.ErrUserRequired
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := time.Now().UTC()
	if _, err := r.q.ExecContext(ctx, `
		INSERT INTO carts (id, user_id, created_at, updated_at)
		VALUES ($1,$2,$3,$3)
		ON CONFLICT (user_id) DO NOTHING
	`, uuid.NewString(), userID, now); err != nil {
		return domain.Cart{}, fmt.Errorf("ensure cart: %w", err)
	}

	var cart domain.Cart
	if err := r.q.QueryRowContext(ctx, `
		SELECT id, user_id, created_at, updated_at
		FROM carts
		WHERE user_id = $1
	`, userID).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt, &cart.UpdatedAt); err != nil {
		return domain.Cart{}, fmt.Errorf("select cart: %w", err)
	}

	items, err := r.loadItems(ctx, cart.ID)
	if err != nil {
		return domain.Cart{}, err
	}
	cart.Items = items
	return cart, nil
}

// AddItem вставляет позицию или прибавляет количество к существующей.
func (r *cartRepository) AddItem(ctx context.Context, cartID string, item domain.CartItem) error {
	if item.Quantity <= 0 {
		return domain.ErrItemQtyInvalid
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	if _, err := r.q.ExecContext(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, quantity, unit_price_minor, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$6)
		ON CONFLICT (cart_id, product_id) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity,
		    updated_at = EXCLUDED.updated_at
	`, item.ID, cartID, item.ProductID, item.Quantity, item.UnitPriceMinor, now); err != nil {
		return fmt.Errorf("upsert cart item: %w", err)
	}
	return r.touch(ctx, cartID, now)
}

func (r *cartRepository) UpdateItemQuantity(ctx context.Context, cartID, productID string, quantity int64) error {
	if quantity <= 0 {
		return domain.ErrItemQtyInvalid
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := time.Now().UTC()
	res, err := r.q.ExecContext(ctx, `
		UPDATE cart_items
		SET quantity = $3, updated_at = $4
		WHERE cart_id = $1 AND product_id = $2
	`, cartID, productID, quantity, now)
	if err := requireAffected(res, err, domain.ErrCartItemNotFound); err != nil {
		return err
	}
	return r.touch(ctx, cartID, now)
}

func (r *cartRepository) RemoveItem(ctx context.Context, cartID, productID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE cart_id = $1 AND product_id = $2
	`, cartID, productID)
	if err := requireAffected(res, err, domain.ErrCartItemNotFound); err != nil {
		return err
	}
	return r.touch(ctx, cartID, time.Now().UTC())
}

func (r *cartRepository) Clear(ctx context.Context, cartID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.q.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return r.touch(ctx, cartID, time.Now().UTC())
}

func (r *cartRepository) touch(ctx context.Context, cartID string, now time.Time) error {
	if _, err := r.q.ExecContext(ctx, `UPDATE carts SET updated_at = $2 WHERE id = $1`, cartID, now); err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	return nil
}

func (r *cartRepository) loadItems(ctx context.Context, cartID string) ([]domain.CartItem, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.unit_price_minor, ci.created_at, ci.updated_at,
		       p.name, p.price_minor, p.stock_quantity, p.created_at, p.updated_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at ASC, ci.id ASC
	`, cartID)
	if err != nil {
		return nil, fmt.Errorf("load cart items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.CartItem, 0)
	for rows.Next() {
		var (
			item    domain.CartItem
			product domain.Product
		)
		if err := rows.Scan(
			&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.UnitPriceMinor, &item.CreatedAt, &item.UpdatedAt,
			&product.Name, &product.PriceMinor, &product.StockQuantity, &product.CreatedAt, &product.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		product.ID = item.ProductID
		item.Product = &product
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart items: %w", err)
	}
	return items, nil
}

// requireAffected превращает "0 затронутых строк" в notFound.
func requireAffected(res sql.Result, err error, notFound error) error {
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

var _ domain.CartRepository = (*cartRepository)(nil)
