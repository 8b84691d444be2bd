package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type productRepository struct {
	state *state
}

// Get возвращает товар или ErrProductNotFound.
func (r *productRepository) Get(_ context.Context, id string) (domain.Product, error) {
	product, ok := r.state.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// GetForUpdate совпадает с Get: транзакции в памяти и так эксклюзивны.
func (r *productRepository) GetForUpdate(ctx context.Context, id string) (domain.Product, error) {
	return r.Get(ctx, id)
}

// Create сохраняет товар, если ID ещё не занят.
func (r *productRepository) Create(_ context.Context, product domain.Product) error {
	if errs := product.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid product: %w", errs[0])
	}
	if _, exists := r.state.products[product.ID]; exists {
		return fmt.Errorf("product %s already exists", product.ID)
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	if product.UpdatedAt.IsZero() {
		product.UpdatedAt = now
	}
	r.state.products[product.ID] = product
	return nil
}

// DecrementStock уменьшает остаток только если его хватает.
func (r *productRepository) DecrementStock(_ context.Context, id string, amount int64) (bool, error) {
	if amount <= 0 {
		return false, domain.ErrItemQtyInvalid
	}
	product, ok := r.state.products[id]
	if !ok {
		return false, domain.ErrProductNotFound
	}
	if product.StockQuantity < amount {
		return false, nil
	}
	product.StockQuantity -= amount
	product.UpdatedAt = time.Now().UTC()
	r.state.products[id] = product
	return true, nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
