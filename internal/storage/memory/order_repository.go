package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type orderRepository struct {
	state *state
}

// Create сохраняет новый заказ, если ID и номер заказа ещё не заняты.
func (r *orderRepository) Create(_ context.Context, order domain.Order) error {
	if _, exists := r.state.orders[order.ID]; exists {
		return domain.ErrOrderVersionConflict
	}
	if _, exists := r.state.numbers[order.OrderNumber]; exists {
		return domain.ErrOrderVersionConflict
	}

	items := make([]domain.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		item.OrderID = order.ID
		// Товар не храним внутри заказа, он подгружается при чтении.
		item.Product = nil
		items = append(items, item)
	}
	order.Items = items

	r.state.orders[order.ID] = order
	r.state.numbers[order.OrderNumber] = order.ID
	return nil
}

// Get возвращает заказ с позициями и текущими товарами или ErrOrderNotFound.
func (r *orderRepository) Get(_ context.Context, id string) (domain.Order, error) {
	order, ok := r.state.orders[id]
	if !ok || order.DeletedAt != nil {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return r.withProducts(order), nil
}

// ListByUser возвращает заказы пользователя, ограничивая выборку limit (если >0).
func (r *orderRepository) ListByUser(_ context.Context, userID string, limit int) ([]domain.Order, error) {
	result := make([]domain.Order, 0)
	for _, order := range r.state.orders {
		if order.UserID != userID || order.DeletedAt != nil {
			continue
		}
		result = append(result, order)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	for i := range result {
		result[i] = r.withProducts(result[i])
	}

	return result, nil
}

// UpdateStatus сохраняет статус и отметки времени, проверяя версию (optimistic locking).
func (r *orderRepository) UpdateStatus(_ context.Context, order domain.Order) error {
	current, ok := r.state.orders[order.ID]
	if !ok || current.DeletedAt != nil {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrOrderVersionConflict
	}

	current.Status = order.Status
	current.ShippedAt = order.ShippedAt
	current.DeliveredAt = order.DeliveredAt
	current.UpdatedAt = order.UpdatedAt
	current.Version++
	r.state.orders[order.ID] = current
	return nil
}

func (r *orderRepository) withProducts(order domain.Order) domain.Order {
	items := make([]domain.OrderItem, len(order.Items))
	copy(items, order.Items)
	for i := range items {
		if product, ok := r.state.products[items[i].ProductID]; ok {
			p := product
			items[i].Product = &p
		}
	}
	order.Items = items
	return order
}

var _ domain.OrderRepository = (*orderRepository)(nil)
