package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// historyRepository хранит журнал статусов в памяти.
type historyRepository struct {
	state *state
}

// Append добавляет запись в журнал заказа.
func (r *historyRepository) Append(_ context.Context, entry domain.OrderStatusHistory) error {
	if entry.OrderID == "" {
		return domain.ErrOrderNotFound
	}
	if _, ok := r.state.orders[entry.OrderID]; !ok {
		return domain.ErrOrderNotFound
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	entries := append(r.state.history[entry.OrderID], entry)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	r.state.history[entry.OrderID] = entries
	return nil
}

// List возвращает журнал заказа в хронологическом порядке.
func (r *historyRepository) List(_ context.Context, orderID string) ([]domain.OrderStatusHistory, error) {
	entries := r.state.history[orderID]
	result := make([]domain.OrderStatusHistory, len(entries))
	copy(result, entries)
	return result, nil
}

var _ domain.StatusHistoryRepository = (*historyRepository)(nil)
