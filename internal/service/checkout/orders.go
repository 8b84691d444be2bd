package checkout

import (
	"context"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// DefaultListLimit — размер выборки заказов по умолчанию.
const DefaultListLimit = 50

// GetOrder возвращает заказ пользователя. Чужой заказ неотличим от отсутствующего.
func (s *Service) GetOrder(ctx context.Context, userID, orderID string) (domain.Order, error) {
	if userID == "" {
		return domain.Order{}, domain.NewValidationError("user_id", domain.ErrUserRequired.Error())
	}
	var order domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		order, err = uow.Orders().Get(ctx, orderID)
		return err
	})
	if err != nil {
		return domain.Order{}, err
	}
	if order.UserID != userID {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

// ListOrders возвращает заказы пользователя, новые первыми. limit<=0 означает DefaultListLimit.
func (s *Service) ListOrders(ctx context.Context, userID string, limit int) ([]domain.Order, error) {
	if userID == "" {
		return nil, domain.NewValidationError("user_id", domain.ErrUserRequired.Error())
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var orders []domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		orders, err = uow.Orders().ListByUser(ctx, userID, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}
