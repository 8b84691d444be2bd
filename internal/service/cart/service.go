// Package cart управляет корзиной пользователя: добавление, изменение
// количества и удаление позиций. Остатки здесь не резервируются.
package cart

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// MaxItemQuantity — верхняя граница количества одного товара в корзине.
const MaxItemQuantity int64 = 10_000

// Service — операции над корзиной поверх TxManager.
type Service struct {
	tx     domain.TxManager
	logger *log.Entry
}

// NewService создаёт сервис корзины. nil logger заменяется на стандартный.
func NewService(tx domain.TxManager, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "cart")
	}
	return &Service{tx: tx, logger: logger}
}

// GetOrCreateCart возвращает корзину пользователя с позициями и товарами.
func (s *Service) GetOrCreateCart(ctx context.Context, userID string) (domain.Cart, error) {
	if err := requireUser(userID); err != nil {
		return domain.Cart{}, err
	}

	var cart domain.Cart
	err := s.tx.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		cart, err = uow.Carts().GetOrCreate(ctx, userID)
		return err
	})
	if err != nil {
		return domain.Cart{}, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

// AddItem добавляет товар в корзину, фиксируя текущую цену товара.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int64) (domain.Cart, error) {
	if err := requireUser(userID); err != nil {
		return domain.Cart{}, err
	}
	if strings.TrimSpace(productID) == "" {
		return domain.Cart{}, domain.NewValidationError("product_id", "is required")
	}
	if quantity < 1 {
		return domain.Cart{}, domain.NewValidationError("quantity", "must be at least 1")
	}
	if quantity > MaxItemQuantity {
		return domain.Cart{}, quantityTooLarge()
	}

	cart, err := s.mutate(ctx, userID, func(ctx context.Context, uow domain.UnitOfWork, cart domain.Cart) error {
		product, err := uow.Products().Get(ctx, productID)
		if err != nil {
			return err
		}
		if existing, ok := cart.FindItem(product.ID); ok && existing.Quantity > MaxItemQuantity-quantity {
			return quantityTooLarge()
		}
		return uow.Carts().AddItem(ctx, cart.ID, domain.CartItem{
			ProductID:      product.ID,
			Quantity:       quantity,
			UnitPriceMinor: product.PriceMinor,
		})
	})
	if err != nil {
		return domain.Cart{}, err
	}

	s.logger.WithFields(log.Fields{
		"user_id":    userID,
		"product_id": productID,
		"quantity":   quantity,
	}).Debug("cart item added")
	return cart, nil
}

// UpdateItemQuantity задаёт количество товара; 0 удаляет позицию.
func (s *Service) UpdateItemQuantity(ctx context.Context, userID, productID string, quantity int64) (domain.Cart, error) {
	if err := requireUser(userID); err != nil {
		return domain.Cart{}, err
	}
	if quantity < 0 {
		return domain.Cart{}, domain.NewValidationError("quantity", "must not be negative")
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, userID, productID)
	}
	if quantity > MaxItemQuantity {
		return domain.Cart{}, quantityTooLarge()
	}

	return s.mutate(ctx, userID, func(ctx context.Context, uow domain.UnitOfWork, cart domain.Cart) error {
		return uow.Carts().UpdateItemQuantity(ctx, cart.ID, productID, quantity)
	})
}

// RemoveItem удаляет товар из корзины.
func (s *Service) RemoveItem(ctx context.Context, userID, productID string) (domain.Cart, error) {
	if err := requireUser(userID); err != nil {
		return domain.Cart{}, err
	}

	return s.mutate(ctx, userID, func(ctx context.Context, uow domain.UnitOfWork, cart domain.Cart) error {
		return uow.Carts().RemoveItem(ctx, cart.ID, productID)
	})
}

// ClearCart удаляет все позиции корзины.
func (s *Service) ClearCart(ctx context.Context, userID string) (domain.Cart, error) {
	if err := requireUser(userID); err != nil {
		return domain.Cart{}, err
	}

	return s.mutate(ctx, userID, func(ctx context.Context, uow domain.UnitOfWork, cart domain.Cart) error {
		return uow.Carts().Clear(ctx, cart.ID)
	})
}

// mutate выполняет fn над корзиной и возвращает её состояние после изменения.
func (s *Service) mutate(ctx context.Context, userID string, fn func(context.Context, domain.UnitOfWork, domain.Cart) error) (domain.Cart, error) {
	var result domain.Cart
	err := s.tx.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		cart, err := uow.Carts().GetOrCreate(ctx, userID)
		if err != nil {
			return fmt.Errorf("load cart: %w", err)
		}
		if err := fn(ctx, uow, cart); err != nil {
			return err
		}
		result, err = uow.Carts().GetOrCreate(ctx, userID)
		return err
	})
	if err != nil {
		return domain.Cart{}, err
	}
	return result, nil
}

func quantityTooLarge() error {
	return domain.NewValidationError("quantity", fmt.Sprintf("must not exceed %d", MaxItemQuantity))
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return domain.NewValidationError("user_id", "is required")
	}
	return nil
}
