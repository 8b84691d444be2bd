package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type cartRepository struct {
	state *state
}

// GetOrCreate возвращает корзину пользователя, создавая её при первом обращении.
func (r *cartRepository) GetOrCreate(_ context.Context, userID string) (domain.Cart, error) {
	if userID == "" {
		return domain.Cart{}, domain.ErrUserRequired
	}

	cartID, ok := r.state.cartsByUser[userID]
	if !ok {
		now := time.Now().UTC()
		cart := domain.Cart{
			ID:        uuid.NewString(),
			UserID:    userID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		r.state.carts[cart.ID] = cart
		r.state.cartsByUser[userID] = cart.ID
		cartID = cart.ID
	}

	cart := r.state.carts[cartID]
	items := r.state.cartItems[cartID]
	cart.Items = make([]domain.CartItem, 0, len(items))
	for _, item := range items {
		if product, ok := r.state.products[item.ProductID]; ok {
			p := product
			item.Product = &p
		}
		cart.Items = append(cart.Items, item)
	}
	return cart, nil
}

// AddItem добавляет позицию или увеличивает количество уже лежащего товара.
// Для существующей позиции сохраняется цена первого добавления.
func (r *cartRepository) AddItem(_ context.Context, cartID string, item domain.CartItem) error {
	if item.Quantity <= 0 {
		return domain.ErrItemQtyInvalid
	}
	now := time.Now().UTC()
	items := r.state.cartItems[cartID]
	for i := range items {
		if items[i].ProductID == item.ProductID {
			items[i].Quantity += item.Quantity
			items[i].UpdatedAt = now
			r.touch(cartID, now)
			return nil
		}
	}

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.CartID = cartID
	item.Product = nil
	item.CreatedAt = now
	item.UpdatedAt = now
	r.state.cartItems[cartID] = append(items, item)
	r.touch(cartID, now)
	return nil
}

// UpdateItemQuantity меняет количество товара в корзине.
func (r *cartRepository) UpdateItemQuantity(_ context.Context, cartID, productID string, quantity int64) error {
	if quantity <= 0 {
		return domain.ErrItemQtyInvalid
	}
	items := r.state.cartItems[cartID]
	for i := range items {
		if items[i].ProductID == productID {
			now := time.Now().UTC()
			items[i].Quantity = quantity
			items[i].UpdatedAt = now
			r.touch(cartID, now)
			return nil
		}
	}
	return domain.ErrCartItemNotFound
}

// RemoveItem удаляет товар из корзины.
func (r *cartRepository) RemoveItem(_ context.Context, cartID, productID string) error {
	items := r.state.cartItems[cartID]
	for i := range items {
		if items[i].ProductID == productID {
			rest := make([]domain.CartItem, 0, len(items)-1)
			rest = append(rest, items[:i]...)
			rest = append(rest, items[i+1:]...)
			r.state.cartItems[cartID] = rest
			r.touch(cartID, time.Now().UTC())
			return nil
		}
	}
	return domain.ErrCartItemNotFound
}

// Clear удаляет все позиции корзины.
func (r *cartRepository) Clear(_ context.Context, cartID string) error {
	delete(r.state.cartItems, cartID)
	r.touch(cartID, time.Now().UTC())
	return nil
}

func (r *cartRepository) touch(cartID string, now time.Time) {
	if cart, ok := r.state.carts[cartID]; ok {
		cart.UpdatedAt = now
		r.state.carts[cartID] = cart
	}
}

var _ domain.CartRepository = (*cartRepository)(nil)
