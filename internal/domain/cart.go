package domain

import "time"

// CartItem — строка корзины. Цена фиксируется в момент добавления товара.
type CartItem struct {
	ID             string
	CartID         string
	ProductID      string
	Quantity       int64
	UnitPriceMinor int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	// Product подгружается вместе с корзиной.
	Product *Product
}

// LineTotalMinor возвращает стоимость строки по зафиксированной цене.
func (i CartItem) LineTotalMinor() int64 {
	return i.Quantity * i.UnitPriceMinor
}

// Cart — корзина пользователя. Создаётся лениво и никогда не удаляется,
// после оформления заказа очищается.
type Cart struct {
	ID        string
	UserID    string
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsEmpty сообщает, что в корзине нет позиций.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// TotalMinor возвращает сумму корзины по зафиксированным ценам.
func (c *Cart) TotalMinor() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.LineTotalMinor()
	}
	return total
}

// FindItem ищет строку корзины по товару.
func (c *Cart) FindItem(productID string) (CartItem, bool) {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return CartItem{}, false
}
