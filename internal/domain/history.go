package domain

import (
	"fmt"
	"time"
)

// OrderStatusHistory — запись журнала смены статусов. Журнал только дополняется.
type OrderStatusHistory struct {
	ID        string
	OrderID   string
	OldStatus *OrderStatus
	NewStatus OrderStatus
	// ChangedBy пустой для системных изменений.
	ChangedBy *string
	Notes     string
	CreatedAt time.Time
}

// DefaultTransitionNote формирует комментарий для записи журнала по умолчанию.
func DefaultTransitionNote(from, to OrderStatus) string {
	return fmt.Sprintf("Status changed from %s to %s", from, to)
}

// OrderCreatedNote — комментарий первой записи журнала.
const OrderCreatedNote = "Order created"
