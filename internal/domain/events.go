package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// OrderCreatedEvent — payload события order.created.
type OrderCreatedEvent struct {
	OrderID          string             `json:"order_id"`
	OrderNumber      string             `json:"order_number"`
	UserID           string             `json:"user_id"`
	Status           OrderStatus        `json:"status"`
	TotalAmountMinor int64              `json:"total_amount_minor"`
	Items            []OrderCreatedLine `json:"items"`
	CreatedAt        time.Time          `json:"created_at"`
}

// OrderCreatedLine — позиция в событии order.created.
type OrderCreatedLine struct {
	ProductID      string `json:"product_id"`
	Quantity       int64  `json:"quantity"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
}

// OrderStatusChangedEvent — payload события order.status_changed.
type OrderStatusChangedEvent struct {
	OrderID   string      `json:"order_id"`
	UserID    string      `json:"user_id"`
	From      OrderStatus `json:"from"`
	To        OrderStatus `json:"to"`
	ChangedBy *string     `json:"changed_by,omitempty"`
	Notes     string      `json:"notes,omitempty"`
	ChangedAt time.Time   `json:"changed_at"`
}

// NewOrderCreatedMessage собирает outbox-сообщение об оформлении заказа.
func NewOrderCreatedMessage(order Order) (OutboxMessage, error) {
	event := OrderCreatedEvent{
		OrderID:          order.ID,
		OrderNumber:      order.OrderNumber,
		UserID:           order.UserID,
		Status:           order.Status,
		TotalAmountMinor: order.TotalAmountMinor,
		Items:            make([]OrderCreatedLine, 0, len(order.Items)),
		CreatedAt:        order.CreatedAt,
	}
	for _, item := range order.Items {
		event.Items = append(event.Items, OrderCreatedLine{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceMinor: item.UnitPriceMinor,
		})
	}
	return newOrderMessage(order.ID, OutboxEventOrderCreated, event, order.CreatedAt)
}

// NewOrderStatusChangedMessage собирает outbox-сообщение о смене статуса.
func NewOrderStatusChangedMessage(order Order, entry OrderStatusHistory) (OutboxMessage, error) {
	event := OrderStatusChangedEvent{
		OrderID:   order.ID,
		UserID:    order.UserID,
		To:        entry.NewStatus,
		ChangedBy: entry.ChangedBy,
		Notes:     entry.Notes,
		ChangedAt: entry.CreatedAt,
	}
	if entry.OldStatus != nil {
		event.From = *entry.OldStatus
	}
	return newOrderMessage(order.ID, OutboxEventOrderStatusChanged, event, entry.CreatedAt)
}

func newOrderMessage(orderID, eventType string, event any, at time.Time) (OutboxMessage, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return OutboxMessage{
		AggregateType: OutboxAggregateOrder,
		AggregateID:   orderID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     at,
	}, nil
}
