package domain

import (
	"strings"
	"time"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан из корзины и ждёт подтверждения.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed — заказ подтверждён магазином.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusProcessing — заказ комплектуется.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — заказ получен покупателем.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён до отгрузки.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusRefunded — деньги возвращены, статус терминальный.
	OrderStatusRefunded OrderStatus = "refunded"
)

// orderStatuses фиксирует порядок статусов для перечисления и отчётов.
var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusRefunded,
}

// orderStatusTransitions — таблица допустимых переходов (список смежности).
// Переходы в тот же статус и назад по конвейеру не допускаются.
var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {OrderStatusRefunded},
	OrderStatusCancelled:  {OrderStatusRefunded},
	OrderStatusRefunded:   {},
}

var orderStatusLabels = map[OrderStatus]string{
	OrderStatusPending:    "Pending",
	OrderStatusConfirmed:  "Confirmed",
	OrderStatusProcessing: "Processing",
	OrderStatusShipped:    "Shipped",
	OrderStatusDelivered:  "Delivered",
	OrderStatusCancelled:  "Cancelled",
	OrderStatusRefunded:   "Refunded",
}

// AllOrderStatuses возвращает копию списка всех статусов.
func AllOrderStatuses() []OrderStatus {
	result := make([]OrderStatus, len(orderStatuses))
	copy(result, orderStatuses)
	return result
}

// ParseOrderStatus разбирает строковое представление статуса.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", false
	}
	return status, true
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	_, ok := orderStatusTransitions[s]
	return ok
}

// Label возвращает человекочитаемое название статуса.
func (s OrderStatus) Label() string {
	if label, ok := orderStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// IsFinal сообщает, что из статуса нет исходящих переходов.
func (s OrderStatus) IsFinal() bool {
	next, ok := orderStatusTransitions[s]
	return ok && len(next) == 0
}

// AllowedTransitions возвращает копию списка статусов, в которые можно перейти.
func (s OrderStatus) AllowedTransitions() []OrderStatus {
	next := orderStatusTransitions[s]
	result := make([]OrderStatus, len(next))
	copy(result, next)
	return result
}

// CanTransitionTo сообщает, допустим ли переход s -> target.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	return CanTransitionTo(s, target)
}

// CanTransitionTo — чистая функция поиска по таблице переходов.
func CanTransitionTo(from, to OrderStatus) bool {
	for _, next := range orderStatusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderItem — позиция заказа. Все поля фиксируются при создании заказа
// и не зависят от последующих изменений товара.
type OrderItem struct {
	ID              string
	OrderID         string
	ProductID       string
	ProductName     string
	Quantity        int64
	UnitPriceMinor  int64
	TotalPriceMinor int64
	CreatedAt       time.Time
	// Product — текущее состояние товара, подгружается при чтении заказа.
	Product *Product
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID               string
	OrderNumber      string
	UserID           string
	Status           OrderStatus
	TotalAmountMinor int64
	ShippingAddress  string
	Notes            string
	ShippedAt        *time.Time
	DeliveredAt      *time.Time
	DeletedAt        *time.Time
	Items            []OrderItem
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ApplyStatus переводит заказ в новый статус и проставляет отметки времени
// отгрузки и доставки. Допустимость перехода проверяет вызывающий код.
func (o *Order) ApplyStatus(target OrderStatus, now time.Time) {
	o.Status = target
	o.UpdatedAt = now
	switch target {
	case OrderStatusShipped:
		shipped := now
		o.ShippedAt = &shipped
	case OrderStatusDelivered:
		delivered := now
		o.DeliveredAt = &delivered
	}
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.TotalAmountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	// Сверяем сумму заказа с суммой позиций: quantity * unit_price.
	var calc int64
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		if item.TotalPriceMinor != item.Quantity*item.UnitPriceMinor {
			errs = append(errs, ErrItemTotalMismatch)
		}
		calc += item.Quantity * item.UnitPriceMinor
	}
	if calc != o.TotalAmountMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}
