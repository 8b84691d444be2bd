package domain

import (
	"context"
	"time"
)

// ProductRepository — доступ к товарам и их остаткам.
type ProductRepository interface {
	// Get возвращает товар или ErrProductNotFound.
	Get(ctx context.Context, id string) (Product, error)
	// GetForUpdate читает актуальный остаток и блокирует строку до конца транзакции.
	GetForUpdate(ctx context.Context, id string) (Product, error)
	// Create сохраняет новый товар.
	Create(ctx context.Context, product Product) error
	// DecrementStock атомарно уменьшает остаток, если его хватает.
	// Возвращает false, если товара меньше amount.
	DecrementStock(ctx context.Context, id string, amount int64) (bool, error)
}

// CartRepository — хранилище корзин пользователей.
type CartRepository interface {
	// GetOrCreate возвращает корзину пользователя вместе с позициями и товарами,
	// создавая её при первом обращении.
	GetOrCreate(ctx context.Context, userID string) (Cart, error)
	// AddItem добавляет позицию или увеличивает количество существующей.
	AddItem(ctx context.Context, cartID string, item CartItem) error
	// UpdateItemQuantity меняет количество товара в корзине.
	UpdateItemQuantity(ctx context.Context, cartID, productID string, quantity int64) error
	// RemoveItem удаляет товар из корзины.
	RemoveItem(ctx context.Context, cartID, productID string) error
	// Clear удаляет все позиции, сама корзина остаётся.
	Clear(ctx context.Context, cartID string) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет заказ вместе с позициями.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ с позициями и товарами или ErrOrderNotFound.
	Get(ctx context.Context, id string) (Order, error)
	// ListByUser возвращает заказы пользователя, новые первыми.
	ListByUser(ctx context.Context, userID string, limit int) ([]Order, error)
	// UpdateStatus сохраняет статус и отметки времени с учётом optimistic locking.
	UpdateStatus(ctx context.Context, order Order) error
}

// StatusHistoryRepository хранит журнал смены статусов.
type StatusHistoryRepository interface {
	Append(ctx context.Context, entry OrderStatusHistory) error
	List(ctx context.Context, orderID string) ([]OrderStatusHistory, error)
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, event OutboxMessage) error
}

// UnitOfWork даёт репозитории, работающие в одной транзакции.
type UnitOfWork interface {
	Products() ProductRepository
	Carts() CartRepository
	Orders() OrderRepository
	History() StatusHistoryRepository
	Outbox() OutboxRepository
}

// TxManager открывает транзакцию, выполняет fn и фиксирует результат.
// Любая ошибка fn откатывает все изменения.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// OutboxStatus — состояние outbox-сообщения.
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	OutboxStatusSent    OutboxStatus = "sent"
	// OutboxStatusFailed — сообщение ушло в DLQ и больше не выбирается воркером.
	OutboxStatusFailed OutboxStatus = "failed"
)

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

const (
	// OutboxAggregateOrder — тип агрегата для событий заказа.
	OutboxAggregateOrder = "order"
	// OutboxEventOrderCreated публикуется после оформления заказа.
	OutboxEventOrderCreated = "order.created"
	// OutboxEventOrderStatusChanged публикуется после смены статуса.
	OutboxEventOrderStatusChanged = "order.status_changed"
)
