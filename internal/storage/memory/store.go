package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// state — полный снимок данных in-memory хранилища.
type state struct {
	products    map[string]domain.Product
	carts       map[string]domain.Cart
	cartsByUser map[string]string
	cartItems   map[string][]domain.CartItem
	orders      map[string]domain.Order
	numbers     map[string]string
	history     map[string][]domain.OrderStatusHistory
	outbox      map[string]*outboxRecord
	outboxSeq   []string
}

func newState() *state {
	return &state{
		products:    make(map[string]domain.Product),
		carts:       make(map[string]domain.Cart),
		cartsByUser: make(map[string]string),
		cartItems:   make(map[string][]domain.CartItem),
		orders:      make(map[string]domain.Order),
		numbers:     make(map[string]string),
		history:     make(map[string][]domain.OrderStatusHistory),
		outbox:      make(map[string]*outboxRecord),
	}
}

// clone делает копию, достаточную для отката: срезы копируются,
// значения внутри них не меняются на месте.
func (s *state) clone() *state {
	c := newState()
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.carts {
		c.carts[k] = v
	}
	for k, v := range s.cartsByUser {
		c.cartsByUser[k] = v
	}
	for k, v := range s.cartItems {
		c.cartItems[k] = append([]domain.CartItem(nil), v...)
	}
	for k, v := range s.orders {
		v.Items = append([]domain.OrderItem(nil), v.Items...)
		c.orders[k] = v
	}
	for k, v := range s.numbers {
		c.numbers[k] = v
	}
	for k, v := range s.history {
		c.history[k] = append([]domain.OrderStatusHistory(nil), v...)
	}
	for k, v := range s.outbox {
		rec := *v
		c.outbox[k] = &rec
	}
	c.outboxSeq = append([]string(nil), s.outboxSeq...)
	return c
}

// Store — in-memory хранилище для локальной разработки и тестов.
// Транзакции выполняются последовательно: на время WithinTx хранилище
// блокируется целиком, изменения применяются только при успехе fn.
type Store struct {
	mu    sync.Mutex
	state *state
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{state: newState()}
}

// WithinTx выполняет fn над копией данных и публикует её, если fn вернула nil.
// При ошибке или панике копия отбрасывается.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, uow domain.UnitOfWork) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, &unitOfWork{state: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = work
	return nil
}

// Outbox возвращает outbox-репозиторий для работы вне транзакций (outbox worker).
func (s *Store) Outbox() domain.OutboxRepository {
	return &lockedOutbox{store: s}
}

// SeedProducts добавляет товары, используется для демо-данных и тестов.
func (s *Store) SeedProducts(ctx context.Context, products ...domain.Product) error {
	return s.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		for _, product := range products {
			if err := uow.Products().Create(ctx, product); err != nil {
				return err
			}
		}
		return nil
	})
}

// Ping всегда успешен, нужен для health checks.
func (s *Store) Ping(context.Context) error {
	return nil
}

type unitOfWork struct {
	state *state
}

func (u *unitOfWork) Products() domain.ProductRepository {
	return &productRepository{state: u.state}
}

func (u *unitOfWork) Carts() domain.CartRepository {
	return &cartRepository{state: u.state}
}

func (u *unitOfWork) Orders() domain.OrderRepository {
	return &orderRepository{state: u.state}
}

func (u *unitOfWork) History() domain.StatusHistoryRepository {
	return &historyRepository{state: u.state}
}

func (u *unitOfWork) Outbox() domain.OutboxRepository {
	return &outboxRepository{state: u.state}
}

var (
	_ domain.TxManager  = (*Store)(nil)
	_ domain.UnitOfWork = (*unitOfWork)(nil)
)
