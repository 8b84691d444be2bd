// Package checkout оформляет заказ из корзины пользователя в одной транзакции:
// проверка остатков, создание заказа, списание остатков, очистка корзины.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

const (
	// DefaultMinShippingAddressLength — минимальная длина адреса доставки после trim.
	DefaultMinShippingAddressLength = 10
	// MaxNotesLength — ограничение длины комментария к заказу.
	MaxNotesLength = 1000
)

// CreateOrderInput — данные покупателя для оформления заказа.
type CreateOrderInput struct {
	ShippingAddress string
	Notes           string
}

// Service оформляет заказы из корзин.
type Service struct {
	tx            domain.TxManager
	logger        *log.Entry
	metrics       *metrics.OrderMetrics
	now           func() time.Time
	orderNumber   func(time.Time) string
	minAddressLen int
}

// Option настраивает Service.
type Option func(*Service)

// WithLogger задаёт logger сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics подключает метрики оформления заказов.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithOrderNumberGenerator подменяет генератор номеров заказов.
func WithOrderNumberGenerator(gen func(time.Time) string) Option {
	return func(s *Service) {
		s.orderNumber = gen
	}
}

// WithMinShippingAddressLength задаёт минимальную длину адреса; n<=0 игнорируется.
func WithMinShippingAddressLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.minAddressLen = n
		}
	}
}

// NewService создаёт сервис оформления заказов поверх TxManager.
func NewService(tx domain.TxManager, opts ...Option) *Service {
	s := &Service{
		tx:            tx,
		now:           time.Now,
		orderNumber:   NewOrderNumber,
		minAddressLen: DefaultMinShippingAddressLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.WithField("component", "checkout")
	}
	return s
}

// NewOrderNumber формирует номер вида ORD-YYYYMMDD-<ULID>.
func NewOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), ulid.Make().String())
}

// CreateOrderFromCart превращает корзину пользователя в заказ.
//
// Ошибки: *domain.ValidationError, domain.ErrEmptyCart, *domain.OutOfStockError,
// *domain.InsufficientStockError и обёрнутые ошибки хранилища. При любой ошибке
// состояние не меняется.
func (s *Service) CreateOrderFromCart(ctx context.Context, userID string, in CreateOrderInput) (domain.Order, error) {
	started := time.Now()
	logger := s.logger.WithField("user_id", userID)

	order, err := s.createOrder(ctx, userID, in)
	elapsed := time.Since(started)
	if err != nil {
		s.metrics.RecordOrderCreationFailed(err, elapsed)
		entry := logger.WithError(err).WithField("reason", metrics.FailureReason(err))
		if metrics.FailureReason(err) == metrics.ReasonInternal {
			entry.Error("checkout failed")
		} else {
			entry.Info("checkout rejected")
		}
		return domain.Order{}, err
	}

	s.metrics.RecordOrderCreated(len(order.Items), elapsed)
	logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"total_minor":  order.TotalAmountMinor,
		"items":        len(order.Items),
	}).Info("order created")

	return order, nil
}

func (s *Service) createOrder(ctx context.Context, userID string, in CreateOrderInput) (domain.Order, error) {
	address, notes, err := s.validate(userID, in)
	if err != nil {
		return domain.Order{}, err
	}

	var orderID string
	err = s.tx.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		cart, err := uow.Carts().GetOrCreate(ctx, userID)
		if err != nil {
			return fmt.Errorf("load cart: %w", err)
		}
		if cart.IsEmpty() {
			return domain.ErrEmptyCart
		}

		now := s.now().UTC()
		order := domain.Order{
			ID:              uuid.NewString(),
			OrderNumber:     s.orderNumber(now),
			UserID:          userID,
			Status:          domain.OrderStatusPending,
			ShippingAddress: address,
			Notes:           notes,
			Items:           make([]domain.OrderItem, 0, len(cart.Items)),
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		locked, err := lockProducts(ctx, uow.Products(), cart.Items)
		if err != nil {
			return err
		}

		// Остатки проверяются по заблокированным строкам;
		// побеждает первая ошибка в порядке позиций корзины.
		for i, item := range cart.Items {
			product, ok := locked[item.ProductID]
			if !ok {
				return fmt.Errorf("lock product %s: %w", item.ProductID, domain.ErrProductNotFound)
			}
			if err := product.CheckAvailability(item.Quantity); err != nil {
				return err
			}

			line := domain.OrderItem{
				ID:              uuid.NewString(),
				OrderID:         order.ID,
				ProductID:       product.ID,
				ProductName:     product.Name,
				Quantity:        item.Quantity,
				UnitPriceMinor:  item.UnitPriceMinor,
				TotalPriceMinor: item.LineTotalMinor(),
				// Позиции читаются по created_at, шаг в микросекунду сохраняет порядок корзины.
				CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
			}
			order.Items = append(order.Items, line)
			order.TotalAmountMinor += line.TotalPriceMinor
		}

		if errs := order.ValidateInvariants(); len(errs) > 0 {
			return fmt.Errorf("order invariants: %w", errors.Join(errs...))
		}
		if err := uow.Orders().Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, line := range order.Items {
			if err := decrementStock(ctx, uow.Products(), line); err != nil {
				return err
			}
		}

		userRef := userID
		entry := domain.OrderStatusHistory{
			OrderID:   order.ID,
			NewStatus: domain.OrderStatusPending,
			ChangedBy: &userRef,
			Notes:     domain.OrderCreatedNote,
			CreatedAt: now,
		}
		if err := uow.History().Append(ctx, entry); err != nil {
			return fmt.Errorf("append status history: %w", err)
		}

		msg, err := domain.NewOrderCreatedMessage(order)
		if err != nil {
			return err
		}
		if _, err := uow.Outbox().Enqueue(ctx, msg); err != nil {
			return fmt.Errorf("enqueue order created event: %w", err)
		}

		if err := uow.Carts().Clear(ctx, cart.ID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		orderID = order.ID
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	return s.reload(ctx, orderID)
}

// lockProducts блокирует товары корзины строго в порядке ID.
// Отсутствующие товары пропускаются: ошибку вернёт проверка в порядке корзины.
func lockProducts(ctx context.Context, products domain.ProductRepository, items []domain.CartItem) (map[string]domain.Product, error) {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	locked := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		product, err := products.GetForUpdate(ctx, id)
		if errors.Is(err, domain.ErrProductNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lock product %s: %w", id, err)
		}
		locked[id] = product
	}
	return locked, nil
}

// decrementStock списывает остаток условным обновлением. Если между проверкой
// и списанием остаток ушёл (false), ошибка строится по свежему значению.
func decrementStock(ctx context.Context, products domain.ProductRepository, line domain.OrderItem) error {
	ok, err := products.DecrementStock(ctx, line.ProductID, line.Quantity)
	if err != nil {
		return fmt.Errorf("decrement stock for %s: %w", line.ProductID, err)
	}
	if ok {
		return nil
	}

	current, err := products.Get(ctx, line.ProductID)
	if err != nil {
		return fmt.Errorf("reload product %s: %w", line.ProductID, err)
	}
	if err := current.CheckAvailability(line.Quantity); err != nil {
		return err
	}
	return &domain.InsufficientStockError{
		ProductID:   current.ID,
		ProductName: current.Name,
		Requested:   line.Quantity,
		Available:   current.StockQuantity,
	}
}

func (s *Service) validate(userID string, in CreateOrderInput) (string, string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", "", domain.NewValidationError("user_id", "is required")
	}

	address := strings.TrimSpace(in.ShippingAddress)
	if utf8.RuneCountInString(address) < s.minAddressLen {
		return "", "", domain.NewValidationError("shipping_address",
			fmt.Sprintf("must be at least %d characters", s.minAddressLen))
	}

	notes := strings.TrimSpace(in.Notes)
	if utf8.RuneCountInString(notes) > MaxNotesLength {
		return "", "", domain.NewValidationError("notes",
			fmt.Sprintf("must be at most %d characters", MaxNotesLength))
	}

	return address, notes, nil
}

func (s *Service) reload(ctx context.Context, orderID string) (domain.Order, error) {
	var order domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		order, err = uow.Orders().Get(ctx, orderID)
		return err
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("reload order %s: %w", orderID, err)
	}
	return order, nil
}
