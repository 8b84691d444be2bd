package checkout_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
	"github.com/vladislavdragonenkov/shop/internal/service/cart"
	"github.com/vladislavdragonenkov/shop/internal/service/checkout"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

const validAddress = "221B Baker Street, London"

type fixture struct {
	store    *memory.Store
	carts    *cart.Service
	checkout *checkout.Service
}

func newFixture(t *testing.T, products ...domain.Product) fixture {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.SeedProducts(context.Background(), products...))
	return fixture{
		store:    store,
		carts:    cart.NewService(store, nil),
		checkout: checkout.NewService(store, checkout.WithMetrics(metrics.NewOrderMetricsWithRegisterer(prometheus.NewRegistry()))),
	}
}

func (f fixture) add(t *testing.T, userID, productID string, qty int64) {
	t.Helper()
	_, err := f.carts.AddItem(context.Background(), userID, productID, qty)
	require.NoError(t, err)
}

func (f fixture) stock(t *testing.T, productID string) int64 {
	t.Helper()
	var stock int64
	require.NoError(t, f.store.WithinTx(context.Background(), func(ctx context.Context, uow domain.UnitOfWork) error {
		p, err := uow.Products().Get(ctx, productID)
		stock = p.StockQuantity
		return err
	}))
	return stock
}

func (f fixture) orders(t *testing.T, userID string) []domain.Order {
	t.Helper()
	var orders []domain.Order
	require.NoError(t, f.store.WithinTx(context.Background(), func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		orders, err = uow.Orders().ListByUser(ctx, userID, 0)
		return err
	}))
	return orders
}

func (f fixture) cartItems(t *testing.T, userID string) []domain.CartItem {
	t.Helper()
	c, err := f.carts.GetOrCreateCart(context.Background(), userID)
	require.NoError(t, err)
	return c.Items
}

func TestCreateOrderFromCart_InsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t,
		domain.Product{ID: "A", Name: "Product A", PriceMinor: 10000, StockQuantity: 10},
		domain.Product{ID: "B", Name: "Product B", PriceMinor: 15000, StockQuantity: 2},
	)
	f.add(t, "u-1", "A", 3)
	f.add(t, "u-1", "B", 5)

	_, err := f.checkout.CreateOrderFromCart(context.Background(), "u-1", checkout.CreateOrderInput{ShippingAddress: validAddress})

	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, "B", stockErr.ProductID)
	require.EqualValues(t, 5, stockErr.Requested)
	require.EqualValues(t, 2, stockErr.Available)
	require.Equal(t, "Insufficient stock for Product B. Requested: 5, Available: 2", err.Error())

	require.EqualValues(t, 10, f.stock(t, "A"))
	require.EqualValues(t, 2, f.stock(t, "B"))
	require.Empty(t, f.orders(t, "u-1"))
	require.Len(t, f.cartItems(t, "u-1"), 2)

	pending, err := f.store.Outbox().PullPending(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestCreateOrderFromCart_ExactStockSucceeds(t *testing.T) {
	f := newFixture(t, domain.Product{ID: "C", Name: "Product C", PriceMinor: 2500, StockQuantity: 7})
	f.add(t, "u-1", "C", 7)

	order, err := f.checkout.CreateOrderFromCart(context.Background(), "u-1", checkout.CreateOrderInput{
		ShippingAddress: "  " + validAddress + "  ",
		Notes:           "leave at the door",
	})
	require.NoError(t, err)

	require.Equal(t, domain.OrderStatusPending, order.Status)
	require.EqualValues(t, 7*2500, order.TotalAmountMinor)
	require.Equal(t, validAddress, order.ShippingAddress)
	require.True(t, strings.HasPrefix(order.OrderNumber, "ORD-"))
	require.Len(t, order.Items, 1)
	require.Equal(t, "Product C", order.Items[0].ProductName)
	require.NotNil(t, order.Items[0].Product)
	require.Empty(t, order.ValidateInvariants())

	require.EqualValues(t, 0, f.stock(t, "C"))
	require.Empty(t, f.cartItems(t, "u-1"))

	var history []domain.OrderStatusHistory
	require.NoError(t, f.store.WithinTx(context.Background(), func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		history, err = uow.History().List(ctx, order.ID)
		return err
	}))
	require.Len(t, history, 1)
	require.Nil(t, history[0].OldStatus)
	require.Equal(t, domain.OrderCreatedNote, history[0].Notes)

	pending, err := f.store.Outbox().PullPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, domain.OutboxEventOrderCreated, pending[0].EventType)
	require.Equal(t, order.ID, pending[0].AggregateID)
}

func TestCreateOrderFromCart_UsesCartPriceSnapshot(t *testing.T) {
	f := newFixture(t, domain.Product{ID: "P", Name: "Lamp", PriceMinor: 1000, StockQuantity: 5})

	// Позиция добавлена по старой цене 900, текущая цена товара 1000.
	require.NoError(t, f.store.WithinTx(context.Background(), func(ctx context.Context, uow domain.UnitOfWork) error {
		c, err := uow.Carts().GetOrCreate(ctx, "u-1")
		if err != nil {
			return err
		}
		return uow.Carts().AddItem(ctx, c.ID, domain.CartItem{ProductID: "P", Quantity: 2, UnitPriceMinor: 900})
	}))

	order, err := f.checkout.CreateOrderFromCart(context.Background(), "u-1", checkout.CreateOrderInput{ShippingAddress: validAddress})
	require.NoError(t, err)
	require.EqualValues(t, 1800, order.TotalAmountMinor)
	require.EqualValues(t, 900, order.Items[0].UnitPriceMinor)
	require.EqualValues(t, 1000, order.Items[0].Product.PriceMinor)
	require.EqualValues(t, 3, f.stock(t, "P"))
}

func TestCreateOrderFromCart_OutOfStockFirstFailureWins(t *testing.T) {
	f := newFixture(t,
		domain.Product{ID: "A", Name: "Empty shelf", PriceMinor: 100, StockQuantity: 0},
		domain.Product{ID: "B", Name: "Scarce", PriceMinor: 100, StockQuantity: 1},
	)
	f.add(t, "u-1", "A", 1)
	f.add(t, "u-1", "B", 3)

	_, err := f.checkout.CreateOrderFromCart(context.Background(), "u-1", checkout.CreateOrderInput{ShippingAddress: validAddress})

	var outErr *domain.OutOfStockError
	require.ErrorAs(t, err, &outErr)
	require.Equal(t, "A", outErr.ProductID)
	require.Equal(t, "Product Empty shelf is out of stock", err.Error())
	require.False(t, errors.Is(err, domain.ErrInsufficientStock))
}

func TestCreateOrderFromCart_LocksProductsByID(t *testing.T) {
	f := newFixture(t,
		domain.Product{ID: "A", Name: "A", PriceMinor: 100, StockQuantity: 10},
		domain.Product{ID: "B", Name: "B", PriceMinor: 200, StockQuantity: 10},
		domain.Product{ID: "C", Name: "C", PriceMinor: 300, StockQuantity: 10},
	)
	f.add(t, "u-1", "C", 1)
	f.add(t, "u-1", "A", 2)
	f.add(t, "u-1", "B", 3)

	recorder := &faultyTx{inner: f.store}
	order, err := checkout.NewService(recorder).CreateOrderFromCart(context.Background(), "u-1", checkout.CreateOrderInput{ShippingAddress: validAddress})
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B", "C"}, recorder.locked)

	// Позиции заказа идут в порядке корзины, время строк строго растёт.
	require.Len(t, order.Items, 3)
	for i, want := range []string{"C", "A", "B"} {
		require.Equal(t, want, order.Items[i].ProductID)
		if i > 0 {
			require.True(t, order.Items[i].CreatedAt.After(order.Items[i-1].CreatedAt))
		}
	}
}

func TestCreateOrderFromCart_FirstFailureFollowsCartOrder(t *testing.T) {
	f := newFixture(t,
		domain.Product{ID: "A", Name: "Alpha", PriceMinor: 100, StockQuantity: 0},
		domain.Product{ID: "B", Name: "Beta", PriceMinor: 100, StockQuantity: 1},
	)
	f.add(t, "u-1", "B", 2)
	f.add(t, "u-1", "A", 1)

	_, err := f.checkout.CreateOrderFromCart(context.Background(), "u-1", checkout.CreateOrderInput{ShippingAddress: validAddress})
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, "B", stockErr.ProductID)
	require.EqualValues(t, 1, f.stock(t, "B"))
}

func TestCreateOrderFromCart_EmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.checkout.CreateOrderFromCart(context.Background(), "u-1", checkout.CreateOrderInput{ShippingAddress: validAddress})
	require.ErrorIs(t, err, domain.ErrEmptyCart)
	require.Equal(t, "Cart is empty", err.Error())
}

func TestCreateOrderFromCart_Validation(t *testing.T) {
	f := newFixture(t, domain.Product{ID: "A", Name: "A", PriceMinor: 100, StockQuantity: 5})
	f.add(t, "u-1", "A", 1)
	ctx := context.Background()

	cases := []struct {
		name   string
		userID string
		input  checkout.CreateOrderInput
		field  string
	}{
		{name: "missing user", userID: " ", input: checkout.CreateOrderInput{ShippingAddress: validAddress}, field: "user_id"},
		{name: "short address", userID: "u-1", input: checkout.CreateOrderInput{ShippingAddress: "  short   "}, field: "shipping_address"},
		{name: "long notes", userID: "u-1", input: checkout.CreateOrderInput{ShippingAddress: validAddress, Notes: strings.Repeat("n", checkout.MaxNotesLength+1)}, field: "notes"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.checkout.CreateOrderFromCart(ctx, tc.userID, tc.input)
			var vErr *domain.ValidationError
			require.ErrorAs(t, err, &vErr)
			require.Equal(t, tc.field, vErr.Field)
		})
	}

	require.Len(t, f.cartItems(t, "u-1"), 1)
	require.EqualValues(t, 5, f.stock(t, "A"))
}

func TestCreateOrderFromCart_MinAddressLengthOption(t *testing.T) {
	store := memory.NewStore()
	require.NoError(t, store.SeedProducts(context.Background(), domain.Product{ID: "A", Name: "A", PriceMinor: 100, StockQuantity: 5}))
	_, err := cart.NewService(store, nil).AddItem(context.Background(), "u-1", "A", 1)
	require.NoError(t, err)

	svc := checkout.NewService(store, checkout.WithMinShippingAddressLength(3))
	_, err = svc.CreateOrderFromCart(context.Background(), "u-1", checkout.CreateOrderInput{ShippingAddress: "Home"})
	require.NoError(t, err)
}

func TestCreateOrderFromCart_FailureAfterFirstDecrementRollsBack(t *testing.T) {
	f := newFixture(t,
		domain.Product{ID: "A", Name: "A", PriceMinor: 100, StockQuantity: 10},
		domain.Product{ID: "B", Name: "B", PriceMinor: 200, StockQuantity: 10},
	)
	f.add(t, "u-1", "A", 2)
	f.add(t, "u-1", "B", 3)

	boom := errors.New("disk full")
	faulty := &faultyTx{inner: f.store, failOnDecrement: 2, err: boom}
	svc := checkout.NewService(faulty)

	_, err := svc.CreateOrderFromCart(context.Background(), "u-1", checkout.CreateOrderInput{ShippingAddress: validAddress})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, faulty.decrements, "first decrement must have been applied inside the transaction")

	require.EqualValues(t, 10, f.stock(t, "A"))
	require.EqualValues(t, 10, f.stock(t, "B"))
	require.Empty(t, f.orders(t, "u-1"))
	require.Len(t, f.cartItems(t, "u-1"), 2)
}

func TestCreateOrderFromCart_ConcurrentOrdersNeverOversell(t *testing.T) {
	f := newFixture(t, domain.Product{ID: "P", Name: "Hot item", PriceMinor: 500, StockQuantity: 5})
	f.add(t, "u-1", "P", 3)
	f.add(t, "u-2", "P", 3)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i, user := range []string{"u-1", "u-2"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.checkout.CreateOrderFromCart(context.Background(), user, checkout.CreateOrderInput{ShippingAddress: validAddress})
		}()
	}
	wg.Wait()

	var succeeded, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrInsufficientStock):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, insufficient)
	require.EqualValues(t, 2, f.stock(t, "P"))
}

func TestCreateOrderFromCart_LostDecrementRaceReportsStock(t *testing.T) {
	f := newFixture(t, domain.Product{ID: "P", Name: "Racy", PriceMinor: 500, StockQuantity: 5})
	f.add(t, "u-1", "P", 3)

	// Имитируем конкурента, который успел списать остаток между проверкой и UPDATE.
	racy := &faultyTx{inner: f.store, stealBeforeDecrement: 4}
	svc := checkout.NewService(racy)

	_, err := svc.CreateOrderFromCart(context.Background(), "u-1", checkout.CreateOrderInput{ShippingAddress: validAddress})
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.EqualValues(t, 1, stockErr.Available)
	require.EqualValues(t, 5, f.stock(t, "P"))
}

func TestCreateOrderFromCart_OrderNumberGenerator(t *testing.T) {
	f := newFixture(t, domain.Product{ID: "P", Name: "P", PriceMinor: 1, StockQuantity: 1})
	f.add(t, "u-1", "P", 1)

	fixed := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	svc := checkout.NewService(f.store,
		checkout.WithClock(func() time.Time { return fixed }),
		checkout.WithOrderNumberGenerator(func(now time.Time) string { return "ORD-" + now.Format("20060102") + "-TEST" }),
	)

	order, err := svc.CreateOrderFromCart(context.Background(), "u-1", checkout.CreateOrderInput{ShippingAddress: validAddress})
	require.NoError(t, err)
	require.Equal(t, "ORD-20250304-TEST", order.OrderNumber)
	require.True(t, order.CreatedAt.Equal(fixed))
}

func TestNewOrderNumber_Format(t *testing.T) {
	number := checkout.NewOrderNumber(time.Date(2025, 1, 2, 23, 0, 0, 0, time.UTC))
	require.Regexp(t, `^ORD-20250102-[0-9A-HJKMNP-TV-Z]{26}$`, number)
	require.NotEqual(t, number, checkout.NewOrderNumber(time.Now()))
}

// faultyTx оборачивает TxManager и внедряет сбои в списание остатков.
type faultyTx struct {
	inner domain.TxManager

	failOnDecrement      int
	err                  error
	stealBeforeDecrement int64

	decrements int
	locked     []string
}

func (f *faultyTx) WithinTx(ctx context.Context, fn func(ctx context.Context, uow domain.UnitOfWork) error) error {
	return f.inner.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		return fn(ctx, &faultyUoW{UnitOfWork: uow, tx: f})
	})
}

type faultyUoW struct {
	domain.UnitOfWork
	tx *faultyTx
}

func (u *faultyUoW) Products() domain.ProductRepository {
	return &faultyProducts{ProductRepository: u.UnitOfWork.Products(), tx: u.tx}
}

type faultyProducts struct {
	domain.ProductRepository
	tx *faultyTx
}

func (p *faultyProducts) GetForUpdate(ctx context.Context, id string) (domain.Product, error) {
	p.tx.locked = append(p.tx.locked, id)
	return p.ProductRepository.GetForUpdate(ctx, id)
}

func (p *faultyProducts) DecrementStock(ctx context.Context, id string, amount int64) (bool, error) {
	if p.tx.failOnDecrement > 0 && p.tx.decrements+1 == p.tx.failOnDecrement {
		return false, fmt.Errorf("decrement %s: %w", id, p.tx.err)
	}
	if p.tx.stealBeforeDecrement > 0 {
		if _, err := p.ProductRepository.DecrementStock(ctx, id, p.tx.stealBeforeDecrement); err != nil {
			return false, err
		}
		p.tx.stealBeforeDecrement = 0
	}
	ok, err := p.ProductRepository.DecrementStock(ctx, id, amount)
	if err == nil && ok {
		p.tx.decrements++
	}
	return ok, err
}
