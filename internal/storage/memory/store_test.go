package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.SeedProducts(context.Background(),
		domain.Product{ID: "p-1", Name: "Widget", PriceMinor: 1000, StockQuantity: 5},
		domain.Product{ID: "p-2", Name: "Gadget", PriceMinor: 250, StockQuantity: 0},
	))
	return store
}

func newOrder(id, userID string, createdAt time.Time) domain.Order {
	return domain.Order{
		ID:               id,
		OrderNumber:      "ORD-" + id,
		UserID:           userID,
		Status:           domain.OrderStatusPending,
		TotalAmountMinor: 2000,
		ShippingAddress:  "221B Baker Street",
		Items: []domain.OrderItem{
			{ID: id + "-i1", ProductID: "p-1", ProductName: "Widget", Quantity: 2, UnitPriceMinor: 1000, TotalPriceMinor: 2000, CreatedAt: createdAt},
		},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func readProduct(t *testing.T, store *memory.Store, id string) domain.Product {
	t.Helper()
	var product domain.Product
	require.NoError(t, store.WithinTx(context.Background(), func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		product, err = uow.Products().Get(ctx, id)
		return err
	}))
	return product
}

func TestStore_WithinTxRollsBackOnError(t *testing.T) {
	store := seededStore(t)
	boom := errors.New("boom")

	err := store.WithinTx(context.Background(), func(ctx context.Context, uow domain.UnitOfWork) error {
		ok, err := uow.Products().DecrementStock(ctx, "p-1", 3)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, uow.Orders().Create(ctx, newOrder("o-1", "u-1", time.Now().UTC())))
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.EqualValues(t, 5, readProduct(t, store, "p-1").StockQuantity)
	err = store.WithinTx(context.Background(), func(ctx context.Context, uow domain.UnitOfWork) error {
		_, err := uow.Orders().Get(ctx, "o-1")
		return err
	})
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestStore_WithinTxRollsBackOnPanic(t *testing.T) {
	store := seededStore(t)

	require.Panics(t, func() {
		_ = store.WithinTx(context.Background(), func(ctx context.Context, uow domain.UnitOfWork) error {
			_, _ = uow.Products().DecrementStock(ctx, "p-1", 5)
			panic("unexpected")
		})
	})

	require.EqualValues(t, 5, readProduct(t, store, "p-1").StockQuantity)
}

func TestStore_WithinTxHonoursCancelledContext(t *testing.T) {
	store := seededStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := store.WithinTx(ctx, func(context.Context, domain.UnitOfWork) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called)
}

func TestProductRepository_DecrementStock(t *testing.T) {
	store := seededStore(t)

	err := store.WithinTx(context.Background(), func(ctx context.Context, uow domain.UnitOfWork) error {
		products := uow.Products()

		ok, err := products.DecrementStock(ctx, "p-1", 5)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = products.DecrementStock(ctx, "p-1", 1)
		require.NoError(t, err)
		require.False(t, ok, "stock must never go negative")

		_, err = products.DecrementStock(ctx, "missing", 1)
		require.ErrorIs(t, err, domain.ErrProductNotFound)

		_, err = products.DecrementStock(ctx, "p-1", 0)
		require.ErrorIs(t, err, domain.ErrItemQtyInvalid)
		return nil
	})
	require.NoError(t, err)
	require.EqualValues(t, 0, readProduct(t, store, "p-1").StockQuantity)
}

func TestProductRepository_CreateRejectsDuplicates(t *testing.T) {
	store := seededStore(t)
	err := store.SeedProducts(context.Background(), domain.Product{ID: "p-1", Name: "Again", PriceMinor: 1})
	require.Error(t, err)

	err = store.SeedProducts(context.Background(), domain.Product{ID: "p-3", Name: "Broken", PriceMinor: 1, StockQuantity: -1})
	require.ErrorIs(t, err, domain.ErrStockNegative)
}
