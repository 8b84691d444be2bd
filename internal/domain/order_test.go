package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// helper для создания базового заказа с одной позицией.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:               "order-1",
		OrderNumber:      "ORD-20260101-TEST",
		UserID:           "user-1",
		Status:           domain.OrderStatusPending,
		TotalAmountMinor: 500,
		ShippingAddress:  "221B Baker Street, London",
		Items: []domain.OrderItem{
			{
				ID:              "item-1",
				OrderID:         "order-1",
				ProductID:       "product-1",
				ProductName:     "Widget",
				Quantity:        5,
				UnitPriceMinor:  100,
				TotalPriceMinor: 500,
				CreatedAt:       now,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
		want error
	}{
		{
			name: "no user",
			mut:  func(o *domain.Order) { o.UserID = "" },
			want: domain.ErrUserRequired,
		},
		{
			name: "negative amount",
			mut:  func(o *domain.Order) { o.TotalAmountMinor = -1 },
			want: domain.ErrAmountNegative,
		},
		{
			name: "no items",
			mut:  func(o *domain.Order) { o.Items = nil },
			want: domain.ErrItemsRequired,
		},
		{
			name: "qty invalid",
			mut:  func(o *domain.Order) { o.Items[0].Quantity = 0 },
			want: domain.ErrItemQtyInvalid,
		},
		{
			name: "price invalid",
			mut:  func(o *domain.Order) { o.Items[0].UnitPriceMinor = -5 },
			want: domain.ErrItemPriceInvalid,
		},
		{
			name: "line total mismatch",
			mut:  func(o *domain.Order) { o.Items[0].TotalPriceMinor = 499 },
			want: domain.ErrItemTotalMismatch,
		},
		{
			name: "amount mismatch",
			mut:  func(o *domain.Order) { o.TotalAmountMinor = 999 },
			want: domain.ErrAmountMismatch,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			tc.mut(&order)

			errs := order.ValidateInvariants()
			require.NotEmpty(t, errs)
			require.Contains(t, errs, tc.want)
		})
	}
}

func TestOrderApplyStatus_Timestamps(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	order := makeOrder()

	order.ApplyStatus(domain.OrderStatusConfirmed, now)
	require.Equal(t, domain.OrderStatusConfirmed, order.Status)
	require.Nil(t, order.ShippedAt)
	require.Nil(t, order.DeliveredAt)

	order.ApplyStatus(domain.OrderStatusShipped, now)
	require.NotNil(t, order.ShippedAt)
	require.True(t, order.ShippedAt.Equal(now))

	later := now.Add(48 * time.Hour)
	order.ApplyStatus(domain.OrderStatusDelivered, later)
	require.NotNil(t, order.DeliveredAt)
	require.True(t, order.DeliveredAt.Equal(later))
	require.True(t, order.ShippedAt.Equal(now), "shipped_at must not move on delivery")
	require.Equal(t, later, order.UpdatedAt)
}
