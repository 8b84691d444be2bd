package httpapi

import (
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type productResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	PriceMinor    int64  `json:"price_minor"`
	StockQuantity int64  `json:"stock_quantity"`
}

type cartItemResponse struct {
	ProductID      string           `json:"product_id"`
	Quantity       int64            `json:"quantity"`
	UnitPriceMinor int64            `json:"unit_price_minor"`
	LineTotalMinor int64            `json:"line_total_minor"`
	Product        *productResponse `json:"product,omitempty"`
}

type cartResponse struct {
	ID         string             `json:"id"`
	UserID     string             `json:"user_id"`
	Items      []cartItemResponse `json:"items"`
	TotalMinor int64              `json:"total_minor"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

type orderItemResponse struct {
	ID              string           `json:"id"`
	ProductID       string           `json:"product_id"`
	ProductName     string           `json:"product_name"`
	Quantity        int64            `json:"quantity"`
	UnitPriceMinor  int64            `json:"unit_price_minor"`
	TotalPriceMinor int64            `json:"total_price_minor"`
	Product         *productResponse `json:"product,omitempty"`
}

type orderResponse struct {
	ID                 string               `json:"id"`
	OrderNumber        string               `json:"order_number"`
	UserID             string               `json:"user_id"`
	Status             domain.OrderStatus   `json:"status"`
	StatusLabel        string               `json:"status_label"`
	AllowedTransitions []domain.OrderStatus `json:"allowed_transitions"`
	TotalAmountMinor   int64                `json:"total_amount_minor"`
	ShippingAddress    string               `json:"shipping_address"`
	Notes              string               `json:"notes,omitempty"`
	Items              []orderItemResponse  `json:"items"`
	ShippedAt          *time.Time           `json:"shipped_at,omitempty"`
	DeliveredAt        *time.Time           `json:"delivered_at,omitempty"`
	Version            int64                `json:"version"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

type historyResponse struct {
	ID        string              `json:"id"`
	OrderID   string              `json:"order_id"`
	OldStatus *domain.OrderStatus `json:"old_status"`
	NewStatus domain.OrderStatus  `json:"new_status"`
	ChangedBy *string             `json:"changed_by"`
	Notes     string              `json:"notes"`
	CreatedAt time.Time           `json:"created_at"`
}

type listOrdersResponse struct {
	Orders []orderResponse `json:"orders"`
}

type historyListResponse struct {
	History []historyResponse `json:"history"`
}

func toProduct(p *domain.Product) *productResponse {
	if p == nil {
		return nil
	}
	return &productResponse{ID: p.ID, Name: p.Name, PriceMinor: p.PriceMinor, StockQuantity: p.StockQuantity}
}

func toCart(c domain.Cart) cartResponse {
	items := make([]cartItemResponse, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, cartItemResponse{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceMinor: item.UnitPriceMinor,
			LineTotalMinor: item.LineTotalMinor(),
			Product:        toProduct(item.Product),
		})
	}
	return cartResponse{ID: c.ID, UserID: c.UserID, Items: items, TotalMinor: c.TotalMinor(), UpdatedAt: c.UpdatedAt}
}

func toOrder(o domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemResponse{
			ID:              item.ID,
			ProductID:       item.ProductID,
			ProductName:     item.ProductName,
			Quantity:        item.Quantity,
			UnitPriceMinor:  item.UnitPriceMinor,
			TotalPriceMinor: item.TotalPriceMinor,
			Product:         toProduct(item.Product),
		})
	}
	return orderResponse{
		ID:                 o.ID,
		OrderNumber:        o.OrderNumber,
		UserID:             o.UserID,
		Status:             o.Status,
		StatusLabel:        o.Status.Label(),
		AllowedTransitions: o.Status.AllowedTransitions(),
		TotalAmountMinor:   o.TotalAmountMinor,
		ShippingAddress:    o.ShippingAddress,
		Notes:              o.Notes,
		Items:              items,
		ShippedAt:          o.ShippedAt,
		DeliveredAt:        o.DeliveredAt,
		Version:            o.Version,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
}

func toHistory(entries []domain.OrderStatusHistory) []historyResponse {
	result := make([]historyResponse, 0, len(entries))
	for _, e := range entries {
		result = append(result, historyResponse{
			ID:        e.ID,
			OrderID:   e.OrderID,
			OldStatus: e.OldStatus,
			NewStatus: e.NewStatus,
			ChangedBy: e.ChangedBy,
			Notes:     e.Notes,
			CreatedAt: e.CreatedAt,
		})
	}
	return result
}
