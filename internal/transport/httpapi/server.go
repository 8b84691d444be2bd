// Package httpapi — HTTP API корзины и заказов поверх chi.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/idempotency"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
	"github.com/vladislavdragonenkov/shop/internal/service/checkout"
)

const (
	// HeaderUserID несёт идентификатор пользователя.
	HeaderUserID = "X-User-ID"
	// HeaderIdempotencyKey защищает POST /orders от повторов.
	HeaderIdempotencyKey = "Idempotency-Key"

	defaultRequestTimeout = 15 * time.Second
	maxBodyBytes          = 1 << 20
	maxListLimit          = 200
)

// CartService — операции с корзиной.
type CartService interface {
	GetOrCreateCart(ctx context.Context, userID string) (domain.Cart, error)
	AddItem(ctx context.Context, userID, productID string, quantity int64) (domain.Cart, error)
	UpdateItemQuantity(ctx context.Context, userID, productID string, quantity int64) (domain.Cart, error)
	RemoveItem(ctx context.Context, userID, productID string) (domain.Cart, error)
	ClearCart(ctx context.Context, userID string) (domain.Cart, error)
}

// OrderService — оформление и чтение заказов.
type OrderService interface {
	CreateOrderFromCart(ctx context.Context, userID string, in checkout.CreateOrderInput) (domain.Order, error)
	GetOrder(ctx context.Context, userID, orderID string) (domain.Order, error)
	ListOrders(ctx context.Context, userID string, limit int) ([]domain.Order, error)
}

// StatusService — смена статусов и журнал.
type StatusService interface {
	UpdateStatus(ctx context.Context, orderID string, target domain.OrderStatus, actorID *string, notes string) (domain.Order, error)
	GetStatusHistory(ctx context.Context, orderID string) ([]domain.OrderStatusHistory, error)
}

// Dependencies — сервисы, которые обслуживает API.
type Dependencies struct {
	Carts    CartService
	Orders   OrderService
	Statuses StatusService
	// Idempotency необязателен: без него Idempotency-Key игнорируется.
	Idempotency idempotency.Store
}

// Options — параметры роутера.
type Options struct {
	Logger             *log.Entry
	Metrics            *metrics.HTTPMetrics
	IdempotencyMetrics *metrics.IdempotencyMetrics
	RequestTimeout     time.Duration
}

type handler struct {
	deps       Dependencies
	logger     *log.Entry
	idemMetric *metrics.IdempotencyMetrics
}

// NewRouter собирает chi-роутер со всеми маршрутами /api/v1.
func NewRouter(deps Dependencies, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "http")
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	h := &handler{deps: deps, logger: logger, idemMetric: opts.IdempotencyMetrics}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP)
	r.Use(requestLogger(logger, opts.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeValidation, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Смена статуса доступна без пользователя: изменение считается системным.
		r.With(optionalUser).Patch("/orders/{orderID}/status", h.updateStatus)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)

			r.Get("/cart", h.getCart)
			r.Delete("/cart", h.clearCart)
			r.Post("/cart/items", h.addCartItem)
			r.Patch("/cart/items/{productID}", h.updateCartItem)
			r.Delete("/cart/items/{productID}", h.removeCartItem)

			r.Post("/orders", h.createOrder)
			r.Get("/orders", h.listOrders)
			r.Get("/orders/{orderID}", h.getOrder)
			r.Get("/orders/{orderID}/history", h.getHistory)
		})
	})

	return r
}
