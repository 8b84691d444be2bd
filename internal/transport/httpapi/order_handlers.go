package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/idempotency"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
	"github.com/vladislavdragonenkov/shop/internal/service/checkout"
)

// idempotencyFinishTimeout ограничивает Abort/Complete после завершения оформления.
const idempotencyFinishTimeout = 2 * time.Second

type createOrderRequest struct {
	ShippingAddress string `json:"shipping_address"`
	Notes           string `json:"notes"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (h *handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx := r.Context()
	userID := userFromContext(ctx)
	in := checkout.CreateOrderInput{ShippingAddress: req.ShippingAddress, Notes: req.Notes}

	clientKey := r.Header.Get(HeaderIdempotencyKey)
	if clientKey == "" || h.deps.Idempotency == nil {
		order, err := h.deps.Orders.CreateOrderFromCart(ctx, userID, in)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toOrder(order))
		return
	}

	key, err := idempotency.OrderCreateKey(userID, clientKey)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	logger := h.logger.WithFields(log.Fields{"user_id": userID, "idempotency_key": clientKey})

	existingID, started, err := h.deps.Idempotency.Begin(ctx, key)
	switch {
	case errors.Is(err, idempotency.ErrInProgress):
		h.idemMetric.RecordGuard(metrics.GuardInProgress)
		h.fail(w, r, err)
		return
	case err != nil:
		h.idemMetric.RecordGuard(metrics.GuardError)
		h.fail(w, r, err)
		return
	case !started:
		h.idemMetric.RecordGuard(metrics.GuardReplayed)
		order, err := h.deps.Orders.GetOrder(ctx, userID, existingID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		logger.WithField("order_id", order.ID).Info("idempotent replay")
		writeJSON(w, http.StatusOK, toOrder(order))
		return
	}
	h.idemMetric.RecordGuard(metrics.GuardStarted)

	order, err := h.deps.Orders.CreateOrderFromCart(ctx, userID, in)

	// Ключ освобождается или фиксируется даже после отключения клиента,
	// иначе повторы получают 409 до истечения TTL.
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), idempotencyFinishTimeout)
	defer cancel()

	if err != nil {
		if abortErr := h.deps.Idempotency.Abort(finishCtx, key); abortErr != nil {
			logger.WithError(abortErr).Warn("failed to release idempotency key")
		}
		h.fail(w, r, err)
		return
	}
	// Заказ уже зафиксирован, поэтому ошибка кеша только логируется.
	if err := h.deps.Idempotency.Complete(finishCtx, key, order.ID); err != nil {
		logger.WithError(err).WithField("order_id", order.ID).Warn("failed to store idempotency result")
	}
	writeJSON(w, http.StatusCreated, toOrder(order))
}

func (h *handler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit := checkout.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.fail(w, r, domain.NewValidationError("limit", "must be a positive integer"))
			return
		}
		limit = min(parsed, maxListLimit)
	}

	orders, err := h.deps.Orders.ListOrders(r.Context(), userFromContext(r.Context()), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := listOrdersResponse{Orders: make([]orderResponse, 0, len(orders))}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, toOrder(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.deps.Orders.GetOrder(r.Context(), userFromContext(r.Context()), chi.URLParam(r, "orderID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(order))
}

func (h *handler) getHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "orderID")
	if _, err := h.deps.Orders.GetOrder(ctx, userFromContext(ctx), orderID); err != nil {
		h.fail(w, r, err)
		return
	}
	history, err := h.deps.Statuses.GetStatusHistory(ctx, orderID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyListResponse{History: toHistory(history)})
}

func (h *handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	target, ok := domain.ParseOrderStatus(req.Status)
	if !ok {
		target = domain.OrderStatus(req.Status)
	}

	var actor *string
	if userID := userFromContext(r.Context()); userID != "" {
		actor = &userID
	}

	order, err := h.deps.Statuses.UpdateStatus(r.Context(), chi.URLParam(r, "orderID"), target, actor, req.Notes)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(order))
}
