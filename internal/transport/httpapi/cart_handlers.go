package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type addCartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

type updateCartItemRequest struct {
	Quantity *int64 `json:"quantity"`
}

func (h *handler) getCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.deps.Carts.GetOrCreateCart(r.Context(), userFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCart(c))
}

func (h *handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.deps.Carts.AddItem(r.Context(), userFromContext(r.Context()), req.ProductID, req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCart(c))
}

func (h *handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateCartItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Quantity == nil {
		h.fail(w, r, domain.NewValidationError("quantity", "is required"))
		return
	}
	c, err := h.deps.Carts.UpdateItemQuantity(r.Context(), userFromContext(r.Context()), chi.URLParam(r, "productID"), *req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCart(c))
}

func (h *handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.deps.Carts.RemoveItem(r.Context(), userFromContext(r.Context()), chi.URLParam(r, "productID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCart(c))
}

func (h *handler) clearCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.deps.Carts.ClearCart(r.Context(), userFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCart(c))
}

// decodeBody читает JSON-тело запроса. При ошибке ответ уже записан.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := "invalid JSON body"
		if !errors.Is(err, io.EOF) {
			msg = fmt.Sprintf("invalid JSON body: %v", err)
		}
		writeError(w, http.StatusBadRequest, codeValidation, msg)
		return false
	}
	return true
}
