package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/idempotency"
)

// Коды ошибок в теле ответа.
const (
	codeValidation        = "validation_error"
	codeEmptyCart         = "empty_cart"
	codeOutOfStock        = "out_of_stock"
	codeInsufficientStock = "insufficient_stock"
	codeInvalidTransition = "invalid_transition"
	codeNotFound          = "not_found"
	codeConflict          = "conflict"
	codeUnauthorized      = "unauthorized"
	codeInternal          = "internal"
)

type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	ProductID string `json:"product_id,omitempty"`
	Requested *int64 `json:"requested,omitempty"`
	Available *int64 `json:"available,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorPayload{Code: code, Message: message}})
}

// errorResponse переводит ошибку сервиса в HTTP-статус и тело ответа.
func errorResponse(err error) (int, errorPayload) {
	var (
		validationErr   *domain.ValidationError
		outOfStockErr   *domain.OutOfStockError
		insufficientErr *domain.InsufficientStockError
		transitionErr   *domain.InvalidTransitionError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity, errorPayload{Code: codeValidation, Message: validationErr.Error(), Field: validationErr.Field}
	case errors.Is(err, domain.ErrEmptyCart):
		return http.StatusUnprocessableEntity, errorPayload{Code: codeEmptyCart, Message: domain.ErrEmptyCart.Error()}
	case errors.Is(err, idempotency.ErrInvalidKey):
		return http.StatusUnprocessableEntity, errorPayload{Code: codeValidation, Message: err.Error(), Field: "idempotency_key"}
	case errors.As(err, &outOfStockErr):
		available := int64(0)
		return http.StatusConflict, errorPayload{
			Code:      codeOutOfStock,
			Message:   outOfStockErr.Error(),
			ProductID: outOfStockErr.ProductID,
			Available: &available,
		}
	case errors.As(err, &insufficientErr):
		requested, available := insufficientErr.Requested, insufficientErr.Available
		return http.StatusConflict, errorPayload{
			Code:      codeInsufficientStock,
			Message:   insufficientErr.Error(),
			ProductID: insufficientErr.ProductID,
			Requested: &requested,
			Available: &available,
		}
	case errors.As(err, &transitionErr):
		return http.StatusConflict, errorPayload{Code: codeInvalidTransition, Message: transitionErr.Error()}
	case domain.IsVersionConflict(err), errors.Is(err, idempotency.ErrInProgress):
		return http.StatusConflict, errorPayload{Code: codeConflict, Message: err.Error()}
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrCartItemNotFound):
		return http.StatusNotFound, errorPayload{Code: codeNotFound, Message: notFoundMessage(err)}
	default:
		return http.StatusInternalServerError, errorPayload{Code: codeInternal, Message: "internal server error"}
	}
}

func notFoundMessage(err error) string {
	for _, target := range []error{domain.ErrOrderNotFound, domain.ErrProductNotFound, domain.ErrCartItemNotFound} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return err.Error()
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, payload := errorResponse(err)
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	writeJSON(w, status, errorBody{Error: payload})
}
