// Package idempotency защищает оформление заказа от повторных запросов
// с одинаковым Idempotency-Key.
package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	// DefaultTTL — время жизни ключа.
	DefaultTTL = 24 * time.Hour
	// MaxKeyLength ограничивает длину клиентского ключа.
	MaxKeyLength = 128

	keyPrefix       = "idem:order:create:"
	processingValue = "processing"
)

var (
	// ErrInProgress — запрос с тем же ключом ещё выполняется.
	ErrInProgress = errors.New("request with this idempotency key is in progress")
	// ErrInvalidKey — ключ пустой или слишком длинный.
	ErrInvalidKey = errors.New("invalid idempotency key")
)

// Store хранит состояние ключей идемпотентности.
type Store interface {
	// Begin захватывает key. started=true означает, что запрос выполняется впервые.
	// Если запрос уже выполнен, возвращается сохранённый идентификатор заказа.
	// Если выполняется прямо сейчас, возвращается ErrInProgress.
	Begin(ctx context.Context, key string) (existingOrderID string, started bool, err error)
	// Complete сохраняет результат выполненного запроса.
	Complete(ctx context.Context, key, orderID string) error
	// Abort освобождает ключ после неуспешного запроса, чтобы его можно было повторить.
	Abort(ctx context.Context, key string) error
}

// OrderCreateKey строит ключ хранилища из пользователя и клиентского ключа.
func OrderCreateKey(userID, clientKey string) (string, error) {
	clientKey = strings.TrimSpace(clientKey)
	if clientKey == "" || len(clientKey) > MaxKeyLength || userID == "" {
		return "", ErrInvalidKey
	}
	return keyPrefix + userID + ":" + clientKey, nil
}
