// Package orderstatus применяет переходы статусов заказа по таблице
// domain и ведёт журнал изменений.
package orderstatus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

// MaxNotesLength — ограничение длины комментария к переходу.
const MaxNotesLength = 1000

// CanTransitionTo сообщает, допустим ли переход from -> to.
func CanTransitionTo(from, to domain.OrderStatus) bool {
	return domain.CanTransitionTo(from, to)
}

// Service меняет статусы заказов.
type Service struct {
	tx      domain.TxManager
	logger  *log.Entry
	metrics *metrics.OrderMetrics
	now     func() time.Time
}

// NewService создаёт сервис статусов. nil logger и nil metrics допустимы.
func NewService(tx domain.TxManager, logger *log.Entry, m *metrics.OrderMetrics) *Service {
	if logger == nil {
		logger = log.WithField("component", "orderstatus")
	}
	return &Service{tx: tx, logger: logger, metrics: m, now: time.Now}
}

// UpdateStatus переводит заказ в target от имени actorID (nil — системное изменение).
// Пустой notes заменяется комментарием по умолчанию.
//
// Недопустимый переход возвращает *domain.InvalidTransitionError без изменений.
// Ошибка сохранения откатывает транзакцию: запись журнала не создаётся.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, target domain.OrderStatus, actorID *string, notes string) (domain.Order, error) {
	logger := s.logger.WithFields(log.Fields{
		"order_id": orderID,
		"to":       target,
	})

	if !target.Valid() {
		s.metrics.RecordStatusRejected()
		return domain.Order{}, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", target))
	}
	notes = strings.TrimSpace(notes)
	if utf8.RuneCountInString(notes) > MaxNotesLength {
		return domain.Order{}, domain.NewValidationError("notes", fmt.Sprintf("must be at most %d characters", MaxNotesLength))
	}

	var (
		updated domain.Order
		from    domain.OrderStatus
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		order, err := uow.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}

		from = order.Status
		if !CanTransitionTo(from, target) {
			return &domain.InvalidTransitionError{From: from, To: target}
		}

		now := s.now().UTC()
		order.ApplyStatus(target, now)
		if err := uow.Orders().UpdateStatus(ctx, order); err != nil {
			return fmt.Errorf("save order status: %w", err)
		}

		note := notes
		if note == "" {
			note = domain.DefaultTransitionNote(from, target)
		}
		previous := from
		entry := domain.OrderStatusHistory{
			OrderID:   order.ID,
			OldStatus: &previous,
			NewStatus: target,
			ChangedBy: actorID,
			Notes:     note,
			CreatedAt: now,
		}
		if err := uow.History().Append(ctx, entry); err != nil {
			return fmt.Errorf("append status history: %w", err)
		}

		msg, err := domain.NewOrderStatusChangedMessage(order, entry)
		if err != nil {
			return err
		}
		if _, err := uow.Outbox().Enqueue(ctx, msg); err != nil {
			return fmt.Errorf("enqueue status changed event: %w", err)
		}

		updated, err = uow.Orders().Get(ctx, order.ID)
		return err
	})
	if err != nil {
		var transitionErr *domain.InvalidTransitionError
		switch {
		case errors.As(err, &transitionErr):
			s.metrics.RecordStatusRejected()
			logger.WithField("from", transitionErr.From).Info("status transition rejected")
		case errors.Is(err, domain.ErrOrderNotFound):
			logger.Info("order not found")
		default:
			logger.WithError(err).Error("status update failed")
		}
		return domain.Order{}, err
	}

	s.metrics.RecordStatusTransition(from, target)
	logger.WithField("from", from).Info("order status changed")
	return updated, nil
}

// GetStatusHistory возвращает журнал заказа в хронологическом порядке.
func (s *Service) GetStatusHistory(ctx context.Context, orderID string) ([]domain.OrderStatusHistory, error) {
	var history []domain.OrderStatusHistory
	err := s.tx.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		if _, err := uow.Orders().Get(ctx, orderID); err != nil {
			return err
		}
		var err error
		history, err = uow.History().List(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return history, nil
}
