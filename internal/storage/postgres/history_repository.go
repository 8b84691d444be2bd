package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type historyRepository struct {
	q querier
}

// Append добавляет запись журнала статусов.
func (r *historyRepository) Append(ctx context.Context, entry domain.OrderStatusHistory) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var oldStatus sql.NullString
	if entry.OldStatus != nil {
		oldStatus = sql.NullString{String: string(*entry.OldStatus), Valid: true}
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO order_status_history (id, order_id, old_status, new_status, changed_by, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		entry.ID, entry.OrderID, oldStatus, string(entry.NewStatus),
		nullString(entry.ChangedBy), entry.Notes, entry.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrOrderNotFound
		}
		return fmt.Errorf("insert status history: %w", err)
	}

	return nil
}

// List возвращает журнал в хронологическом порядке.
func (r *historyRepository) List(ctx context.Context, orderID string) ([]domain.OrderStatusHistory, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.q.QueryContext(ctx, `
		SELECT id, order_id, old_status, new_status, changed_by, notes, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	defer rows.Close()

	result := make([]domain.OrderStatusHistory, 0)
	for rows.Next() {
		var (
			entry     domain.OrderStatusHistory
			oldStatus sql.NullString
			newStatus string
			changedBy sql.NullString
		)
		if err := rows.Scan(
			&entry.ID, &entry.OrderID, &oldStatus, &newStatus, &changedBy, &entry.Notes, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		if oldStatus.Valid {
			status := domain.OrderStatus(oldStatus.String)
			entry.OldStatus = &status
		}
		entry.NewStatus = domain.OrderStatus(newStatus)
		entry.ChangedBy = stringPtr(changedBy)
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status history: %w", err)
	}

	return result, nil
}

var _ domain.StatusHistoryRepository = (*historyRepository)(nil)
