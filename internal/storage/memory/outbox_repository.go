package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// outboxRecord хранит сообщение и служебные поля для in-memory реализации.
type outboxRecord struct {
	msg        domain.OutboxMessage
	status     domain.OutboxStatus
	attemptCnt int
	createdAt  time.Time
	updatedAt  time.Time
}

// outboxRepository работает с outbox внутри транзакции.
type outboxRepository struct {
	state *state
}

// Enqueue сохраняет событие со статусом `pending`.
func (r *outboxRepository) Enqueue(_ context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	r.state.outbox[msg.ID] = &outboxRecord{
		msg:       msg,
		status:    domain.OutboxStatusPending,
		createdAt: msg.CreatedAt,
		updatedAt: now,
	}
	r.state.outboxSeq = append(r.state.outboxSeq, msg.ID)
	return msg, nil
}

// PullPending возвращает до limit сообщений со статусом `pending` в порядке записи.
func (r *outboxRepository) PullPending(_ context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	result := make([]domain.OutboxMessage, 0, limit)
	for _, id := range r.state.outboxSeq {
		rec := r.state.outbox[id]
		if rec.status != domain.OutboxStatusPending {
			continue
		}
		result = append(result, rec.msg)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

// Stats возвращает размер backlog и время самого старого pending-сообщения.
func (r *outboxRepository) Stats(context.Context) (domain.OutboxStats, error) {
	var stats domain.OutboxStats
	for _, rec := range r.state.outbox {
		if rec.status != domain.OutboxStatusPending {
			continue
		}
		stats.PendingCount++
		if stats.OldestPendingAt.IsZero() || rec.createdAt.Before(stats.OldestPendingAt) {
			stats.OldestPendingAt = rec.createdAt
		}
	}
	return stats, nil
}

// MarkSent обновляет статус события после успешной публикации.
func (r *outboxRepository) MarkSent(_ context.Context, id string) error {
	return r.mark(id, domain.OutboxStatusSent)
}

// MarkFailed фиксирует ошибку публикации.
func (r *outboxRepository) MarkFailed(_ context.Context, id string) error {
	return r.mark(id, domain.OutboxStatusFailed)
}

func (r *outboxRepository) mark(id string, status domain.OutboxStatus) error {
	record, ok := r.state.outbox[id]
	if !ok {
		return domain.ErrOutboxPublish
	}
	record.status = status
	record.attemptCnt++
	record.updatedAt = time.Now().UTC()
	return nil
}

// lockedOutbox даёт доступ к outbox вне транзакций под общей блокировкой хранилища.
type lockedOutbox struct {
	store *Store
}

func (l *lockedOutbox) repo() *outboxRepository {
	return &outboxRepository{state: l.store.state}
}

func (l *lockedOutbox) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	return l.repo().Enqueue(ctx, msg)
}

func (l *lockedOutbox) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	return l.repo().PullPending(ctx, limit)
}

func (l *lockedOutbox) Stats(ctx context.Context) (domain.OutboxStats, error) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	return l.repo().Stats(ctx)
}

func (l *lockedOutbox) MarkSent(ctx context.Context, id string) error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	return l.repo().MarkSent(ctx, id)
}

func (l *lockedOutbox) MarkFailed(ctx context.Context, id string) error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	return l.repo().MarkFailed(ctx, id)
}

var (
	_ domain.OutboxRepository = (*outboxRepository)(nil)
	_ domain.OutboxRepository = (*lockedOutbox)(nil)
)
