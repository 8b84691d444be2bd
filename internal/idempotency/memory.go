package idempotency

import (
	"context"
	"sync"
	"time"
)

type memoryRecord struct {
	value     string
	expiresAt time.Time
}

// MemoryStore — хранилище ключей в памяти процесса.
// Просроченные ключи не видны, а физически удаляются через DeleteExpired.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryRecord
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore создаёт хранилище. ttl <= 0 означает DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		records: make(map[string]memoryRecord),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Begin(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if record, ok := s.records[key]; ok && now.Before(record.expiresAt) {
		if record.value == processingValue {
			return "", false, ErrInProgress
		}
		return record.value, false, nil
	}
	s.records[key] = memoryRecord{value: processingValue, expiresAt: now.Add(s.ttl)}
	return "", true, nil
}

func (s *MemoryStore) Complete(ctx context.Context, key, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = memoryRecord{value: orderID, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Abort(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// DeleteExpired удаляет до limit ключей, истёкших к моменту before.
func (s *MemoryStore) DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for key, record := range s.records {
		if limit > 0 && deleted >= limit {
			break
		}
		if before.Before(record.expiresAt) {
			continue
		}
		delete(s.records, key)
		deleted++
	}
	return deleted, nil
}

// Len возвращает число хранимых ключей, включая просроченные.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

var _ Store = (*MemoryStore)(nil)
