package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/segyhp/repayment-engine/internal/domain"
)

// LoanCache keeps recent loan snapshots close to the API. A miss returns (nil, nil).
type LoanCache interface {
	GetLoan(ctx context.Context, id uuid.UUID) (*domain.Loan, error)
	SetLoan(ctx context.Context, loan *domain.Loan) error
	Invalidate(ctx context.Context, id uuid.UUID) error
}

func loanKey(id uuid.UUID) string {
	return fmt.Sprintf("loan:%s", id)
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *RedisCache) GetLoan(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	val, err := c.client.Get(ctx, loanKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var loan domain.Loan
	if err := json.Unmarshal(val, &loan); err != nil {
		return nil, err
	}
	return &loan, nil
}

func (c *RedisCache) SetLoan(ctx context.Context, loan *domain.Loan) error {
	val, err := json.Marshal(loan)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, loanKey(loan.ID), val, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	return c.client.Del(ctx, loanKey(id)).Err()
}

// MemoryCache is an in-process LoanCache used when Redis is not configured.
// Entries expire after ttl; a non-positive ttl keeps them until invalidated.
type MemoryCache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	loans map[uuid.UUID]memoryEntry
	now   func() time.Time
}

type memoryEntry struct {
	loan      domain.Loan
	expiresAt time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:   ttl,
		loans: make(map[uuid.UUID]memoryEntry),
		now:   time.Now,
	}
}

func (c *MemoryCache) GetLoan(_ context.Context, id uuid.UUID) (*domain.Loan, error) {
	c.mu.RLock()
	entry, ok := c.loans[id]
	c.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		if current, ok := c.loans[id]; ok && current.expiresAt.Equal(entry.expiresAt) {
			delete(c.loans, id)
		}
		c.mu.Unlock()
		return nil, nil
	}

	loan := entry.loan
	return &loan, nil
}

func (c *MemoryCache) SetLoan(_ context.Context, loan *domain.Loan) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := memoryEntry{loan: *loan}
	if c.ttl > 0 {
		entry.expiresAt = c.now().Add(c.ttl)
	}
	c.loans[loan.ID] = entry
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.loans, id)
	return nil
}
