package repository

import (
	"context"
	"sort"
	"sync"

	"launchpad-backend/internal/models"
)

var (
	_ TradeRepository        = (*MemoryTradeRepository)(nil)
	_ CreatedTokenRepository = (*MemoryCreatedTokenRepository)(nil)
)

// MemoryTradeRepository keeps trade records in process memory.
// Used when no database is configured.
type MemoryTradeRepository struct {
	mu     sync.RWMutex
	trades map[string]models.TradeRecord
}

func NewMemoryTradeRepository() *MemoryTradeRepository {
	return &MemoryTradeRepository{trades: make(map[string]models.TradeRecord)}
}

func (r *MemoryTradeRepository) Create(ctx context.Context, trade *models.TradeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades[trade.ID] = *trade
	return nil
}

func (r *MemoryTradeRepository) GetByID(ctx context.Context, id string) (*models.TradeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.trades[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (r *MemoryTradeRepository) Update(ctx context.Context, trade *models.TradeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.trades[trade.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Status.Terminal() {
		return nil
	}
	r.trades[trade.ID] = *trade
	return nil
}

func (r *MemoryTradeRepository) FindByTrader(ctx context.Context, trader string, limit int) ([]*models.TradeRecord, error) {
	return r.find(func(t *models.TradeRecord) bool { return t.Trader == trader }, limit), nil
}

func (r *MemoryTradeRepository) FindByToken(ctx context.Context, token string, limit int) ([]*models.TradeRecord, error) {
	return r.find(func(t *models.TradeRecord) bool { return t.Token == token }, limit), nil
}

func (r *MemoryTradeRepository) find(match func(*models.TradeRecord) bool, limit int) []*models.TradeRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.TradeRecord
	for _, t := range r.trades {
		t := t
		if match(&t) {
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// MemoryCreatedTokenRepository in-process CreatedTokenRepository
type MemoryCreatedTokenRepository struct {
	mu     sync.RWMutex
	tokens []models.CreatedToken
}

func NewMemoryCreatedTokenRepository() *MemoryCreatedTokenRepository {
	return &MemoryCreatedTokenRepository{}
}

func (r *MemoryCreatedTokenRepository) Create(ctx context.Context, token *models.CreatedToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = append(r.tokens, *token)
	return nil
}

func (r *MemoryCreatedTokenRepository) GetByAddress(ctx context.Context, address string) (*models.CreatedToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tokens {
		if t.Address == address {
			t := t
			return &t, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryCreatedTokenRepository) List(ctx context.Context, limit int) ([]*models.CreatedToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.CreatedToken, 0, len(r.tokens))
	for i := len(r.tokens) - 1; i >= 0; i-- {
		t := r.tokens[i]
		out = append(out, &t)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
