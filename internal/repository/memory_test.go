package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchpad-backend/internal/models"
)

func TestMemoryTradeRepositoryKeepsTerminalStatus(t *testing.T) {
	repo := NewMemoryTradeRepository()
	ctx := context.Background()

	rec := &models.TradeRecord{ID: "t1", Token: "0xabc", Trader: "0xdef", Status: models.TradeStatusSubmitted, CreatedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, rec))

	rec.Status = models.TradeStatusConfirmed
	rec.TxHash = "0x01"
	require.NoError(t, repo.Update(ctx, rec))

	rec.Status = models.TradeStatusFailed
	rec.Error = "late failure"
	require.NoError(t, repo.Update(ctx, rec))

	got, err := repo.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusConfirmed, got.Status)
	assert.Empty(t, got.Error)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryTradeRepositoryFindOrdersNewestFirst(t *testing.T) {
	repo := NewMemoryTradeRepository()
	ctx := context.Background()
	base := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Create(ctx, &models.TradeRecord{
			ID: id, Token: "0xabc", Trader: "0xdef", CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	got, err := repo.FindByToken(ctx, "0xabc", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestMemoryCreatedTokenRepository(t *testing.T) {
	repo := NewMemoryCreatedTokenRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &models.CreatedToken{ID: "1", Address: "0x1"}))
	require.NoError(t, repo.Create(ctx, &models.CreatedToken{ID: "2", Address: "0x2"}))

	tok, err := repo.GetByAddress(ctx, "0x2")
	require.NoError(t, err)
	assert.Equal(t, "2", tok.ID)

	list, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "0x2", list[0].Address)
}
