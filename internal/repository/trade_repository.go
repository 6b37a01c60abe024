package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"launchpad-backend/internal/models"
)

// ErrNotFound record does not exist
var ErrNotFound = errors.New("record not found")

// TradeRepository defines the interface for TradeRecord data access
type TradeRepository interface {
	Create(ctx context.Context, trade *models.TradeRecord) error
	GetByID(ctx context.Context, id string) (*models.TradeRecord, error)
	// Update saves trade unless the stored row is already terminal
	Update(ctx context.Context, trade *models.TradeRecord) error
	FindByTrader(ctx context.Context, trader string, limit int) ([]*models.TradeRecord, error)
	FindByToken(ctx context.Context, token string, limit int) ([]*models.TradeRecord, error)
}

// tradeRepository implements TradeRepository
type tradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository creates a new TradeRepository instance
func NewTradeRepository(db *gorm.DB) TradeRepository {
	return &tradeRepository{db: db}
}

func (r *tradeRepository) Create(ctx context.Context, trade *models.TradeRecord) error {
	return r.db.WithContext(ctx).Create(trade).Error
}

func (r *tradeRepository) GetByID(ctx context.Context, id string) (*models.TradeRecord, error) {
	var trade models.TradeRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&trade).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

func (r *tradeRepository) Update(ctx context.Context, trade *models.TradeRecord) error {
	result := r.db.WithContext(ctx).
		Model(&models.TradeRecord{}).
		Where("id = ? AND status NOT IN ?", trade.ID,
			[]models.TradeStatus{models.TradeStatusConfirmed, models.TradeStatusFailed}).
		Updates(map[string]interface{}{
			"approval_tx_hash": trade.ApprovalTxHash,
			"tx_hash":          trade.TxHash,
			"block_number":     trade.BlockNumber,
			"gas_used":         trade.GasUsed,
			"status":           trade.Status,
			"error":            trade.Error,
			"settled_at":       trade.SettledAt,
		})
	return result.Error
}

func (r *tradeRepository) FindByTrader(ctx context.Context, trader string, limit int) ([]*models.TradeRecord, error) {
	var trades []*models.TradeRecord
	err := r.db.WithContext(ctx).
		Where("trader = ?", trader).
		Order("created_at DESC").
		Limit(limit).
		Find(&trades).Error
	return trades, err
}

func (r *tradeRepository) FindByToken(ctx context.Context, token string, limit int) ([]*models.TradeRecord, error) {
	var trades []*models.TradeRecord
	err := r.db.WithContext(ctx).
		Where("token = ?", token).
		Order("created_at DESC").
		Limit(limit).
		Find(&trades).Error
	return trades, err
}
