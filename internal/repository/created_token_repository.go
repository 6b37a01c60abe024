package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"launchpad-backend/internal/models"
)

// CreatedTokenRepository data access for tokens launched by the operator
type CreatedTokenRepository interface {
	Create(ctx context.Context, token *models.CreatedToken) error
	GetByAddress(ctx context.Context, address string) (*models.CreatedToken, error)
	List(ctx context.Context, limit int) ([]*models.CreatedToken, error)
}

type createdTokenRepository struct {
	db *gorm.DB
}

func NewCreatedTokenRepository(db *gorm.DB) CreatedTokenRepository {
	return &createdTokenRepository{db: db}
}

func (r *createdTokenRepository) Create(ctx context.Context, token *models.CreatedToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *createdTokenRepository) GetByAddress(ctx context.Context, address string) (*models.CreatedToken, error) {
	var token models.CreatedToken
	err := r.db.WithContext(ctx).Where("address = ?", address).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *createdTokenRepository) List(ctx context.Context, limit int) ([]*models.CreatedToken, error) {
	var tokens []*models.CreatedToken
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&tokens).Error
	return tokens, err
}
