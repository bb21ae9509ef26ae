package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fuel-reconciliation-service/internal/models"
)

type SharedTaxRepository interface {
	GetByProduct(ctx context.Context, product string) (*models.SharedTaxRate, error)
	Upsert(ctx context.Context, rate *models.SharedTaxRate) error
}

type sharedTaxRepository struct {
	db *gorm.DB
}

func NewSharedTaxRepository(db *gorm.DB) SharedTaxRepository {
	return &sharedTaxRepository{db: db}
}

// GetByProduct returns nil without error when the product has no stored rates.
func (r *sharedTaxRepository) GetByProduct(ctx context.Context, product string) (*models.SharedTaxRate, error) {
	var rate models.SharedTaxRate
	err := r.db.WithContext(ctx).Where("product = ?", product).First(&rate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

func (r *sharedTaxRepository) Upsert(ctx context.Context, rate *models.SharedTaxRate) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product"}},
		DoUpdates: clause.AssignmentColumns([]string{"total_tax", "gra_tax", "npa_life_tax", "npa_component_tax", "updated_at"}),
	}).Create(rate).Error
}
