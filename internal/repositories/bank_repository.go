package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"fuel-reconciliation-service/internal/models"
)

type BankRepository interface {
	Create(ctx context.Context, b *models.BankAccount) error
	GetByID(ctx context.Context, id uint64) (*models.BankAccount, error)
}

type bankRepository struct {
	db *gorm.DB
}

func NewBankRepository(db *gorm.DB) BankRepository {
	return &bankRepository{db: db}
}

func (r *bankRepository) Create(ctx context.Context, b *models.BankAccount) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *bankRepository) GetByID(ctx context.Context, id uint64) (*models.BankAccount, error) {
	var b models.BankAccount
	err := r.db.WithContext(ctx).First(&b, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("bank account %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}
