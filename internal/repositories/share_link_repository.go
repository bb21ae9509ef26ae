package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"fuel-reconciliation-service/internal/models"
)

type ShareLinkRepository interface {
	Create(ctx context.Context, link *models.ShareLink, audit *models.ShareLinkAudit) error
	GetByToken(ctx context.Context, token string) (*models.ShareLink, error)
	Revoke(ctx context.Context, id uint64, at time.Time) (bool, error)
	CreateAuditEntry(ctx context.Context, audit *models.ShareLinkAudit) error
	ListAuditEntries(ctx context.Context, linkID uint64) ([]models.ShareLinkAudit, error)
}

type shareLinkRepository struct {
	db *gorm.DB
}

func NewShareLinkRepository(db *gorm.DB) ShareLinkRepository {
	return &shareLinkRepository{db: db}
}

// Create stores the link together with its creation audit entry.
func (r *shareLinkRepository) Create(ctx context.Context, link *models.ShareLink, audit *models.ShareLinkAudit) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(link).Error; err != nil {
			return err
		}
		if audit == nil {
			return nil
		}
		audit.ShareLinkID = link.ID
		return tx.Create(audit).Error
	})
}

func (r *shareLinkRepository) GetByToken(ctx context.Context, token string) (*models.ShareLink, error) {
	var link models.ShareLink
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("share link: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// Revoke sets revoked_at once; it reports false if the link was already revoked.
func (r *shareLinkRepository) Revoke(ctx context.Context, id uint64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ShareLink{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *shareLinkRepository) CreateAuditEntry(ctx context.Context, audit *models.ShareLinkAudit) error {
	return r.db.WithContext(ctx).Create(audit).Error
}

func (r *shareLinkRepository) ListAuditEntries(ctx context.Context, linkID uint64) ([]models.ShareLinkAudit, error) {
	var entries []models.ShareLinkAudit
	err := r.db.WithContext(ctx).
		Where("share_link_id = ?", linkID).
		Order("at ASC").Order("id ASC").
		Find(&entries).Error
	return entries, err
}
