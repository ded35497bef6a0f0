package repository

import (
	"context"

	"gorm.io/gorm"

	"socialgen_dev_v1_202609/internal/model"
)

// ==================== 仓储接口 ====================

// BusinessProfileRepository 业务画像仓储接口
type BusinessProfileRepository interface {
	Create(ctx context.Context, profile *model.BusinessProfile) error
	GetByID(ctx context.Context, id int64) (*model.BusinessProfile, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]model.BusinessProfile, error)
}

// ==================== 仓储实现 ====================

type businessProfileRepo struct {
	db *gorm.DB
}

// NewBusinessProfileRepository 创建业务画像仓储
func NewBusinessProfileRepository(db *gorm.DB) BusinessProfileRepository {
	return &businessProfileRepo{db: db}
}

func (r *businessProfileRepo) Create(ctx context.Context, profile *model.BusinessProfile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *businessProfileRepo) GetByID(ctx context.Context, id int64) (*model.BusinessProfile, error) {
	var profile model.BusinessProfile
	if err := r.db.WithContext(ctx).First(&profile, id).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *businessProfileRepo) ListByOwner(ctx context.Context, ownerID int64) ([]model.BusinessProfile, error) {
	var profiles []model.BusinessProfile
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&profiles).Error
	return profiles, err
}
