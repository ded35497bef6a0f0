package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"socialgen_dev_v1_202609/internal/model"
)

// ==================== 仓储接口 ====================

// PackageFilter 内容包查询条件
type PackageFilter struct {
	OwnerID  int64
	Page     int
	PageSize int
}

// ContentPackageRepository 内容包仓储接口
type ContentPackageRepository interface {
	// Create 一次事务写入内容包、条目与媒体资产
	Create(ctx context.Context, pkg *model.ContentPackage) error
	GetByID(ctx context.Context, id int64) (*model.ContentPackage, error)
	List(ctx context.Context, filter PackageFilter) ([]model.ContentPackage, int64, error)
	GetAssetByAssetID(ctx context.Context, assetID string) (*model.MediaAsset, error)

	// 清理支持
	ListExpiredUnpersistedAssets(ctx context.Context, before time.Time, limit int) ([]model.MediaAsset, error)
	DeleteAsset(ctx context.Context, id int64) error
}

// ==================== 仓储实现 ====================

type contentPackageRepo struct {
	db *gorm.DB
}

// NewContentPackageRepository 创建内容包仓储
func NewContentPackageRepository(db *gorm.DB) ContentPackageRepository {
	return &contentPackageRepo{db: db}
}

func (r *contentPackageRepo) Create(ctx context.Context, pkg *model.ContentPackage) error {
	// gorm 关联写入：pieces 与 assets 随 package 一并入库
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(pkg).Error
	})
}

func (r *contentPackageRepo) GetByID(ctx context.Context, id int64) (*model.ContentPackage, error) {
	var pkg model.ContentPackage
	err := r.db.WithContext(ctx).
		Preload("Pieces").
		Preload("Pieces.MediaAsset").
		First(&pkg, id).Error
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (r *contentPackageRepo) List(ctx context.Context, filter PackageFilter) ([]model.ContentPackage, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.ContentPackage{})
	if filter.OwnerID > 0 {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	var pkgs []model.ContentPackage
	err := query.
		Preload("Pieces").
		Preload("Pieces.MediaAsset").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&pkgs).Error
	return pkgs, total, err
}

func (r *contentPackageRepo) GetAssetByAssetID(ctx context.Context, assetID string) (*model.MediaAsset, error) {
	var asset model.MediaAsset
	err := r.db.WithContext(ctx).
		Where("asset_id = ?", assetID).
		First(&asset).Error
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

func (r *contentPackageRepo) ListExpiredUnpersistedAssets(ctx context.Context, before time.Time, limit int) ([]model.MediaAsset, error) {
	if limit <= 0 {
		limit = 100
	}
	var assets []model.MediaAsset
	err := r.db.WithContext(ctx).
		Where("state <> ? AND created_at < ?", model.PersistenceStatePersisted, before).
		Limit(limit).
		Find(&assets).Error
	return assets, err
}

func (r *contentPackageRepo) DeleteAsset(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.MediaAsset{}, id).Error
}
