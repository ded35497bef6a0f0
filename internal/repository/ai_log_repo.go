package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"socialgen_dev_v1_202609/internal/model"
)

// ==================== 仓储接口 ====================

// AICallLogRepository AI调用日志仓储接口
type AICallLogRepository interface {
	Create(ctx context.Context, log *model.AICallLog) error
	GetByID(ctx context.Context, id int64) (*model.AICallLog, error)

	// 统计查询
	GetUsageByOwner(ctx context.Context, ownerID int64, startTime, endTime time.Time) (*AIUsageStats, error)
	GetUsageByPackage(ctx context.Context, packageID int64) (*AIUsageStats, error)
	GetTotalCost(ctx context.Context, startTime, endTime time.Time) (float64, error)
}

// ==================== 统计结构 ====================

// AIUsageStats AI用量统计
type AIUsageStats struct {
	TotalCalls        int64   `json:"total_calls"`
	TextCalls         int64   `json:"text_calls"`
	ImageCalls        int64   `json:"image_calls"`
	VideoCalls        int64   `json:"video_calls"`
	TotalInputTokens  int64   `json:"total_input_tokens"`
	TotalOutputTokens int64   `json:"total_output_tokens"`
	TotalAssets       int64   `json:"total_assets"`
	TotalCostUSD      float64 `json:"total_cost_usd"`
	AvgDurationMs     float64 `json:"avg_duration_ms"`
	SuccessCount      int64   `json:"success_count"`
	FailedCount       int64   `json:"failed_count"`
}

// ==================== 仓储实现 ====================

type aiCallLogRepo struct {
	db *gorm.DB
}

// NewAICallLogRepository 创建AI调用日志仓储
func NewAICallLogRepository(db *gorm.DB) AICallLogRepository {
	return &aiCallLogRepo{db: db}
}

func (r *aiCallLogRepo) Create(ctx context.Context, log *model.AICallLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *aiCallLogRepo) GetByID(ctx context.Context, id int64) (*model.AICallLog, error) {
	var log model.AICallLog
	if err := r.db.WithContext(ctx).First(&log, id).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *aiCallLogRepo) GetUsageByOwner(ctx context.Context, ownerID int64, startTime, endTime time.Time) (*AIUsageStats, error) {
	query := r.db.WithContext(ctx).Model(&model.AICallLog{}).
		Where("owner_id = ?", ownerID)
	if !startTime.IsZero() {
		query = query.Where("created_at >= ?", startTime)
	}
	if !endTime.IsZero() {
		query = query.Where("created_at < ?", endTime)
	}
	return r.aggregate(query)
}

func (r *aiCallLogRepo) GetUsageByPackage(ctx context.Context, packageID int64) (*AIUsageStats, error) {
	query := r.db.WithContext(ctx).Model(&model.AICallLog{}).
		Where("package_id = ?", packageID)
	return r.aggregate(query)
}

func (r *aiCallLogRepo) GetTotalCost(ctx context.Context, startTime, endTime time.Time) (float64, error) {
	var total float64
	query := r.db.WithContext(ctx).Model(&model.AICallLog{}).
		Where("status = ?", model.AICallStatusSuccess)
	if !startTime.IsZero() {
		query = query.Where("created_at >= ?", startTime)
	}
	if !endTime.IsZero() {
		query = query.Where("created_at < ?", endTime)
	}
	err := query.Select("COALESCE(SUM(cost_usd), 0)").Scan(&total).Error
	return total, err
}

// aggregate 聚合统计
func (r *aiCallLogRepo) aggregate(query *gorm.DB) (*AIUsageStats, error) {
	var stats AIUsageStats
	err := query.Select(`
		COUNT(*) AS total_calls,
		COALESCE(SUM(CASE WHEN call_type = 'text' THEN 1 ELSE 0 END), 0) AS text_calls,
		COALESCE(SUM(CASE WHEN call_type = 'image' THEN 1 ELSE 0 END), 0) AS image_calls,
		COALESCE(SUM(CASE WHEN call_type = 'video' THEN 1 ELSE 0 END), 0) AS video_calls,
		COALESCE(SUM(input_tokens), 0) AS total_input_tokens,
		COALESCE(SUM(output_tokens), 0) AS total_output_tokens,
		COALESCE(SUM(asset_count), 0) AS total_assets,
		COALESCE(SUM(CASE WHEN status = 'success' THEN cost_usd ELSE 0 END), 0) AS total_cost_usd,
		COALESCE(AVG(duration_ms), 0) AS avg_duration_ms,
		COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0) AS success_count,
		COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0) AS failed_count
	`).Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
