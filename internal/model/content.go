package model

import (
	"time"

	"gorm.io/datatypes"
)

// ==================== 内容类型常量 ====================

const (
	ContentTypeEducational = "educational"
	ContentTypeViral       = "viral"
	ContentTypeSales       = "sales"
)

// DefaultContentTypes 默认生成的内容类型
func DefaultContentTypes() []string {
	return []string{ContentTypeEducational, ContentTypeViral, ContentTypeSales}
}

// ==================== 内容条目 ====================

// ContentPiece 单条生成内容（文案 + 媒体）
// 独立单元：某一条缺失不影响整个内容包的有效性
type ContentPiece struct {
	BaseModel

	PackageID int64 `gorm:"index;comment:所属内容包ID" json:"package_id"`

	Type                string      `gorm:"size:32;comment:内容类型(educational/viral/sales)" json:"type"`
	Hook                string      `gorm:"size:512;comment:开头钩子" json:"hook"`
	Caption             string      `gorm:"type:text;comment:正文文案" json:"caption"`
	Hashtags            StringSlice `gorm:"type:json;comment:话题标签(10个)" json:"hashtags"`
	CTA                 string      `gorm:"size:512;comment:行动号召" json:"cta"`
	EstimatedEngagement string      `gorm:"size:64;comment:预估互动水平(模型断言值)" json:"estimated_engagement"`
	BestTimeToPost      string      `gorm:"size:64;comment:建议发布时间(模型断言值)" json:"best_time_to_post"`
	QualityScore        float64     `gorm:"type:decimal(4,2);comment:质量评分(模型断言值)" json:"quality_score"`

	// 媒体资产永不为空：生成链全部失败时也会给出占位资产
	MediaAsset *MediaAsset `gorm:"foreignKey:PieceID" json:"media_asset"`
}

func (ContentPiece) TableName() string {
	return "content_pieces"
}

// ==================== 内容包 ====================

// ContentPackage 一次编排运行的完整交付物
// 每次编排仅组装一次，返回后不再修改
type ContentPackage struct {
	BaseModel

	OwnerID   int64 `gorm:"index;comment:归属用户ID" json:"owner_id"`
	ProfileID int64 `gorm:"index;comment:业务画像ID" json:"profile_id"`

	StrategySummary string         `gorm:"type:text;comment:视觉策略摘要" json:"strategy_summary"`
	StrategyJSON    datatypes.JSON `gorm:"comment:完整视觉策略" json:"strategy_json"`

	Pieces       []ContentPiece `gorm:"foreignKey:PackageID" json:"pieces"`
	ContentIdeas StringSlice    `gorm:"type:json;comment:后续选题建议" json:"content_ideas"`

	TotalTokens     int         `gorm:"comment:累计token消耗" json:"total_tokens"`
	TotalCostUSD    float64     `gorm:"type:decimal(10,6);default:0;comment:累计成本(仅成功调用)" json:"total_cost_usd"`
	GeneratedAt     time.Time   `gorm:"comment:生成完成时间" json:"generated_at"`
	FailureManifest StringSlice `gorm:"type:json;comment:失败清单(可观测性用途)" json:"failure_manifest"`
}

func (ContentPackage) TableName() string {
	return "content_packages"
}
