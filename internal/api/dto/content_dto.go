package dto

import "socialgen_dev_v1_202609/internal/model"

// ==================== 请求 ====================

// GenerateContentRequest 内容生成请求
type GenerateContentRequest struct {
	OwnerID int64 `json:"owner_id"`

	Niche     string   `json:"niche" binding:"required"`
	Audience  string   `json:"audience" binding:"required"`
	Objective string   `json:"objective" binding:"required"`
	Tone      string   `json:"tone"`
	Platforms []string `json:"platforms" binding:"required,min=1"`

	// 可选：覆盖默认的 educational/viral/sales
	ContentTypes []string `json:"content_types"`
	// 可选：指定走视频链路的内容类型
	VideoTypes []string `json:"video_types"`
}

// ListPackagesQuery 内容包列表查询
type ListPackagesQuery struct {
	OwnerID  int64 `form:"owner_id"`
	Page     int   `form:"page,default=1"`
	PageSize int   `form:"page_size,default=20"`
}

// ==================== 响应 ====================

// GenerateContentResult 生成结果
type GenerateContentResult struct {
	PackageID       int64                `json:"package_id"`
	StrategySummary string               `json:"strategy_summary"`
	Pieces          []model.ContentPiece `json:"pieces"`
	ContentIdeas    []string             `json:"content_ideas"`
	TotalTokens     int                  `json:"total_tokens"`
	TotalCostUSD    float64              `json:"total_cost_usd"`
	FailureManifest []string             `json:"failure_manifest"`
}

// PackageListResult 内容包列表
type PackageListResult struct {
	Total    int64                  `json:"total"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"page_size"`
	Items    []model.ContentPackage `json:"items"`
}

// AssetURLResult 媒体资产访问地址
// 私有桶场景返回限时签名地址，其余场景返回持久化地址
type AssetURLResult struct {
	AssetID          string `json:"asset_id"`
	URL              string `json:"url"`
	ExpiresInSeconds int    `json:"expires_in_seconds,omitempty"`
}
