package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// ==================== 媒体类型 ====================

// MediaKind 媒体类型（显式标记，创建时确定，禁止事后按字段推断）
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

// ==================== 持久化状态 ====================

// PersistenceState 资产持久化状态
// 状态只允许迁移一次：unpersisted -> persisted 或 unpersisted -> failed，不可回退
type PersistenceState string

const (
	PersistenceStateUnpersisted PersistenceState = "unpersisted"
	PersistenceStatePersisted   PersistenceState = "persisted"
	PersistenceStateFailed      PersistenceState = "failed"
)

// ==================== 生成尝试审计 ====================

// 尝试结果常量
const (
	AttemptOutcomeSuccess   = "success"
	AttemptOutcomeTimeout   = "timeout"
	AttemptOutcomeTransient = "transient_error"
	AttemptOutcomePermanent = "permanent_error"
)

// ProviderAttempt 单次提供商调用记录（仅追加，不修改）
type ProviderAttempt struct {
	Provider  string  `json:"provider"`
	Seq       int     `json:"seq"`
	Outcome   string  `json:"outcome"`
	LatencyMs int64   `json:"latency_ms"`
	CostUSD   float64 `json:"cost_usd"`
	Error     string  `json:"error,omitempty"`
}

// ==================== 媒体资产 ====================

// MediaAsset 一次媒体生成的产物
// EphemeralURL 是提供商返回的临时地址，会过期；PermanentURL 指向自有对象存储
type MediaAsset struct {
	ID      int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	AssetID string `gorm:"size:64;uniqueIndex;comment:资产UUID" json:"asset_id"`
	PieceID int64  `gorm:"index;comment:所属内容条目ID" json:"piece_id"`

	Kind         MediaKind        `gorm:"size:16;comment:媒体类型(image/video)" json:"kind"`
	EphemeralURL string           `gorm:"size:2048;comment:提供商临时URL" json:"ephemeral_url"`
	PermanentURL string           `gorm:"size:2048;comment:持久化URL" json:"permanent_url"`
	State        PersistenceState `gorm:"size:16;comment:持久化状态" json:"persistence_state"`

	Provider    string  `gorm:"size:64;comment:生成提供商" json:"provider"`
	CostUSD     float64 `gorm:"type:decimal(10,6);default:0;comment:生成成本(美元)" json:"cost_usd"`
	Placeholder bool    `gorm:"default:false;comment:是否为兜底占位资产" json:"placeholder"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`

	Attempts datatypes.JSON `gorm:"comment:提供商尝试审计" json:"attempts"`

	CreatedAt time.Time `json:"created_at"`
}

func (MediaAsset) TableName() string {
	return "media_assets"
}

// SetAttempts 序列化尝试审计
func (a *MediaAsset) SetAttempts(attempts []ProviderAttempt) {
	data, _ := json.Marshal(attempts)
	a.Attempts = datatypes.JSON(data)
}

// GetAttempts 反序列化尝试审计
func (a *MediaAsset) GetAttempts() []ProviderAttempt {
	var attempts []ProviderAttempt
	if len(a.Attempts) > 0 {
		_ = json.Unmarshal(a.Attempts, &attempts)
	}
	return attempts
}

// MarkPersisted 标记持久化成功（仅允许从 unpersisted 迁移一次）
func (a *MediaAsset) MarkPersisted(permanentURL string) bool {
	if a.State != PersistenceStateUnpersisted {
		return false
	}
	a.State = PersistenceStatePersisted
	a.PermanentURL = permanentURL
	return true
}

// MarkPersistFailed 标记持久化失败，临时URL作为尽力而为的替代值
func (a *MediaAsset) MarkPersistFailed() bool {
	if a.State != PersistenceStateUnpersisted {
		return false
	}
	a.State = PersistenceStateFailed
	a.PermanentURL = a.EphemeralURL
	return true
}
