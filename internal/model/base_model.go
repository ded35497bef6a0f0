package model

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel 落库实体公共字段
// 统一软删除；媒体资产的物理清理由后台任务单独负责
type BaseModel struct {
	ID        int64          `gorm:"primary_key;AUTO_INCREMENT;comment:主键" json:"id"`
	CreatedAt time.Time      `gorm:"comment:创建时间" json:"created_at"`
	UpdatedAt time.Time      `gorm:"comment:更新时间" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index;comment:软删除时间" json:"-"`
}
