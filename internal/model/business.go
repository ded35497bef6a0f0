package model

// BusinessProfile 商家业务画像
// 所有生成步骤的唯一输入，创建后不可修改（领域不变量：BusinessContext 不可变）
type BusinessProfile struct {
	BaseModel

	OwnerID int64 `gorm:"index;comment:归属用户ID" json:"owner_id"`

	Niche     string      `gorm:"size:256;comment:业务领域" json:"niche"`
	Audience  string      `gorm:"size:256;comment:目标受众" json:"audience"`
	Objective string      `gorm:"size:64;comment:营销目标(sales/awareness/engagement)" json:"objective"`
	Tone      string      `gorm:"size:128;comment:内容语气" json:"tone"`
	Platforms StringSlice `gorm:"type:json;comment:目标平台列表" json:"platforms"`
}

func (BusinessProfile) TableName() string {
	return "business_profiles"
}

// PrimaryPlatform 返回首选平台，用于媒体尺寸推断
func (p *BusinessProfile) PrimaryPlatform() string {
	if len(p.Platforms) > 0 {
		return p.Platforms[0]
	}
	return "instagram"
}
