package models

import "time"

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// AIModel 用户配置的 AI 模型
type AIModel struct {
	ID        string    `gorm:"primaryKey;size:26" json:"id"`
	UserID    string    `gorm:"index;size:26" json:"user_id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Provider  string    `gorm:"size:20;not null" json:"provider"` // openai, gemini
	Model     string    `gorm:"size:100;not null" json:"model"`
	BaseURL   string    `gorm:"size:255" json:"base_url"`
	APIKey    string    `gorm:"size:255" json:"-"`
	Enabled   bool      `gorm:"index;not null;default:false" json:"enabled"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AIModel) TableName() string {
	return "ai_model"
}

// HasAPIKey 是否单独配置了密钥
func (m AIModel) HasAPIKey() bool {
	return m.APIKey != ""
}
