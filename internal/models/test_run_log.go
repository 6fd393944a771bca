package models

import (
	"time"
)

// TestRunLog AI 测试运行记录
type TestRunLog struct {
	ID            string    `gorm:"primaryKey;size:26" json:"id"`
	UserID        string    `gorm:"index;size:26" json:"user_id"`
	AIModelID     string    `gorm:"index;size:26" json:"ai_model_id"`
	Provider      string    `gorm:"size:20" json:"provider"`
	Model         string    `gorm:"size:100" json:"model"`
	PromptVariant string    `gorm:"size:20" json:"prompt_variant"`
	SystemPrompt  string    `json:"-"`                    // 系统提示词(前端隐藏)
	UserPrompt    string    `json:"user_prompt"`          // 用户提示词
	Response      string    `json:"response"`             // AI返回的内容
	DecisionCount int       `json:"decision_count"`       // 解析出的决策数量
	Duration      int64     `json:"duration"`             // 请求耗时(毫秒)
	Error         string    `json:"error"`                // 错误信息(如果有)
	ExecutedAt    time.Time `gorm:"not null;index" json:"executed_at"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (TestRunLog) TableName() string {
	return "test_run_logs"
}
