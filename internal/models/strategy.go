package models

import (
	"encoding/json"
	"time"

	"github.com/dushixiang/prism-studio/pkg/strategy"
	"gorm.io/datatypes"
)

// Strategy 交易策略，配置以 JSON 文档整体存储
type Strategy struct {
	ID            string         `gorm:"primaryKey;size:26" json:"id"`
	UserID        string         `gorm:"index;size:26" json:"user_id"`
	Name          string         `gorm:"size:100;not null" json:"name"`
	Description   string         `gorm:"size:500" json:"description"`
	IsActive      bool           `gorm:"index;not null;default:false" json:"is_active"`
	IsDefault     bool           `gorm:"index;not null;default:false" json:"is_default"` // 系统默认策略，只读
	IsPublic      bool           `gorm:"not null;default:false" json:"is_public"`
	ConfigVisible bool           `gorm:"not null;default:false" json:"config_visible"`
	Version       int            `gorm:"not null;default:1" json:"version"` // 乐观锁版本号
	Config        datatypes.JSON `gorm:"type:json" json:"config"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Strategy) TableName() string {
	return "strategy"
}

// ParseConfig 解析并补齐配置
func (s *Strategy) ParseConfig() (strategy.Config, error) {
	return strategy.Load(s.Config)
}

// SetConfig 序列化配置
func (s *Strategy) SetConfig(cfg strategy.Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	s.Config = data
	return nil
}
