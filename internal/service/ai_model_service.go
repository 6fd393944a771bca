package service

import (
	"context"
	"errors"

	"github.com/dushixiang/prism-studio/internal/models"
	"github.com/dushixiang/prism-studio/internal/repo"
	"github.com/dushixiang/prism-studio/internal/xe"
	"github.com/go-orz/orz"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AIModelService 用户AI模型配置
type AIModelService struct {
	logger *zap.Logger

	*orz.Service
	modelRepo *repo.AIModelRepo
}

// NewAIModelService 创建AI模型服务
func NewAIModelService(logger *zap.Logger, db *gorm.DB) *AIModelService {
	return &AIModelService{
		logger:    logger,
		Service:   orz.NewService(db),
		modelRepo: repo.NewAIModelRepo(db),
	}
}

// AIModelItem 模型信息，密钥只返回掩码
type AIModelItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	BaseURL   string `json:"base_url"`
	Enabled   bool   `json:"enabled"`
	HasAPIKey bool   `json:"has_api_key"`
	APIKey    string `json:"api_key"`
}

// AIModelRequest 新增或更新模型，id 为空时新增，api_key 为空时保留原密钥
type AIModelRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name" validate:"required,max=100"`
	Provider string `json:"provider" validate:"required,oneof=openai gemini"`
	Model    string `json:"model" validate:"required,max=100"`
	BaseURL  string `json:"base_url" validate:"omitempty,url"`
	APIKey   string `json:"api_key" validate:"max=255"`
	Enabled  bool   `json:"enabled"`
}

// UpdateModelsRequest 批量更新
type UpdateModelsRequest struct {
	Models []AIModelRequest `json:"models" validate:"dive"`
}

// MaskAPIKey 仅保留首尾四位
func MaskAPIKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

func toModelItem(m *models.AIModel) AIModelItem {
	return AIModelItem{
		ID:        m.ID,
		Name:      m.Name,
		Provider:  m.Provider,
		Model:     m.Model,
		BaseURL:   m.BaseURL,
		Enabled:   m.Enabled,
		HasAPIKey: m.HasAPIKey(),
		APIKey:    MaskAPIKey(m.APIKey),
	}
}

// List 用户的模型列表
func (s *AIModelService) List(ctx context.Context, userID string, enabledOnly bool) ([]AIModelItem, error) {
	items, err := s.modelRepo.FindByUser(ctx, userID, enabledOnly)
	if err != nil {
		return nil, err
	}
	out := make([]AIModelItem, 0, len(items))
	for i := range items {
		out = append(out, toModelItem(&items[i]))
	}
	return out, nil
}

// Update 批量新增或更新模型
func (s *AIModelService) Update(ctx context.Context, userID string, req UpdateModelsRequest) ([]AIModelItem, error) {
	err := s.Transaction(ctx, func(ctx context.Context) error {
		for _, item := range req.Models {
			if err := s.upsert(ctx, userID, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("ai models updated", zap.String("user_id", userID), zap.Int("count", len(req.Models)))
	return s.List(ctx, userID, false)
}

func (s *AIModelService) upsert(ctx context.Context, userID string, req AIModelRequest) error {
	if req.ID == "" {
		return s.modelRepo.Create(ctx, &models.AIModel{
			ID:       ulid.Make().String(),
			UserID:   userID,
			Name:     req.Name,
			Provider: req.Provider,
			Model:    req.Model,
			BaseURL:  req.BaseURL,
			APIKey:   req.APIKey,
			Enabled:  req.Enabled,
		})
	}

	m, err := s.modelRepo.FindByUserAndID(ctx, userID, req.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return xe.ErrModelNotFound
		}
		return err
	}
	m.Name = req.Name
	m.Provider = req.Provider
	m.Model = req.Model
	m.BaseURL = req.BaseURL
	m.Enabled = req.Enabled
	if req.APIKey != "" {
		m.APIKey = req.APIKey
	}
	return s.modelRepo.SaveAll(ctx, m)
}

// Delete 删除模型
func (s *AIModelService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.modelRepo.FindByUserAndID(ctx, userID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return xe.ErrModelNotFound
		}
		return err
	}
	return s.modelRepo.DeleteById(ctx, id)
}

// GetEnabled 获取已启用的模型
func (s *AIModelService) GetEnabled(ctx context.Context, userID, id string) (*models.AIModel, error) {
	if id == "" {
		return nil, xe.ErrModelNotFound
	}
	m, err := s.modelRepo.FindByUserAndID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xe.ErrModelNotFound
		}
		return nil, err
	}
	if !m.Enabled {
		return nil, xe.ErrModelDisabled
	}
	return m, nil
}
