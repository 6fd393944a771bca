package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dushixiang/prism-studio/internal/config"
	"github.com/dushixiang/prism-studio/internal/models"
	"github.com/dushixiang/prism-studio/internal/repo"
	"github.com/dushixiang/prism-studio/internal/telegram"
	"github.com/dushixiang/prism-studio/internal/xe"
	"github.com/dushixiang/prism-studio/pkg/i18n"
	"github.com/dushixiang/prism-studio/pkg/strategy"
	"github.com/go-orz/orz"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultStrategyID 系统默认策略的固定ID
const DefaultStrategyID = "00000000000000000000000000"

// StrategyService 策略管理服务
type StrategyService struct {
	logger *zap.Logger

	*orz.Service
	strategyRepo *repo.StrategyRepo

	tg          *telegram.Telegram
	chatID      string
	defaultLang strategy.Language
	now         func() time.Time
}

// NewStrategyService 创建策略服务
func NewStrategyService(logger *zap.Logger, db *gorm.DB, conf *config.Config, tg *telegram.Telegram) *StrategyService {
	return &StrategyService{
		logger:       logger,
		Service:      orz.NewService(db),
		strategyRepo: repo.NewStrategyRepo(db),
		tg:           tg,
		chatID:       conf.Telegram.ChatID,
		defaultLang:  strategy.ParseLanguage(conf.Studio.DefaultLanguage),
		now:          time.Now,
	}
}

// StrategyItem 策略详情，配置已补齐默认值
type StrategyItem struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	IsActive      bool            `json:"is_active"`
	IsDefault     bool            `json:"is_default"`
	IsPublic      bool            `json:"is_public"`
	ConfigVisible bool            `json:"config_visible"`
	Version       int             `json:"version"`
	Config        strategy.Config `json:"config"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// StrategyRequest 创建/更新请求，config 为空时创建使用默认配置、更新保留原配置。
// version 为客户端编辑时的基准版本，0 表示不做并发检查。
type StrategyRequest struct {
	Name          string          `json:"name" validate:"required,max=100"`
	Description   string          `json:"description" validate:"max=500"`
	Config        json.RawMessage `json:"config"`
	IsPublic      bool            `json:"is_public"`
	ConfigVisible bool            `json:"config_visible"`
	Version       int             `json:"version" validate:"gte=0"`
}

func toItem(m *models.Strategy) (*StrategyItem, error) {
	cfg, err := m.ParseConfig()
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", m.ID, err)
	}
	return &StrategyItem{
		ID:            m.ID,
		UserID:        m.UserID,
		Name:          m.Name,
		Description:   m.Description,
		IsActive:      m.IsActive,
		IsDefault:     m.IsDefault,
		IsPublic:      m.IsPublic,
		ConfigVisible: m.ConfigVisible,
		Version:       m.Version,
		Config:        cfg,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return xe.ErrStrategyNotFound
	}
	return err
}

// Initialize 初始化系统默认策略
func (s *StrategyService) Initialize(ctx context.Context) error {
	count, err := s.strategyRepo.CountDefault(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	item := &models.Strategy{
		ID:          DefaultStrategyID,
		Name:        i18n.T(string(s.defaultLang), i18n.KeyDefaultName),
		Description: i18n.T(string(s.defaultLang), i18n.KeyDefaultDescription),
		IsDefault:   true,
		Version:     1,
	}
	if err := item.SetConfig(strategy.DefaultConfig(s.defaultLang)); err != nil {
		return err
	}
	if err := s.strategyRepo.Create(ctx, item); err != nil {
		return err
	}
	s.logger.Info("默认策略初始化成功", zap.String("language", string(s.defaultLang)))
	return nil
}

// List 用户可见的所有策略
func (s *StrategyService) List(ctx context.Context, userID string) ([]*StrategyItem, error) {
	items, err := s.strategyRepo.FindVisible(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*StrategyItem, 0, len(items))
	var fallback *StrategyItem
	hasActive := false
	for i := range items {
		item, err := toItem(&items[i])
		if err != nil {
			return nil, err
		}
		if item.IsDefault {
			fallback = item
		} else if item.IsActive {
			hasActive = true
		}
		out = append(out, item)
	}
	// 用户没有激活的策略时，默认策略即为生效策略
	if fallback != nil && !hasActive {
		fallback.IsActive = true
	}
	return out, nil
}

// Get 获取单个策略
func (s *StrategyService) Get(ctx context.Context, userID, id string) (*StrategyItem, error) {
	m, err := s.strategyRepo.FindVisibleById(ctx, userID, id)
	if err != nil {
		return nil, notFound(err)
	}
	item, err := toItem(m)
	if err != nil {
		return nil, err
	}
	if item.IsDefault {
		count, err := s.strategyRepo.CountActive(ctx, userID)
		if err != nil {
			return nil, err
		}
		item.IsActive = count == 0
	}
	return item, nil
}

// GetActive 获取用户当前激活的策略，没有时回退到系统默认策略
func (s *StrategyService) GetActive(ctx context.Context, userID string) (*StrategyItem, error) {
	m, err := s.strategyRepo.FindActive(ctx, userID)
	if err == nil {
		return toItem(m)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return s.Get(ctx, userID, DefaultStrategyID)
}

// DefaultConfig 指定语言的默认配置
func (s *StrategyService) DefaultConfig(lang string) strategy.Config {
	if lang == "" {
		return strategy.DefaultConfig(s.defaultLang)
	}
	return strategy.DefaultConfig(strategy.ParseLanguage(lang))
}

// ResolveConfig 解析请求中的配置：合并默认值、规范化并校验
func (s *StrategyService) ResolveConfig(raw json.RawMessage, fallback strategy.Config) (strategy.Config, error) {
	cfg := fallback
	if len(raw) > 0 && string(raw) != "null" {
		parsed, err := strategy.Load(raw)
		if err != nil {
			return strategy.Config{}, fmt.Errorf("%w: %v", xe.ErrInvalidConfig, err)
		}
		cfg = parsed
	}
	cfg = strategy.Canonicalize(cfg)
	if err := strategy.Validate(cfg); err != nil {
		return strategy.Config{}, fmt.Errorf("%w: %w", xe.ErrInvalidConfig, err)
	}
	return cfg, nil
}

// Create 创建策略
func (s *StrategyService) Create(ctx context.Context, userID string, req StrategyRequest, lang string) (*StrategyItem, error) {
	cfg, err := s.ResolveConfig(req.Config, s.DefaultConfig(lang))
	if err != nil {
		return nil, err
	}

	item := &models.Strategy{
		ID:            ulid.Make().String(),
		UserID:        userID,
		Name:          req.Name,
		Description:   req.Description,
		IsPublic:      req.IsPublic,
		ConfigVisible: req.ConfigVisible,
		Version:       1,
	}
	if err := item.SetConfig(cfg); err != nil {
		return nil, err
	}
	if err := s.strategyRepo.Create(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Info("strategy created",
		zap.String("user_id", userID),
		zap.String("strategy_id", item.ID),
		zap.String("name", item.Name))
	return s.Get(ctx, userID, item.ID)
}

// ownedWritable 查找用户可写的策略，默认策略只读
func (s *StrategyService) ownedWritable(ctx context.Context, userID, id string) (*models.Strategy, error) {
	m, err := s.strategyRepo.FindVisibleById(ctx, userID, id)
	if err != nil {
		return nil, notFound(err)
	}
	if m.IsDefault {
		return nil, xe.ErrDefaultStrategyReadOnly
	}
	return m, nil
}

// Update 整体更新策略，基准版本过期时返回 ErrConcurrentModification
func (s *StrategyService) Update(ctx context.Context, userID, id string, req StrategyRequest) (*StrategyItem, error) {
	m, err := s.ownedWritable(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	current, err := m.ParseConfig()
	if err != nil {
		return nil, err
	}
	cfg, err := s.ResolveConfig(req.Config, current)
	if err != nil {
		return nil, err
	}

	baseVersion := req.Version
	if baseVersion == 0 {
		baseVersion = m.Version
	}

	m.Name = req.Name
	m.Description = req.Description
	m.IsPublic = req.IsPublic
	m.ConfigVisible = req.ConfigVisible
	if err := m.SetConfig(cfg); err != nil {
		return nil, err
	}

	rows, err := s.strategyRepo.UpdateWithVersion(ctx, m, baseVersion)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		if _, err := s.strategyRepo.FindVisibleById(ctx, userID, id); err != nil {
			return nil, notFound(err)
		}
		s.logger.Warn("strategy update rejected: stale version",
			zap.String("strategy_id", id),
			zap.Int("base_version", baseVersion),
			zap.Int("current_version", m.Version))
		return nil, xe.ErrConcurrentModification
	}
	return s.Get(ctx, userID, id)
}

// Delete 删除策略
func (s *StrategyService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.ownedWritable(ctx, userID, id); err != nil {
		return err
	}
	rows, err := s.strategyRepo.DeleteByUser(ctx, userID, id)
	if err != nil {
		return err
	}
	if rows == 0 {
		return xe.ErrStrategyNotFound
	}
	s.logger.Info("strategy deleted", zap.String("user_id", userID), zap.String("strategy_id", id))
	return nil
}

// Duplicate 复制策略，副本未激活；name 为空时使用 原名称+副本后缀
func (s *StrategyService) Duplicate(ctx context.Context, userID, id, name, lang string) (*StrategyItem, error) {
	src, err := s.strategyRepo.FindVisibleById(ctx, userID, id)
	if err != nil {
		return nil, notFound(err)
	}
	cfg, err := src.ParseConfig()
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = src.Name + i18n.T(lang, i18n.KeyCopySuffix)
	}

	item := &models.Strategy{
		ID:          ulid.Make().String(),
		UserID:      userID,
		Name:        name,
		Description: src.Description,
		Version:     1,
	}
	if err := item.SetConfig(cfg.Clone()); err != nil {
		return nil, err
	}
	if err := s.strategyRepo.Create(ctx, item); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, item.ID)
}

// Activate 激活策略，同一用户同时只有一个激活的策略。
// 激活系统默认策略即取消用户自己所有策略的激活状态。
func (s *StrategyService) Activate(ctx context.Context, userID, id string) (*StrategyItem, error) {
	m, err := s.strategyRepo.FindVisibleById(ctx, userID, id)
	if err != nil {
		return nil, notFound(err)
	}

	err = s.Transaction(ctx, func(ctx context.Context) error {
		if err := s.strategyRepo.DeactivateAll(ctx, userID); err != nil {
			return err
		}
		if m.IsDefault {
			return nil
		}
		rows, err := s.strategyRepo.ActivateById(ctx, userID, id)
		if err != nil {
			return err
		}
		if rows == 0 {
			return xe.ErrStrategyNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("strategy activated", zap.String("user_id", userID), zap.String("strategy_id", id))
	s.notifyActivated(m)
	return s.Get(ctx, userID, id)
}

func (s *StrategyService) notifyActivated(m *models.Strategy) {
	if s.tg == nil || s.chatID == "" {
		return
	}
	cfg, err := m.ParseConfig()
	if err != nil {
		return
	}
	msg := i18n.T(string(cfg.Language), i18n.KeyActivated, telegram.EscapeMarkdown(m.Name))
	go func() {
		if err := s.tg.Notify(s.chatID, msg); err != nil {
			s.logger.Warn("failed to send activation notice", zap.Error(err))
		}
	}()
}

// Export 导出策略
func (s *StrategyService) Export(ctx context.Context, userID, id string) (strategy.ExportDocument, string, error) {
	item, err := s.Get(ctx, userID, id)
	if err != nil {
		return strategy.ExportDocument{}, "", err
	}
	now := s.now()
	doc := strategy.NewExportDocument(item.Name, item.Description, item.Config, now)
	return doc, strategy.ExportFilename(item.Name, now), nil
}

// Import 以导入文件创建新策略，名称追加本地化的导入后缀，不会覆盖已有策略
func (s *StrategyService) Import(ctx context.Context, userID string, data []byte, lang string) (*StrategyItem, error) {
	doc, err := strategy.ParseImport(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xe.ErrInvalidImport, err)
	}
	cfgData, err := json.Marshal(doc.Config)
	if err != nil {
		return nil, err
	}
	item, err := s.Create(ctx, userID, StrategyRequest{
		Name:        doc.Name + i18n.T(lang, i18n.KeyImportedSuffix),
		Description: doc.Description,
		Config:      cfgData,
	}, lang)
	if err != nil {
		return nil, err
	}
	s.logger.Info("strategy imported",
		zap.String("user_id", userID),
		zap.String("strategy_id", item.ID),
		zap.String("exported_version", doc.Version))
	return item, nil
}
