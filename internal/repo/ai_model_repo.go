package repo

import (
	"context"

	"github.com/dushixiang/prism-studio/internal/models"
	"github.com/go-orz/orz"
	"gorm.io/gorm"
)

type AIModelRepo struct {
	orz.Repository[models.AIModel, string]
}

func NewAIModelRepo(db *gorm.DB) *AIModelRepo {
	return &AIModelRepo{
		Repository: orz.NewRepository[models.AIModel, string](db),
	}
}

// FindByUser 查询用户的模型，enabledOnly 为 true 时只返回已启用的
func (r *AIModelRepo) FindByUser(ctx context.Context, userID string, enabledOnly bool) ([]models.AIModel, error) {
	var items []models.AIModel
	db := r.GetDB(ctx).WithContext(ctx).Where("user_id = ?", userID)
	if enabledOnly {
		db = db.Where("enabled = ?", true)
	}
	err := db.Order("created_at ASC").Find(&items).Error
	return items, err
}

// FindByUserAndID 查询属于用户的模型
func (r *AIModelRepo) FindByUserAndID(ctx context.Context, userID, id string) (*models.AIModel, error) {
	var item models.AIModel
	err := r.GetDB(ctx).WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// SaveAll 整行保存，布尔零值也会写入
func (r *AIModelRepo) SaveAll(ctx context.Context, item *models.AIModel) error {
	return r.GetDB(ctx).WithContext(ctx).Save(item).Error
}
