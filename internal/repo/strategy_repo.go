package repo

import (
	"context"
	"time"

	"github.com/dushixiang/prism-studio/internal/models"
	"github.com/go-orz/orz"
	"gorm.io/gorm"
)

type StrategyRepo struct {
	orz.Repository[models.Strategy, string]
}

func NewStrategyRepo(db *gorm.DB) *StrategyRepo {
	return &StrategyRepo{
		Repository: orz.NewRepository[models.Strategy, string](db),
	}
}

// FindVisible 用户自己的策略加系统默认策略，默认策略排在最前
func (r *StrategyRepo) FindVisible(ctx context.Context, userID string) ([]models.Strategy, error) {
	var items []models.Strategy
	err := r.GetDB(ctx).WithContext(ctx).
		Where("user_id = ? OR is_default = ?", userID, true).
		Order("is_default DESC").
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

// FindVisibleById 查找用户可见的单个策略
func (r *StrategyRepo) FindVisibleById(ctx context.Context, userID, id string) (*models.Strategy, error) {
	var item models.Strategy
	err := r.GetDB(ctx).WithContext(ctx).
		Where("id = ?", id).
		Where("user_id = ? OR is_default = ?", userID, true).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FindActive 查找用户当前激活的策略
func (r *StrategyRepo) FindActive(ctx context.Context, userID string) (*models.Strategy, error) {
	var item models.Strategy
	err := r.GetDB(ctx).WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// CountDefault 统计系统默认策略数量
func (r *StrategyRepo) CountDefault(ctx context.Context) (int64, error) {
	var count int64
	err := r.GetDB(ctx).WithContext(ctx).
		Model(&models.Strategy{}).
		Where("is_default = ?", true).
		Count(&count).Error
	return count, err
}

// CountActive 统计用户激活的策略数量
func (r *StrategyRepo) CountActive(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.GetDB(ctx).WithContext(ctx).
		Model(&models.Strategy{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&count).Error
	return count, err
}

// DeactivateAll 将用户所有策略设为非激活状态
func (r *StrategyRepo) DeactivateAll(ctx context.Context, userID string) error {
	return r.GetDB(ctx).WithContext(ctx).
		Model(&models.Strategy{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Update("is_active", false).Error
}

// ActivateById 激活指定ID的策略
func (r *StrategyRepo) ActivateById(ctx context.Context, userID, id string) (int64, error) {
	tx := r.GetDB(ctx).WithContext(ctx).
		Model(&models.Strategy{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_active", true)
	return tx.RowsAffected, tx.Error
}

// UpdateWithVersion 比较并更新：仅当当前版本等于 baseVersion 时写入，成功后版本号加一。
// 返回受影响行数，0 表示版本冲突或记录不存在。
func (r *StrategyRepo) UpdateWithVersion(ctx context.Context, item *models.Strategy, baseVersion int) (int64, error) {
	tx := r.GetDB(ctx).WithContext(ctx).
		Model(&models.Strategy{}).
		Where("id = ? AND user_id = ? AND version = ?", item.ID, item.UserID, baseVersion).
		Updates(map[string]interface{}{
			"name":           item.Name,
			"description":    item.Description,
			"is_public":      item.IsPublic,
			"config_visible": item.ConfigVisible,
			"config":         item.Config,
			"version":        baseVersion + 1,
			"updated_at":     time.Now(),
		})
	return tx.RowsAffected, tx.Error
}

// DeleteByUser 删除用户自己的策略
func (r *StrategyRepo) DeleteByUser(ctx context.Context, userID, id string) (int64, error) {
	tx := r.GetDB(ctx).WithContext(ctx).
		Where("id = ? AND user_id = ? AND is_default = ?", id, userID, false).
		Delete(&models.Strategy{})
	return tx.RowsAffected, tx.Error
}
