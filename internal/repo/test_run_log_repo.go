package repo

import (
	"context"

	"github.com/dushixiang/prism-studio/internal/models"
	"github.com/go-orz/orz"
	"gorm.io/gorm"
)

func NewTestRunLogRepo(db *gorm.DB) *TestRunLogRepo {
	return &TestRunLogRepo{
		Repository: orz.NewRepository[models.TestRunLog, string](db),
	}
}

type TestRunLogRepo struct {
	orz.Repository[models.TestRunLog, string]
}

// FindRecentByUser 获取用户最近的测试记录
func (r TestRunLogRepo) FindRecentByUser(ctx context.Context, userID string, limit int) ([]models.TestRunLog, error) {
	var logs []models.TestRunLog
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("user_id = ?", userID).
		Order("executed_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
