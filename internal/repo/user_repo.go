package repo

import (
	"context"
	"time"

	"github.com/dushixiang/prism-studio/internal/models"
	"github.com/go-orz/orz"
	"gorm.io/gorm"
)

// UserRepo 用户仓储
type UserRepo struct {
	orz.Repository[models.User, string]
}

// NewUserRepo 创建用户仓储
func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{
		Repository: orz.NewRepository[models.User, string](db),
	}
}

// FindByUsername 根据用户名查找用户
func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.GetDB(ctx).WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID 根据ID查找用户
func (r *UserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.GetDB(ctx).WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin 更新最后登录信息
func (r *UserRepo) UpdateLastLogin(ctx context.Context, id string, ip string) error {
	now := time.Now()
	return r.GetDB(ctx).WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_login_at": now,
			"last_login_ip": ip,
		}).Error
}

// UpdatePassword 更新密码
func (r *UserRepo) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	return r.GetDB(ctx).WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("password_hash", passwordHash).Error
}
