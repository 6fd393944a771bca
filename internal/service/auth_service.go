package service

import (
	"context"
	"errors"
	"time"

	"github.com/dushixiang/prism-studio/internal/config"
	"github.com/dushixiang/prism-studio/internal/models"
	"github.com/dushixiang/prism-studio/internal/repo"
	"github.com/dushixiang/prism-studio/internal/xe"
	"github.com/dushixiang/prism-studio/pkg/nostd"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuthService 认证服务
type AuthService struct {
	logger        *zap.Logger
	userRepo      *repo.UserRepo
	jwtSecret     string
	jwtExpiration time.Duration
}

// NewAuthService 创建认证服务
func NewAuthService(logger *zap.Logger, db *gorm.DB, conf *config.Config) *AuthService {
	secret := conf.Auth.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
	}
	ttl := conf.Auth.TokenTTLHours
	if ttl <= 0 {
		ttl = 24
	}
	return &AuthService{
		logger:        logger,
		userRepo:      repo.NewUserRepo(db),
		jwtSecret:     secret,
		jwtExpiration: time.Duration(ttl) * time.Hour,
	}
}

// JWTClaims JWT载荷
type JWTClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserInfo  `json:"user"`
}

// UserInfo 用户信息
type UserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
}

func toUserInfo(user *models.User) UserInfo {
	return UserInfo{
		ID:       user.ID,
		Username: user.Username,
		Nickname: user.Nickname,
		Role:     user.Role,
	}
}

// Login 用户登录
func (s *AuthService) Login(ctx context.Context, req LoginRequest, ip string) (*LoginResponse, error) {
	user, err := s.userRepo.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("login failed: user not found",
				zap.String("username", req.Username),
				zap.String("ip", ip))
			return nil, xe.ErrIncorrectPassword
		}
		return nil, err
	}

	if !user.IsActive {
		s.logger.Warn("login failed: user not active",
			zap.String("username", req.Username),
			zap.String("ip", ip))
		return nil, xe.ErrUserDisabled
	}

	if err := nostd.BcryptMatch([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn("login failed: invalid password",
			zap.String("username", req.Username),
			zap.String("ip", ip))
		return nil, xe.ErrIncorrectPassword
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, ip); err != nil {
		s.logger.Error("failed to update last login", zap.Error(err))
	}

	token, expiresAt, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in",
		zap.String("username", user.Username),
		zap.String("ip", ip))

	return &LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      toUserInfo(user),
	}, nil
}

// IssueToken 签发JWT
func (s *AuthService) IssueToken(user *models.User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.jwtExpiration)
	claims := JWTClaims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "prism-studio",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateToken 验证JWT Token
func (s *AuthService) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, xe.ErrInvalidToken
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, xe.ErrInvalidToken
}

// CreateUser 创建用户
func (s *AuthService) CreateUser(ctx context.Context, username, password, nickname, role string) (*models.User, error) {
	_, err := s.userRepo.FindByUsername(ctx, username)
	if err == nil {
		return nil, xe.ErrAccountAlreadyUsed
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	passwordHash, err := nostd.BcryptEncode([]byte(password))
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           ulid.Make().String(),
		Username:     username,
		PasswordHash: string(passwordHash),
		Nickname:     nickname,
		Role:         role,
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user created", zap.String("username", username), zap.String("role", role))
	return user, nil
}

// ChangePassword 修改密码
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := nostd.BcryptMatch([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return xe.ErrIncorrectOldPassword
	}

	passwordHash, err := nostd.BcryptEncode([]byte(newPassword))
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, string(passwordHash)); err != nil {
		return err
	}

	s.logger.Info("password changed", zap.String("user_id", userID))
	return nil
}

// GetCurrentUser 获取当前用户信息
func (s *AuthService) GetCurrentUser(ctx context.Context, userID string) (*UserInfo, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	info := toUserInfo(user)
	return &info, nil
}

// NeedsSetup 是否还没有任何用户
func (s *AuthService) NeedsSetup(ctx context.Context) (bool, error) {
	count, err := s.userRepo.Count(ctx)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// Setup 创建第一个管理员账户，已有用户时拒绝
func (s *AuthService) Setup(ctx context.Context, username, password, nickname string) (*LoginResponse, error) {
	needs, err := s.NeedsSetup(ctx)
	if err != nil {
		return nil, err
	}
	if !needs {
		return nil, xe.ErrAlreadySetup
	}
	user, err := s.CreateUser(ctx, username, password, nickname, "admin")
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}
	return &LoginResponse{Token: token, ExpiresAt: expiresAt, User: toUserInfo(user)}, nil
}
