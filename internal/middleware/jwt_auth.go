package middleware

import (
	"strings"

	"github.com/dushixiang/prism-studio/internal/service"
	"github.com/dushixiang/prism-studio/internal/xe"
	"github.com/dushixiang/prism-studio/pkg/nostd"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// JWTAuthConfig JWT认证配置
type JWTAuthConfig struct {
	AuthService *service.AuthService
	Logger      *zap.Logger
}

// bearerToken 优先使用 Authorization: Bearer，其次是 X-Studio-Token 请求头/参数/Cookie
func bearerToken(c echo.Context) string {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return nostd.GetToken(c)
}

// JWTAuth JWT认证中间件
func JWTAuth(config JWTAuthConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString := bearerToken(c)
			if tokenString == "" {
				config.Logger.Warn("JWT token missing",
					zap.String("path", c.Request().URL.Path),
					zap.String("remote_ip", c.RealIP()))
				return xe.ErrInvalidToken
			}

			claims, err := config.AuthService.ValidateToken(tokenString)
			if err != nil {
				config.Logger.Warn("invalid JWT token",
					zap.String("path", c.Request().URL.Path),
					zap.String("remote_ip", c.RealIP()),
					zap.Error(err))
				return xe.ErrInvalidToken
			}

			c.Set("user_id", claims.UserID)
			c.Set("username", claims.Username)
			c.Set("role", claims.Role)

			config.Logger.Debug("JWT authenticated",
				zap.String("user_id", claims.UserID),
				zap.String("path", c.Request().URL.Path))

			return next(c)
		}
	}
}
