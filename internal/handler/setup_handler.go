package handler

import (
	"net/http"

	"github.com/dushixiang/prism-studio/internal/service"
	"github.com/go-orz/orz"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// SetupHandler 首次设置处理器
type SetupHandler struct {
	logger      *zap.Logger
	authService *service.AuthService
}

// NewSetupHandler 创建设置处理器
func NewSetupHandler(logger *zap.Logger, authService *service.AuthService) *SetupHandler {
	return &SetupHandler{
		logger:      logger,
		authService: authService,
	}
}

// CheckSetupStatus 检查是否需要初始化设置
// GET /api/setup/status
func (h *SetupHandler) CheckSetupStatus(c echo.Context) error {
	needsSetup, err := h.authService.NeedsSetup(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orz.Map{
		"needs_setup": needsSetup,
	})
}

// InitialSetup 创建第一个管理员并直接登录
// POST /api/setup/init
func (h *SetupHandler) InitialSetup(c echo.Context) error {
	var req struct {
		Username string `json:"username" validate:"required,max=50"`
		Password string `json:"password" validate:"required,min=5"`
		Nickname string `json:"nickname" validate:"max=100"`
	}
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	nickname := req.Nickname
	if nickname == "" {
		nickname = req.Username
	}

	resp, err := h.authService.Setup(c.Request().Context(), req.Username, req.Password, nickname)
	if err != nil {
		return err
	}

	h.logger.Info("initial admin user created",
		zap.String("username", req.Username),
		zap.String("ip", c.RealIP()))
	return c.JSON(http.StatusOK, resp)
}

// RegisterRoutes 注册路由
func (h *SetupHandler) RegisterRoutes(g *echo.Group) {
	setup := g.Group("/setup")
	setup.GET("/status", h.CheckSetupStatus)
	setup.POST("/init", h.InitialSetup)
}
