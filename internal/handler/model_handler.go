package handler

import (
	"net/http"

	"github.com/dushixiang/prism-studio/internal/service"
	"github.com/go-orz/orz"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// ModelHandler AI 模型配置接口
type ModelHandler struct {
	logger         *zap.Logger
	aiModelService *service.AIModelService
}

// NewModelHandler 创建模型处理器
func NewModelHandler(logger *zap.Logger, aiModelService *service.AIModelService) *ModelHandler {
	return &ModelHandler{
		logger:         logger,
		aiModelService: aiModelService,
	}
}

// List 模型列表，enabled=true 时只返回已启用的
// GET /api/models
func (h *ModelHandler) List(c echo.Context) error {
	items, err := h.aiModelService.List(c.Request().Context(), currentUserID(c), cast.ToBool(c.QueryParam("enabled")))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orz.Map{
		"models": items,
	})
}

// Update 批量新增或更新
// PUT /api/models
func (h *ModelHandler) Update(c echo.Context) error {
	var req service.UpdateModelsRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	items, err := h.aiModelService.Update(c.Request().Context(), currentUserID(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orz.Map{
		"models": items,
	})
}

// Delete 删除模型
// DELETE /api/models/:id
func (h *ModelHandler) Delete(c echo.Context) error {
	if err := h.aiModelService.Delete(c.Request().Context(), currentUserID(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ModelHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/models", h.List)
	g.PUT("/models", h.Update)
	g.DELETE("/models/:id", h.Delete)
}
