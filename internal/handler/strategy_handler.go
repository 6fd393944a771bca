package handler

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dushixiang/prism-studio/internal/service"
	"github.com/dushixiang/prism-studio/internal/xe"
	"github.com/dushixiang/prism-studio/pkg/nostd"
	"github.com/dushixiang/prism-studio/pkg/strategy"
	"github.com/go-orz/orz"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

const maxImportSize = 1 << 20

// StrategyHandler 策略工作室接口
type StrategyHandler struct {
	logger          *zap.Logger
	strategyService *service.StrategyService
	promptService   *service.PromptService
	testRunService  *service.TestRunService
}

// NewStrategyHandler 创建策略处理器
func NewStrategyHandler(
	logger *zap.Logger,
	strategyService *service.StrategyService,
	promptService *service.PromptService,
	testRunService *service.TestRunService,
) *StrategyHandler {
	return &StrategyHandler{
		logger:          logger,
		strategyService: strategyService,
		promptService:   promptService,
		testRunService:  testRunService,
	}
}

// List 策略列表
// GET /api/strategies
func (h *StrategyHandler) List(c echo.Context) error {
	items, err := h.strategyService.List(c.Request().Context(), currentUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orz.Map{
		"strategies": items,
	})
}

// Active 当前激活的策略
// GET /api/strategies/active
func (h *StrategyHandler) Active(c echo.Context) error {
	item, err := h.strategyService.GetActive(c.Request().Context(), currentUserID(c))
	if err != nil {
		return err
	}
	setETag(c, item.Version)
	return c.JSON(http.StatusOK, item)
}

// DefaultConfig 指定语言的默认配置
// GET /api/strategies/default-config?lang=zh
func (h *StrategyHandler) DefaultConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, h.strategyService.DefaultConfig(c.QueryParam("lang")))
}

// Get 单个策略
// GET /api/strategies/:id
func (h *StrategyHandler) Get(c echo.Context) error {
	item, err := h.strategyService.Get(c.Request().Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		return err
	}
	setETag(c, item.Version)
	return c.JSON(http.StatusOK, item)
}

// Create 创建策略
// POST /api/strategies
func (h *StrategyHandler) Create(c echo.Context) error {
	var req service.StrategyRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	item, err := h.strategyService.Create(c.Request().Context(), currentUserID(c), req, nostd.Locale(c))
	if err != nil {
		return err
	}
	setETag(c, item.Version)
	return c.JSON(http.StatusOK, item)
}

// Update 整体更新策略，基准版本取 body.version 或 If-Match
// PUT /api/strategies/:id
func (h *StrategyHandler) Update(c echo.Context) error {
	var req service.StrategyRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if req.Version == 0 {
		req.Version = ifMatchVersion(c)
	}
	item, err := h.strategyService.Update(c.Request().Context(), currentUserID(c), c.Param("id"), req)
	if err != nil {
		return err
	}
	setETag(c, item.Version)
	return c.JSON(http.StatusOK, item)
}

// Delete 删除策略
// DELETE /api/strategies/:id
func (h *StrategyHandler) Delete(c echo.Context) error {
	if err := h.strategyService.Delete(c.Request().Context(), currentUserID(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Activate 激活策略
// POST /api/strategies/:id/activate
func (h *StrategyHandler) Activate(c echo.Context) error {
	item, err := h.strategyService.Activate(c.Request().Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

// Duplicate 复制策略
// POST /api/strategies/:id/duplicate
func (h *StrategyHandler) Duplicate(c echo.Context) error {
	var req struct {
		Name string `json:"name" validate:"max=100"`
	}
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	item, err := h.strategyService.Duplicate(c.Request().Context(), currentUserID(c), c.Param("id"), strings.TrimSpace(req.Name), nostd.Locale(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

// Export 下载导出文件
// GET /api/strategies/:id/export
func (h *StrategyHandler) Export(c echo.Context) error {
	doc, filename, err := h.strategyService.Export(c.Request().Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := strategy.WriteExport(&buf, doc); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSONCharsetUTF8, buf.Bytes())
}

// Import 以导出文件创建新策略，支持 multipart 的 file 字段或直接提交 JSON
// POST /api/strategies/import
func (h *StrategyHandler) Import(c echo.Context) error {
	data, err := readImportBody(c)
	if err != nil {
		return err
	}
	item, err := h.strategyService.Import(c.Request().Context(), currentUserID(c), data, nostd.Locale(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

func readImportBody(c echo.Context) ([]byte, error) {
	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, xe.ErrInvalidImport
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(io.LimitReader(f, maxImportSize))
	}
	return io.ReadAll(io.LimitReader(c.Request().Body, maxImportSize))
}

// PreviewPrompt 根据请求中的配置生成提示词
// POST /api/strategies/preview-prompt
func (h *StrategyHandler) PreviewPrompt(c echo.Context) error {
	var req service.PreviewRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	resp, err := h.promptService.Preview(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// TestRun 用 AI 模型跑一次决策
// POST /api/strategies/test-run
func (h *StrategyHandler) TestRun(c echo.Context) error {
	var req service.TestRunRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	resp, err := h.testRunService.Run(c.Request().Context(), currentUserID(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// TestRunLogs 最近的测试运行记录
// GET /api/strategies/test-runs?limit=20
func (h *StrategyHandler) TestRunLogs(c echo.Context) error {
	logs, err := h.testRunService.RecentLogs(c.Request().Context(), currentUserID(c), cast.ToInt(c.QueryParam("limit")))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orz.Map{
		"items": logs,
	})
}

// RegisterRoutes 注册路由
func (h *StrategyHandler) RegisterRoutes(g *echo.Group) {
	s := g.Group("/strategies")
	s.GET("", h.List)
	s.POST("", h.Create)
	s.GET("/active", h.Active)
	s.GET("/default-config", h.DefaultConfig)
	s.POST("/preview-prompt", h.PreviewPrompt)
	s.POST("/test-run", h.TestRun)
	s.GET("/test-runs", h.TestRunLogs)
	s.POST("/import", h.Import)
	s.GET("/:id", h.Get)
	s.PUT("/:id", h.Update)
	s.DELETE("/:id", h.Delete)
	s.POST("/:id/activate", h.Activate)
	s.POST("/:id/duplicate", h.Duplicate)
	s.GET("/:id/export", h.Export)
}
