package handler

import (
	"net/http"

	"github.com/dushixiang/prism-studio/internal/service"
	"github.com/dushixiang/prism-studio/pkg/nostd"
	"github.com/go-orz/orz"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// MarketHandler 提示词模板、可交易币种与币池状态
type MarketHandler struct {
	logger        *zap.Logger
	promptService *service.PromptService
	marketService *service.MarketService
	coinPool      *service.CoinPoolService
}

func NewMarketHandler(
	logger *zap.Logger,
	promptService *service.PromptService,
	marketService *service.MarketService,
	coinPool *service.CoinPoolService,
) *MarketHandler {
	return &MarketHandler{
		logger:        logger,
		promptService: promptService,
		marketService: marketService,
		coinPool:      coinPool,
	}
}

// ListTemplates GET /api/prompt-templates
func (h *MarketHandler) ListTemplates(c echo.Context) error {
	return c.JSON(http.StatusOK, orz.Map{
		"templates": h.promptService.ListTemplates(nostd.Locale(c)),
	})
}

// GetTemplate GET /api/prompt-templates/:name
func (h *MarketHandler) GetTemplate(c echo.Context) error {
	tpl, err := h.promptService.GetTemplate(c.Param("name"), nostd.Locale(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tpl)
}

// Symbols 交易所可交易的 USDT 永续合约
// GET /api/market/symbols
func (h *MarketHandler) Symbols(c echo.Context) error {
	if !h.marketService.Enabled() {
		return c.JSON(http.StatusOK, orz.Map{
			"enabled": false,
			"symbols": []string{},
		})
	}
	symbols, err := h.marketService.ListTradableSymbols(c.Request().Context())
	if err != nil {
		h.logger.Error("failed to list symbols", zap.Error(err))
		return err
	}
	return c.JSON(http.StatusOK, orz.Map{
		"enabled": true,
		"symbols": symbols,
	})
}

// CoinPoolStatus GET /api/market/coin-pool
func (h *MarketHandler) CoinPoolStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.coinPool.Status())
}

// RegisterRoutes 公开接口
func (h *MarketHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/prompt-templates", h.ListTemplates)
	g.GET("/prompt-templates/:name", h.GetTemplate)
}

// RegisterProtectedRoutes 需要认证的接口
func (h *MarketHandler) RegisterProtectedRoutes(g *echo.Group) {
	g.GET("/market/symbols", h.Symbols)
	g.GET("/market/coin-pool", h.CoinPoolStatus)
}
