//go:build wireinject
// +build wireinject

package internal

import (
	"github.com/google/wire"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dushixiang/prism-studio/internal/config"
	"github.com/dushixiang/prism-studio/internal/handler"
	"github.com/dushixiang/prism-studio/internal/service"
)

var (
	handlerSet = wire.NewSet(
		handler.NewAuthHandler,
		handler.NewSetupHandler,
		handler.NewStrategyHandler,
		handler.NewModelHandler,
		handler.NewMarketHandler,
	)

	studioSet = wire.NewSet(
		provideMarketData,
		provideValidator,
		service.NewIndicatorService,
		service.NewMarketService,
		service.NewCoinPoolService,
		service.NewPromptService,
		service.NewProviderFactory,
		service.NewAIModelService,
		service.NewTestRunService,
		service.NewStrategyService,
		service.NewAuthService,
	)
)

// InitializeApp 初始化应用
func InitializeApp(logger *zap.Logger, db *gorm.DB, conf *config.Config) (*AppComponents, error) {
	wire.Build(
		handlerSet,
		studioSet,
		provideTelegram,
		wire.Struct(new(AppComponents), "*"),
	)
	return nil, nil
}
