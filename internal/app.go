package internal

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/dushixiang/prism-studio/internal/config"
	"github.com/dushixiang/prism-studio/internal/handler"
	"github.com/dushixiang/prism-studio/internal/middleware"
	"github.com/dushixiang/prism-studio/internal/models"
	"github.com/dushixiang/prism-studio/internal/service"
	"github.com/dushixiang/prism-studio/internal/telegram"
	"github.com/dushixiang/prism-studio/pkg/nostd"
	"github.com/dushixiang/prism-studio/web"
	"github.com/go-orz/orz"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func Run(configPath string) error {
	app := NewStudioApp()

	framework, err := orz.NewFramework(
		orz.WithConfig(configPath),
		orz.WithLoggerFromConfig(),
		orz.WithDatabase(),
		orz.WithHTTP(),
		orz.WithApplication(app),
	)
	if err != nil {
		return err
	}

	return framework.Run()
}

func NewStudioApp() orz.Application {
	return &StudioApp{}
}

var _ orz.Application = (*StudioApp)(nil)

type AppComponents struct {
	AuthHandler     *handler.AuthHandler
	SetupHandler    *handler.SetupHandler
	StrategyHandler *handler.StrategyHandler
	ModelHandler    *handler.ModelHandler
	MarketHandler   *handler.MarketHandler

	AuthService     *service.AuthService
	StrategyService *service.StrategyService
	CoinPoolService *service.CoinPoolService

	Validator *nostd.CustomValidator
	Telegram  *telegram.Telegram
}

type StudioApp struct {
	components *AppComponents
	conf       *config.Config
}

// GetComponents 获取应用组件
func (r *StudioApp) GetComponents() *AppComponents {
	return r.components
}

// Migrate 建表
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{}, &models.Strategy{}, &models.AIModel{}, &models.TestRunLog{},
	)
}

func (r *StudioApp) Configure(app *orz.App) error {
	logger := app.Logger()
	e := app.GetEcho()
	db := app.GetDatabase()

	var conf config.Config
	err := app.GetConfig().App.Unmarshal(&conf)
	if err != nil {
		return fmt.Errorf("failed to unmarshal config: %v", err)
	}

	components, err := InitializeApp(logger, db, &conf)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %v", err)
	}
	r.components = components
	r.conf = &conf

	if err := Migrate(db); err != nil {
		logger.Fatal("database auto migrate failed", zap.Error(err))
	}

	if err := r.Init(logger); err != nil {
		logger.Fatal("app init failed", zap.Error(err))
	}

	e.HidePort = true
	e.HideBanner = true

	SetupEcho(e, logger, components)
	return nil
}

// SetupEcho 注册中间件、静态资源与接口路由
func SetupEcho(e *echo.Echo, logger *zap.Logger, components *AppComponents) {
	e.Use(echomw.Gzip())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		Skipper:       echomw.DefaultSkipper,
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		ExposeHeaders: []string{"ETag", echo.HeaderContentDisposition},
	}))
	e.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			sugar := logger.Sugar()
			sugar.Error(fmt.Sprintf("[PANIC RECOVER] %v %s\n", err, stack))
			return err
		},
	}))
	e.Use(WithErrorHandler(logger, components.Validator))
	e.Validator = components.Validator

	e.Use(echomw.StaticWithConfig(echomw.StaticConfig{
		Skipper: func(c echo.Context) bool {
			path := c.Request().RequestURI
			if strings.HasPrefix(path, "/api") {
				return true
			}
			return false
		},
		Root:       "",
		Index:      "index.html",
		HTML5:      true,
		Browse:     false,
		IgnoreBase: false,
		Filesystem: http.FS(web.Assets()),
	}))

	api := e.Group("/api")
	{
		components.AuthHandler.RegisterRoutes(api)
		components.SetupHandler.RegisterRoutes(api)
		components.MarketHandler.RegisterRoutes(api)
	}

	protected := api.Group("", middleware.JWTAuth(middleware.JWTAuthConfig{
		AuthService: components.AuthService,
		Logger:      logger,
	}))
	{
		components.AuthHandler.RegisterProtectedRoutes(protected)
		components.StrategyHandler.RegisterRoutes(protected)
		components.ModelHandler.RegisterRoutes(protected)
		components.MarketHandler.RegisterProtectedRoutes(protected)
	}
}

func (r *StudioApp) Init(logger *zap.Logger) error {
	logger.Info("=================================================")
	logger.Info("Prism Strategy Studio Starting...")
	logger.Info("=================================================")

	components := r.GetComponents()
	if components == nil {
		return fmt.Errorf("components not initialized")
	}

	if err := components.StrategyService.Initialize(context.Background()); err != nil {
		return fmt.Errorf("failed to seed default strategy: %w", err)
	}

	if err := components.CoinPoolService.Start(); err != nil {
		logger.Error("coin pool refresh not started", zap.Error(err))
	}

	if components.Telegram != nil {
		components.Telegram.Start()
		logger.Info("telegram notifications enabled")
	}
	return nil
}
