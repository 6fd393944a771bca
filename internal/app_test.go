package internal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dushixiang/prism-studio/internal/config"
	"github.com/dushixiang/prism-studio/pkg/strategy"
	"github.com/dushixiang/prism-studio/pkg/studio"
	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "studio.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	conf := &config.Config{
		Auth:   config.AuthConf{JWTSecret: "test-secret"},
		Studio: config.StudioConf{DefaultLanguage: "en"},
	}
	components, err := InitializeApp(zap.NewNop(), db, conf)
	require.NoError(t, err)

	app := &StudioApp{components: components, conf: conf}
	require.NoError(t, app.Init(zap.NewNop()))
	t.Cleanup(components.CoinPoolService.Stop)

	e := echo.New()
	SetupEcho(e, zap.NewNop(), components)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

// newLoggedInClient 完成首次设置并返回已登录的客户端
func newLoggedInClient(t *testing.T, srv *httptest.Server) *studio.Client {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/setup/init", "application/json",
		strings.NewReader(`{"username":"admin","password":"secret123"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	c := studio.NewClient(srv.URL)
	_, err = c.Login(context.Background(), "admin", "secret123")
	require.NoError(t, err)
	return c
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)

	_, err := studio.NewClient(srv.URL).ListStrategies(context.Background())
	var apiErr *studio.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	_, err = studio.NewClient(srv.URL, studio.WithToken("garbage")).ListStrategies(context.Background())
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestSetupOnlyOnce(t *testing.T) {
	srv := newTestServer(t)
	newLoggedInClient(t, srv)

	resp, err := http.Post(srv.URL+"/api/setup/init", "application/json",
		strings.NewReader(`{"username":"other","password":"secret123"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestStrategyLifecycle(t *testing.T) {
	srv := newTestServer(t)
	c := newLoggedInClient(t, srv)
	ctx := context.Background()

	items, err := c.ListStrategies(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].IsDefault)

	created, err := c.CreateStrategy(studio.WithLocale(ctx, "zh"), studio.CreateRequest{Name: "Alpha"})
	require.NoError(t, err)
	assert.Equal(t, 1, created.Version)
	assert.Equal(t, strategy.LanguageZH, created.Config.Language)

	cfg := created.Config
	cfg.CoinSource.StaticCoins = []string{"btc", "xyz:tsla", "BTCUSDT"}
	updated, err := c.UpdateStrategy(ctx, created.ID, studio.UpdateRequest{
		Name:    "Alpha",
		Config:  cfg,
		Version: created.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, []string{"BTCUSDT", "xyz:TSLA"}, updated.Config.CoinSource.StaticCoins)

	_, err = c.UpdateStrategy(ctx, created.ID, studio.UpdateRequest{
		Name:    "Alpha",
		Config:  cfg,
		Version: created.Version,
	})
	assert.ErrorIs(t, err, studio.ErrConcurrentModification)

	require.NoError(t, c.ActivateStrategy(ctx, created.ID))
	items, err = c.ListStrategies(ctx)
	require.NoError(t, err)
	active := 0
	for _, s := range items {
		if s.IsActive {
			active++
			assert.Equal(t, created.ID, s.ID)
		}
	}
	assert.Equal(t, 1, active)

	require.NoError(t, c.DeleteStrategy(ctx, created.ID))
	_, err = c.GetStrategy(ctx, created.ID)
	var apiErr *studio.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestDefaultStrategyReadOnly(t *testing.T) {
	srv := newTestServer(t)
	c := newLoggedInClient(t, srv)
	ctx := context.Background()

	items, err := c.ListStrategies(ctx)
	require.NoError(t, err)
	def := items[0]

	_, err = c.UpdateStrategy(ctx, def.ID, studio.UpdateRequest{Name: "mine", Config: def.Config, Version: def.Version})
	var apiErr *studio.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)

	dup, err := c.DuplicateStrategy(ctx, def.ID, "")
	require.NoError(t, err)
	assert.False(t, dup.IsDefault)
	assert.False(t, dup.IsActive)
	assert.Equal(t, def.Config.RiskControl, dup.Config.RiskControl)
}

func TestActiveStrategyFallsBackToDefault(t *testing.T) {
	srv := newTestServer(t)
	c := newLoggedInClient(t, srv)
	ctx := context.Background()

	active, err := c.GetActiveStrategy(ctx)
	require.NoError(t, err)
	assert.True(t, active.IsDefault)
	assert.True(t, active.IsActive)

	created, err := c.CreateStrategy(ctx, studio.CreateRequest{Name: "Alpha"})
	require.NoError(t, err)
	require.NoError(t, c.ActivateStrategy(ctx, created.ID))
	active, err = c.GetActiveStrategy(ctx)
	require.NoError(t, err)
	assert.Equal(t, created.ID, active.ID)

	require.NoError(t, c.ActivateStrategy(ctx, active.ID))
	require.NoError(t, c.ActivateStrategy(ctx, "00000000000000000000000000"))
	active, err = c.GetActiveStrategy(ctx)
	require.NoError(t, err)
	assert.True(t, active.IsDefault)
}

func TestValidationErrorFields(t *testing.T) {
	srv := newTestServer(t)
	c := newLoggedInClient(t, srv)

	cfg := strategy.DefaultConfig(strategy.LanguageEN)
	cfg.RiskControl.MaxPositions = 50
	_, err := c.CreateStrategy(studio.WithLocale(context.Background(), "en"), studio.CreateRequest{Name: "Bad", Config: &cfg})

	var apiErr *studio.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Fields, "risk_control.max_positions")
}

func TestPreviewAndExportImport(t *testing.T) {
	srv := newTestServer(t)
	c := newLoggedInClient(t, srv)
	ctx := context.Background()

	cfg := strategy.DefaultConfig(strategy.LanguageEN)
	cfg.CustomPrompt = "Never trade on weekends."
	preview, err := c.PreviewPrompt(ctx, studio.PreviewRequest{Config: cfg, AccountEquity: 1000, PromptVariant: "conservative"})
	require.NoError(t, err)
	assert.Contains(t, preview.SystemPrompt, "Never trade on weekends.")
	assert.Equal(t, "conservative", preview.PromptVariant)

	created, err := c.CreateStrategy(ctx, studio.CreateRequest{Name: "Beta", Config: &cfg})
	require.NoError(t, err)

	name, data, err := c.ExportStrategy(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "strategy_beta_"))

	imported, err := c.ImportStrategy(ctx, data)
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, imported.ID)
	assert.Equal(t, "Beta (Imported)", imported.Name)
	assert.Equal(t, created.Config, imported.Config)

	_, err = c.ImportStrategy(ctx, []byte(`{"description":"no name"}`))
	var apiErr *studio.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestControllerAgainstServer(t *testing.T) {
	srv := newTestServer(t)
	c := newLoggedInClient(t, srv)
	ctx := context.Background()

	ctrl := studio.NewController(c, "en")
	_, err := ctrl.Create(ctx, "Gamma", "")
	require.NoError(t, err)
	assert.Equal(t, studio.StateClean, ctrl.State())

	rc := ctrl.Config().RiskControl
	rc.MaxPositions = 6
	require.NoError(t, ctrl.SetRiskControl(rc))
	require.NoError(t, ctrl.Save(ctx))

	s, ok := ctrl.Selected()
	require.True(t, ok)
	assert.Equal(t, 6, s.Config.RiskControl.MaxPositions)
	assert.Equal(t, 2, s.Version)
}
