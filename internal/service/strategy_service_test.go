package service

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dushixiang/prism-studio/internal/config"
	"github.com/dushixiang/prism-studio/internal/models"
	"github.com/dushixiang/prism-studio/internal/xe"
	"github.com/dushixiang/prism-studio/pkg/strategy"
	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "studio.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Strategy{}, &models.AIModel{}, &models.User{}, &models.TestRunLog{}))
	return db
}

func newTestStrategyService(t *testing.T) (*StrategyService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	conf := &config.Config{Studio: config.StudioConf{DefaultLanguage: "en"}}
	s := NewStrategyService(zap.NewNop(), db, conf, nil)
	require.NoError(t, s.Initialize(context.Background()))
	return s, db
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestStrategyInitializeSeedsDefaultOnce(t *testing.T) {
	s, _ := newTestStrategyService(t)
	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))

	items, err := s.List(ctx, "user-a")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].IsDefault)
	assert.Equal(t, DefaultStrategyID, items[0].ID)
	assert.Equal(t, "Default Strategy", items[0].Name)
}

func TestStrategyCreateUsesLocaleDefaults(t *testing.T) {
	s, _ := newTestStrategyService(t)
	ctx := context.Background()

	item, err := s.Create(ctx, "user-a", StrategyRequest{Name: "Alpha"}, "zh")
	require.NoError(t, err)
	assert.Equal(t, strategy.Materialize(strategy.DefaultConfig(strategy.LanguageZH)), item.Config)
	assert.Equal(t, 1, item.Version)
	assert.False(t, item.IsActive)
	assert.Len(t, item.ID, 26)
}

func TestStrategyCreateCanonicalizesAndValidates(t *testing.T) {
	s, _ := newTestStrategyService(t)
	ctx := context.Background()

	cfg := strategy.DefaultConfig(strategy.LanguageEN)
	cfg.CoinSource.StaticCoins = []string{"btc", "tsla"}
	cfg.RiskControl.TrailingStop.TightenBands = []strategy.TightenBand{{ProfitPct: 30, TrailPct: 1}, {ProfitPct: 10, TrailPct: 2}}
	item, err := s.Create(ctx, "user-a", StrategyRequest{Name: "A", Config: mustJSON(t, cfg)}, "en")
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "xyz:TSLA"}, item.Config.CoinSource.StaticCoins)
	assert.Equal(t, 10.0, item.Config.RiskControl.TrailingStop.TightenBands[0].ProfitPct)

	cfg.RiskControl.MaxMarginUsage = 2
	_, err = s.Create(ctx, "user-a", StrategyRequest{Name: "B", Config: mustJSON(t, cfg)}, "en")
	require.Error(t, err)
	assert.ErrorIs(t, err, xe.ErrInvalidConfig)
	var ves validator.ValidationErrors
	assert.ErrorAs(t, err, &ves)
}

func TestStrategyUpdateOptimisticConcurrency(t *testing.T) {
	s, _ := newTestStrategyService(t)
	ctx := context.Background()

	item, err := s.Create(ctx, "user-a", StrategyRequest{Name: "Alpha"}, "en")
	require.NoError(t, err)

	cfg := item.Config
	cfg.CustomPrompt = "first"
	updated, err := s.Update(ctx, "user-a", item.ID, StrategyRequest{Name: "Alpha", Config: mustJSON(t, cfg), Version: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "first", updated.Config.CustomPrompt)

	cfg.CustomPrompt = "stale"
	_, err = s.Update(ctx, "user-a", item.ID, StrategyRequest{Name: "Alpha", Config: mustJSON(t, cfg), Version: 1})
	assert.ErrorIs(t, err, xe.ErrConcurrentModification)

	got, err := s.Get(ctx, "user-a", item.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Config.CustomPrompt)

	// version 0 skips the check
	_, err = s.Update(ctx, "user-a", item.ID, StrategyRequest{Name: "Renamed"})
	require.NoError(t, err)
	got, err = s.Get(ctx, "user-a", item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "first", got.Config.CustomPrompt)
	assert.Equal(t, 3, got.Version)
}

func TestStrategyDefaultIsReadOnly(t *testing.T) {
	s, _ := newTestStrategyService(t)
	ctx := context.Background()

	_, err := s.Update(ctx, "user-a", DefaultStrategyID, StrategyRequest{Name: "x"})
	assert.ErrorIs(t, err, xe.ErrDefaultStrategyReadOnly)
	assert.ErrorIs(t, s.Delete(ctx, "user-a", DefaultStrategyID), xe.ErrDefaultStrategyReadOnly)

	dup, err := s.Duplicate(ctx, "user-a", DefaultStrategyID, "", "en")
	require.NoError(t, err)
	assert.Equal(t, "Default Strategy (Copy)", dup.Name)
	assert.False(t, dup.IsDefault)
	assert.False(t, dup.IsActive)
}

func TestStrategyOwnership(t *testing.T) {
	s, _ := newTestStrategyService(t)
	ctx := context.Background()

	item, err := s.Create(ctx, "user-a", StrategyRequest{Name: "Mine"}, "en")
	require.NoError(t, err)

	_, err = s.Get(ctx, "user-b", item.ID)
	assert.ErrorIs(t, err, xe.ErrStrategyNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "user-b", item.ID), xe.ErrStrategyNotFound)

	items, err := s.List(ctx, "user-b")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestStrategyActivateIsExclusive(t *testing.T) {
	s, _ := newTestStrategyService(t)
	ctx := context.Background()

	a, err := s.Create(ctx, "user-a", StrategyRequest{Name: "A"}, "en")
	require.NoError(t, err)
	b, err := s.Create(ctx, "user-a", StrategyRequest{Name: "B"}, "en")
	require.NoError(t, err)
	other, err := s.Create(ctx, "user-b", StrategyRequest{Name: "Other"}, "en")
	require.NoError(t, err)

	_, err = s.Activate(ctx, "user-b", other.ID)
	require.NoError(t, err)

	for _, id := range []string{a.ID, b.ID, a.ID} {
		_, err := s.Activate(ctx, "user-a", id)
		require.NoError(t, err)

		items, err := s.List(ctx, "user-a")
		require.NoError(t, err)
		active := 0
		for _, item := range items {
			if item.IsActive {
				active++
				assert.Equal(t, id, item.ID)
			}
		}
		assert.Equal(t, 1, active)
	}

	got, err := s.GetActive(ctx, "user-b")
	require.NoError(t, err)
	assert.Equal(t, other.ID, got.ID)
}

func TestStrategyActiveFallsBackToDefault(t *testing.T) {
	s, _ := newTestStrategyService(t)
	ctx := context.Background()

	got, err := s.GetActive(ctx, "user-a")
	require.NoError(t, err)
	assert.Equal(t, DefaultStrategyID, got.ID)
	assert.True(t, got.IsActive)

	items, err := s.List(ctx, "user-a")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].IsActive)

	a, err := s.Create(ctx, "user-a", StrategyRequest{Name: "A"}, "en")
	require.NoError(t, err)
	_, err = s.Activate(ctx, "user-a", a.ID)
	require.NoError(t, err)

	got, err = s.GetActive(ctx, "user-a")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	def, err := s.Get(ctx, "user-a", DefaultStrategyID)
	require.NoError(t, err)
	assert.False(t, def.IsActive)

	// 其他用户不受影响
	got, err = s.GetActive(ctx, "user-b")
	require.NoError(t, err)
	assert.Equal(t, DefaultStrategyID, got.ID)

	// 激活默认策略等于取消自己策略的激活
	def, err = s.Activate(ctx, "user-a", DefaultStrategyID)
	require.NoError(t, err)
	assert.True(t, def.IsActive)

	items, err = s.List(ctx, "user-a")
	require.NoError(t, err)
	active := 0
	for _, item := range items {
		if item.IsActive {
			active++
			assert.Equal(t, DefaultStrategyID, item.ID)
		}
	}
	assert.Equal(t, 1, active)

	got, err = s.GetActive(ctx, "user-a")
	require.NoError(t, err)
	assert.Equal(t, DefaultStrategyID, got.ID)
}

func TestStrategyUpdateDeletedConcurrently(t *testing.T) {
	s, db := newTestStrategyService(t)
	ctx := context.Background()

	item, err := s.Create(ctx, "user-a", StrategyRequest{Name: "Gone"}, "en")
	require.NoError(t, err)

	// 在 UPDATE 执行前删除该行
	var once sync.Once
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("test:delete_row", func(tx *gorm.DB) {
		once.Do(func() {
			require.NoError(t, db.Exec("DELETE FROM strategy WHERE id = ?", item.ID).Error)
		})
	}))

	_, err = s.Update(ctx, "user-a", item.ID, StrategyRequest{Name: "Gone", Version: 1})
	assert.ErrorIs(t, err, xe.ErrStrategyNotFound)
}

func TestStrategyDuplicateDeepCopy(t *testing.T) {
	s, _ := newTestStrategyService(t)
	ctx := context.Background()

	cfg := strategy.DefaultConfig(strategy.LanguageEN)
	cfg.CoinSource.StaticCoins = []string{"BTCUSDT"}
	src, err := s.Create(ctx, "user-a", StrategyRequest{Name: "Src", Config: mustJSON(t, cfg)}, "en")
	require.NoError(t, err)
	_, err = s.Activate(ctx, "user-a", src.ID)
	require.NoError(t, err)

	dup, err := s.Duplicate(ctx, "user-a", src.ID, "Twin", "en")
	require.NoError(t, err)
	assert.NotEqual(t, src.ID, dup.ID)
	assert.Equal(t, "Twin", dup.Name)
	assert.False(t, dup.IsActive)
	assert.Equal(t, src.Config, dup.Config)

	next := dup.Config
	next.CoinSource.StaticCoins = []string{"ETHUSDT"}
	_, err = s.Update(ctx, "user-a", dup.ID, StrategyRequest{Name: "Twin", Config: mustJSON(t, next)})
	require.NoError(t, err)

	again, err := s.Get(ctx, "user-a", src.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT"}, again.Config.CoinSource.StaticCoins)
}

func TestStrategyDelete(t *testing.T) {
	s, _ := newTestStrategyService(t)
	ctx := context.Background()

	item, err := s.Create(ctx, "user-a", StrategyRequest{Name: "Gone"}, "en")
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "user-a", item.ID))

	_, err = s.Get(ctx, "user-a", item.ID)
	assert.ErrorIs(t, err, xe.ErrStrategyNotFound)
}

func TestStrategyExportImportRoundTrip(t *testing.T) {
	s, _ := newTestStrategyService(t)
	ctx := context.Background()

	cfg := strategy.DefaultConfig(strategy.LanguageES)
	cfg.CustomPrompt = "solo BTC"
	cfg.RiskControl.TrailingStop.Enabled = true
	src, err := s.Create(ctx, "user-a", StrategyRequest{Name: "Trend", Description: "d", Config: mustJSON(t, cfg)}, "es")
	require.NoError(t, err)

	doc, filename, err := s.Export(ctx, "user-a", src.ID)
	require.NoError(t, err)
	assert.Regexp(t, `^strategy_trend_\d{4}-\d{2}-\d{2}\.json$`, filename)
	assert.Equal(t, strategy.ExportFormatVersion, doc.Version)

	imported, err := s.Import(ctx, "user-a", mustJSON(t, doc), "es")
	require.NoError(t, err)
	assert.Equal(t, "Trend (Importado)", imported.Name)
	assert.Equal(t, "d", imported.Description)
	assert.Equal(t, src.Config, imported.Config)
	assert.NotEqual(t, src.ID, imported.ID)

	_, err = s.Import(ctx, "user-a", []byte(`{"config":{}}`), "en")
	assert.ErrorIs(t, err, xe.ErrInvalidImport)
}
