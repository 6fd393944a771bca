package strategy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	for _, lang := range Languages {
		cfg := DefaultConfig(lang)
		assert.Equal(t, lang, cfg.Language)
		assert.NoError(t, Validate(cfg), lang)
		assert.True(t, cfg.Indicators.EnableRawKlines)
		assert.Equal(t, DefaultPromptSections(lang), cfg.PromptSections)
	}
}

func TestDefaultPromptSectionsPerLanguage(t *testing.T) {
	en := DefaultPromptSections(LanguageEN)
	zh := DefaultPromptSections(LanguageZH)
	es := DefaultPromptSections(LanguageES)

	for _, section := range Sections {
		assert.NotEmpty(t, en.Get(section))
		assert.NotEqual(t, en.Get(section), zh.Get(section))
		assert.NotEqual(t, en.Get(section), es.Get(section))
	}
	assert.Equal(t, en, DefaultPromptSections("fr"))
}

func TestLoadOverlaysDefaults(t *testing.T) {
	cfg, err := Load([]byte(`{"language":"zh","risk_control":{"max_positions":5,"min_confidence":0}}`))
	require.NoError(t, err)

	assert.Equal(t, LanguageZH, cfg.Language)
	assert.Equal(t, 5, cfg.RiskControl.MaxPositions)
	// explicit zero survives
	assert.Equal(t, 0, cfg.RiskControl.MinConfidence)
	// absent keys keep defaults
	assert.Equal(t, 5, cfg.RiskControl.BTCETHMaxLeverage)
	assert.Equal(t, DefaultPromptSections(LanguageZH), cfg.PromptSections)
	assert.Equal(t, SourceAI500, cfg.CoinSource.SourceType)
}

func TestLoadForcesRawKlines(t *testing.T) {
	cfg, err := Load([]byte(`{"indicators":{"enable_raw_klines":false,"enable_ema":true}}`))
	require.NoError(t, err)
	assert.True(t, cfg.Indicators.EnableRawKlines)
	assert.True(t, cfg.Indicators.EnableEMA)
}

func TestLoadIntervalSync(t *testing.T) {
	cfg, err := Load([]byte(`{"risk_control":{"trailing_stop":{"check_interval_ms":1500,"check_interval_sec":9}}}`))
	require.NoError(t, err)
	assert.Equal(t, 1500, cfg.RiskControl.TrailingStop.CheckIntervalMs)
	assert.Equal(t, 2, cfg.RiskControl.TrailingStop.CheckIntervalSec)

	legacy, err := Load([]byte(`{"risk_control":{"trailing_stop":{"check_interval_sec":12}}}`))
	require.NoError(t, err)
	assert.Equal(t, 12000, legacy.RiskControl.TrailingStop.CheckIntervalMs)
	assert.Equal(t, 12, legacy.RiskControl.TrailingStop.CheckIntervalSec)
}

func TestLoadEmptyAndInvalid(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, LanguageEN, cfg.Language)

	_, err = Load([]byte(`{"language":`))
	assert.Error(t, err)
}

func TestLoadRoundTrip(t *testing.T) {
	cfg := DefaultConfig(LanguageES)
	cfg.CoinSource.SourceType = SourceStatic
	cfg.CoinSource.StaticCoins = []string{"BTCUSDT", "xyz:TSLA"}
	cfg.RiskControl.TrailingStop.TightenBands = []TightenBand{{ProfitPct: 5, TrailPct: 1}}
	cfg.CustomPrompt = "be patient"
	cfg = Materialize(cfg)

	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	back, err := Load(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestIntervalSeconds(t *testing.T) {
	cases := map[int]int{0: 0, 499: 0, 500: 1, 1000: 1, 1499: 1, 1500: 2, 30000: 30, 60500: 61}
	for ms, sec := range cases {
		assert.Equal(t, sec, IntervalSeconds(ms), ms)
	}
}

func TestCanonicalize(t *testing.T) {
	cfg := DefaultConfig(LanguageEN)
	cfg.CoinSource.StaticCoins = []string{"btc", "BTCUSDT", "tsla"}
	cfg.CoinSource.ExcludedCoins = []string{"doge"}
	cfg.RiskControl.TrailingStop.TightenBands = []TightenBand{
		{ProfitPct: 20, TrailPct: 1},
		{ProfitPct: 10, TrailPct: 2},
	}

	out := Canonicalize(cfg)
	assert.Equal(t, []string{"BTCUSDT", "xyz:TSLA"}, out.CoinSource.StaticCoins)
	assert.Equal(t, []string{"DOGEUSDT"}, out.CoinSource.ExcludedCoins)
	assert.Equal(t, 10.0, out.RiskControl.TrailingStop.TightenBands[0].ProfitPct)
	// input untouched
	assert.Equal(t, 20.0, cfg.RiskControl.TrailingStop.TightenBands[0].ProfitPct)
}

func TestPromptSectionModified(t *testing.T) {
	cfg, err := Load([]byte(`{"language":"en","prompt_sections":{"entry_standards":"only breakouts"}}`))
	require.NoError(t, err)

	assert.False(t, IsModified(cfg.PromptSections, cfg.Language, SectionRoleDefinition))
	assert.True(t, IsModified(cfg.PromptSections, cfg.Language, SectionEntryStandards))

	reset := ResetSection(cfg.PromptSections, cfg.Language, SectionEntryStandards)
	assert.Equal(t, DefaultPromptSections(LanguageEN).EntryStandards, reset.EntryStandards)
	assert.False(t, IsModified(reset, cfg.Language, SectionEntryStandards))
}
