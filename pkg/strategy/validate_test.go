package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldsOf(err error) []string {
	var out []string
	for _, fe := range FieldErrors(err) {
		out = append(out, fe.Field)
	}
	return out
}

func TestValidateRanges(t *testing.T) {
	cfg := DefaultConfig(LanguageEN)
	cfg.RiskControl.MaxMarginUsage = 1.5
	cfg.RiskControl.MinConfidence = 101
	cfg.RiskControl.TrailingStop.ClosePct = 0

	err := Validate(cfg)
	require.Error(t, err)
	fields := fieldsOf(err)
	assert.Contains(t, fields, "risk_control.max_margin_usage")
	assert.Contains(t, fields, "risk_control.min_confidence")
	assert.Contains(t, fields, "risk_control.trailing_stop.close_pct")
}

func TestValidateSymbols(t *testing.T) {
	cfg := DefaultConfig(LanguageEN)
	cfg.CoinSource.StaticCoins = []string{"BTCUSDT", "eth"}

	err := Validate(cfg)
	require.Error(t, err)
	assert.Equal(t, []string{"coin_source.static_coins[1]"}, fieldsOf(err))

	assert.NoError(t, Validate(Canonicalize(cfg)))
}

func TestValidateRankingOnlyWhenEnabled(t *testing.T) {
	cfg := DefaultConfig(LanguageEN)
	cfg.Indicators.OIRanking = RankingConfig{Duration: "7d", Limit: 0}
	assert.NoError(t, Validate(cfg))

	cfg.Indicators.EnableOIRanking = true
	err := Validate(cfg)
	require.Error(t, err)
	fields := fieldsOf(err)
	assert.Contains(t, fields, "indicators.oi_ranking.duration")
	assert.Contains(t, fields, "indicators.oi_ranking.limit")
}

func TestValidateIntervalSync(t *testing.T) {
	cfg := DefaultConfig(LanguageEN)
	cfg.RiskControl.TrailingStop.CheckIntervalMs = 2000
	err := Validate(cfg)
	require.Error(t, err)
	assert.Equal(t, TagIntervalSync, FieldErrors(err)[0].Tag)

	assert.NoError(t, Validate(Materialize(cfg)))
}

func TestFieldErrorsIgnoresOtherErrors(t *testing.T) {
	assert.Nil(t, FieldErrors(nil))
	assert.Nil(t, FieldErrors(ErrReadOnly))
}
