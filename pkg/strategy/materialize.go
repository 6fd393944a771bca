package strategy

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// peek 仅用于在合并默认值之前识别部分字段是否存在
type peek struct {
	Language    string `json:"language"`
	RiskControl *struct {
		TrailingStop *struct {
			CheckIntervalMs  *int `json:"check_interval_ms"`
			CheckIntervalSec *int `json:"check_interval_sec"`
		} `json:"trailing_stop"`
	} `json:"risk_control"`
}

// Load 从存储的 JSON 文档还原配置：以配置语言的默认配置为底，
// 文档中出现的字段覆盖默认值（显式的零值同样保留），随后执行 Materialize。
func Load(data []byte) (Config, error) {
	if len(data) == 0 || string(data) == "null" {
		return Materialize(DefaultConfig(LanguageEN)), nil
	}

	var p peek
	if err := json.Unmarshal(data, &p); err != nil {
		return Config{}, fmt.Errorf("parse strategy config: %w", err)
	}

	cfg := DefaultConfig(ParseLanguage(p.Language))
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse strategy config: %w", err)
	}

	// 旧文档只有秒级间隔时以秒为准
	if p.RiskControl != nil && p.RiskControl.TrailingStop != nil {
		ts := p.RiskControl.TrailingStop
		if ts.CheckIntervalMs == nil && ts.CheckIntervalSec != nil {
			cfg.RiskControl.TrailingStop.CheckIntervalMs = *ts.CheckIntervalSec * 1000
		}
	}

	return Materialize(cfg), nil
}

// Materialize 补齐读取路径上的不变量，配置加载后只需调用一次
func Materialize(cfg Config) Config {
	cfg = cfg.Clone()
	cfg.Language = ParseLanguage(string(cfg.Language))
	cfg.Indicators.EnableRawKlines = true

	if cfg.CoinSource.StaticCoins == nil {
		cfg.CoinSource.StaticCoins = []string{}
	}
	if cfg.CoinSource.ExcludedCoins == nil {
		cfg.CoinSource.ExcludedCoins = []string{}
	}

	ts := &cfg.RiskControl.TrailingStop
	if ts.Mode == "" {
		ts.Mode = TrailingModePnlPct
	}
	if ts.TightenBands == nil {
		ts.TightenBands = []TightenBand{}
	}
	ts.CheckIntervalSec = IntervalSeconds(ts.CheckIntervalMs)
	return cfg
}

// Canonicalize 写入前的规范化：币种规范化去重、收紧档位按盈利升序排列
func Canonicalize(cfg Config) Config {
	cfg = Materialize(cfg)
	cfg.CoinSource.StaticCoins = NormalizeSymbols(cfg.CoinSource.StaticCoins)
	cfg.CoinSource.ExcludedCoins = NormalizeSymbols(cfg.CoinSource.ExcludedCoins)
	sort.SliceStable(cfg.RiskControl.TrailingStop.TightenBands, func(i, j int) bool {
		bands := cfg.RiskControl.TrailingStop.TightenBands
		return bands[i].ProfitPct < bands[j].ProfitPct
	})
	return cfg
}

// IntervalSeconds 由毫秒间隔推导秒级间隔
func IntervalSeconds(ms int) int {
	return int(math.Round(float64(ms) / 1000))
}
