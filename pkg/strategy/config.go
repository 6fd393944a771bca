package strategy

// Language 策略配置语言
type Language string

const (
	LanguageEN Language = "en"
	LanguageZH Language = "zh"
	LanguageES Language = "es"
)

// Languages 支持的语言
var Languages = []Language{LanguageEN, LanguageZH, LanguageES}

// ParseLanguage 解析语言，未知语言回退为英文
func ParseLanguage(s string) Language {
	switch Language(s) {
	case LanguageZH:
		return LanguageZH
	case LanguageES:
		return LanguageES
	default:
		return LanguageEN
	}
}

// SourceType 币种来源类型
type SourceType string

const (
	SourceStatic SourceType = "static"
	SourceAI500  SourceType = "ai500"
	SourceOITop  SourceType = "oi_top"
	SourceMixed  SourceType = "mixed"
)

// TrailingMode 移动止损计算模式
type TrailingMode string

const (
	TrailingModePnlPct   TrailingMode = "pnl_pct"
	TrailingModePricePct TrailingMode = "price_pct"
)

// RankingDuration 排行榜统计周期
type RankingDuration string

const (
	Duration1h  RankingDuration = "1h"
	Duration4h  RankingDuration = "4h"
	Duration24h RankingDuration = "24h"
)

// Config 策略配置，作为一个完整的 JSON 文档存储
type Config struct {
	Language       Language       `json:"language" validate:"omitempty,oneof=en zh es"`
	CoinSource     CoinSource     `json:"coin_source"`
	Indicators     Indicators     `json:"indicators"`
	RiskControl    RiskControl    `json:"risk_control"`
	PromptSections PromptSections `json:"prompt_sections"`
	CustomPrompt   string         `json:"custom_prompt" validate:"max=20000"`
}

// CoinSource 币种来源配置
type CoinSource struct {
	SourceType    SourceType `json:"source_type" validate:"oneof=static ai500 oi_top mixed"`
	StaticCoins   []string   `json:"static_coins" validate:"max=100,dive,symbol"`
	ExcludedCoins []string   `json:"excluded_coins" validate:"max=200,dive,symbol"`
	UseAI500      bool       `json:"use_ai500"`
	AI500Limit    int        `json:"ai500_limit" validate:"gte=0,lte=100"`
	UseOITop      bool       `json:"use_oi_top"`
	OITopLimit    int        `json:"oi_top_limit" validate:"gte=0,lte=100"`
}

// KlineConfig K线配置
type KlineConfig struct {
	PrimaryTimeframe   string   `json:"primary_timeframe" validate:"omitempty,oneof=1m 3m 5m 15m 30m 1h 2h 4h 6h 12h 1d"`
	PrimaryCount       int      `json:"primary_count" validate:"gte=0,lte=500"`
	SelectedTimeframes []string `json:"selected_timeframes" validate:"max=6,dive,oneof=1m 3m 5m 15m 30m 1h 2h 4h 6h 12h 1d"`
}

// RankingConfig 排行榜子配置，仅在对应开关打开时生效
type RankingConfig struct {
	Duration RankingDuration `json:"duration"`
	Limit    int             `json:"limit"`
}

// Indicators 指标配置
type Indicators struct {
	Klines          KlineConfig `json:"klines"`
	EnableRawKlines bool        `json:"enable_raw_klines"`

	EnableEMA         bool `json:"enable_ema"`
	EnableMACD        bool `json:"enable_macd"`
	EnableRSI         bool `json:"enable_rsi"`
	EnableATR         bool `json:"enable_atr"`
	EnableBOLL        bool `json:"enable_boll"`
	EnableVolume      bool `json:"enable_volume"`
	EnableOI          bool `json:"enable_oi"`
	EnableFundingRate bool `json:"enable_funding_rate"`

	EMAPeriods  []int `json:"ema_periods" validate:"max=5,dive,gte=2,lte=200"`
	RSIPeriods  []int `json:"rsi_periods" validate:"max=5,dive,gte=2,lte=100"`
	ATRPeriods  []int `json:"atr_periods" validate:"max=5,dive,gte=2,lte=100"`
	BOLLPeriods []int `json:"boll_periods" validate:"max=5,dive,gte=5,lte=100"`

	// ProviderAPIKey 外部量化数据提供方的密钥
	ProviderAPIKey string `json:"provider_api_key" validate:"max=256"`

	EnableOIRanking      bool          `json:"enable_oi_ranking"`
	OIRanking            RankingConfig `json:"oi_ranking"`
	EnableNetflowRanking bool          `json:"enable_netflow_ranking"`
	NetflowRanking       RankingConfig `json:"netflow_ranking"`
	EnablePriceRanking   bool          `json:"enable_price_ranking"`
	PriceRanking         RankingConfig `json:"price_ranking"`
}

// RiskControl 风控配置
type RiskControl struct {
	MaxPositions int `json:"max_positions" validate:"gte=1,lte=20"`

	BTCETHMaxLeverage  int `json:"btc_eth_max_leverage" validate:"gte=1,lte=125"`
	AltcoinMaxLeverage int `json:"altcoin_max_leverage" validate:"gte=1,lte=75"`

	BTCETHMaxPositionValueRatio  float64 `json:"btc_eth_max_position_value_ratio" validate:"gt=0,lte=20"`
	AltcoinMaxPositionValueRatio float64 `json:"altcoin_max_position_value_ratio" validate:"gt=0,lte=20"`

	MinRiskRewardRatio float64 `json:"min_risk_reward_ratio" validate:"gte=0,lte=20"`
	MaxMarginUsage     float64 `json:"max_margin_usage" validate:"gte=0,lte=1"`
	MinPositionSize    float64 `json:"min_position_size" validate:"gte=0"`
	MinConfidence      int     `json:"min_confidence" validate:"gte=0,lte=100"`

	TrailingStop TrailingStop `json:"trailing_stop"`
}

// TrailingStop 移动止损配置
type TrailingStop struct {
	Enabled          bool          `json:"enabled"`
	Mode             TrailingMode  `json:"mode" validate:"oneof=pnl_pct price_pct"`
	ActivationPct    float64       `json:"activation_pct" validate:"gte=0,lte=1000"`
	TrailPct         float64       `json:"trail_pct" validate:"gte=0,lte=100"`
	CheckIntervalMs  int           `json:"check_interval_ms" validate:"gte=100,lte=3600000"`
	CheckIntervalSec int           `json:"check_interval_sec"`
	ClosePct         float64       `json:"close_pct" validate:"gt=0,lte=1"`
	TightenBands     []TightenBand `json:"tighten_bands" validate:"max=10,dive"`
}

// TightenBand 收紧档位：盈利达到 ProfitPct 后使用更紧的 TrailPct
type TightenBand struct {
	ProfitPct float64 `json:"profit_pct" validate:"gt=0,lte=1000"`
	TrailPct  float64 `json:"trail_pct" validate:"gt=0,lte=100"`
}

// PromptSections 可编辑的提示词段落
type PromptSections struct {
	RoleDefinition   string `json:"role_definition"`
	TradingFrequency string `json:"trading_frequency"`
	EntryStandards   string `json:"entry_standards"`
	DecisionProcess  string `json:"decision_process"`
}

// Section 提示词段落名
type Section string

const (
	SectionRoleDefinition   Section = "role_definition"
	SectionTradingFrequency Section = "trading_frequency"
	SectionEntryStandards   Section = "entry_standards"
	SectionDecisionProcess  Section = "decision_process"
)

// Sections 段落按生成顺序排列
var Sections = []Section{SectionRoleDefinition, SectionTradingFrequency, SectionEntryStandards, SectionDecisionProcess}

// Get 读取段落
func (p PromptSections) Get(section Section) string {
	switch section {
	case SectionRoleDefinition:
		return p.RoleDefinition
	case SectionTradingFrequency:
		return p.TradingFrequency
	case SectionEntryStandards:
		return p.EntryStandards
	case SectionDecisionProcess:
		return p.DecisionProcess
	}
	return ""
}

// With 返回替换了指定段落的新副本
func (p PromptSections) With(section Section, text string) PromptSections {
	switch section {
	case SectionRoleDefinition:
		p.RoleDefinition = text
	case SectionTradingFrequency:
		p.TradingFrequency = text
	case SectionEntryStandards:
		p.EntryStandards = text
	case SectionDecisionProcess:
		p.DecisionProcess = text
	}
	return p
}

// Clone 深拷贝配置，切片不与原配置共享底层数组
func (c Config) Clone() Config {
	out := c
	out.CoinSource.StaticCoins = cloneSlice(c.CoinSource.StaticCoins)
	out.CoinSource.ExcludedCoins = cloneSlice(c.CoinSource.ExcludedCoins)
	out.Indicators.Klines.SelectedTimeframes = cloneSlice(c.Indicators.Klines.SelectedTimeframes)
	out.Indicators.EMAPeriods = cloneSlice(c.Indicators.EMAPeriods)
	out.Indicators.RSIPeriods = cloneSlice(c.Indicators.RSIPeriods)
	out.Indicators.ATRPeriods = cloneSlice(c.Indicators.ATRPeriods)
	out.Indicators.BOLLPeriods = cloneSlice(c.Indicators.BOLLPeriods)
	out.RiskControl.TrailingStop.TightenBands = cloneSlice(c.RiskControl.TrailingStop.TightenBands)
	return out
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
