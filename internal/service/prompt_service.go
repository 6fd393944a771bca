package service

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dushixiang/prism-studio/internal/config"
	"github.com/dushixiang/prism-studio/internal/xe"
	"github.com/dushixiang/prism-studio/pkg/strategy"
	"github.com/valyala/fasttemplate"
	"go.uber.org/zap"
)

// 提示词风格
const (
	VariantBalanced     = "balanced"
	VariantAggressive   = "aggressive"
	VariantConservative = "conservative"
)

// Variants 支持的提示词风格
var Variants = []string{VariantBalanced, VariantAggressive, VariantConservative}

//go:embed templates/*.txt
var templateFS embed.FS

// PromptService AI提示词生成服务
type PromptService struct {
	logger *zap.Logger

	coinPool      *CoinPoolService
	marketService *MarketService

	defaultEquity float64
	now           func() time.Time
}

// NewPromptService 创建提示词服务
func NewPromptService(logger *zap.Logger, conf *config.Config, coinPool *CoinPoolService, marketService *MarketService) *PromptService {
	equity := conf.Studio.DefaultAccountEquity
	if equity <= 0 {
		equity = 1000
	}
	return &PromptService{
		logger:        logger,
		coinPool:      coinPool,
		marketService: marketService,
		defaultEquity: equity,
		now:           time.Now,
	}
}

// NormalizeVariant 未知或空的风格按均衡处理
func NormalizeVariant(variant string) string {
	v := strings.ToLower(strings.TrimSpace(variant))
	for _, known := range Variants {
		if v == known {
			return v
		}
	}
	return VariantBalanced
}

func loadTemplate(lang strategy.Language, name string) string {
	data, err := templateFS.ReadFile("templates/" + string(lang) + "_" + name + ".txt")
	if err != nil {
		data, _ = templateFS.ReadFile("templates/en_" + name + ".txt")
	}
	return strings.TrimSpace(string(data))
}

func renderTemplate(lang strategy.Language, name string, values map[string]interface{}) string {
	tmpl := fasttemplate.New(loadTemplate(lang, name), "{{", "}}")
	return tmpl.ExecuteString(values)
}

// formatFloat 去掉多余的零
func formatFloat(val float64) string {
	str := strconv.FormatFloat(val, 'f', 2, 64)
	str = strings.TrimRight(str, "0")
	str = strings.TrimRight(str, ".")
	if str == "" || str == "-0" {
		return "0"
	}
	return str
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}

func (s *PromptService) equity(v float64) float64 {
	if v <= 0 {
		return s.defaultEquity
	}
	return v
}

// BuildSystemPrompt 根据策略配置生成系统提示词
func (s *PromptService) BuildSystemPrompt(cfg strategy.Config, accountEquity float64, variant string) string {
	var sb strings.Builder
	lang := cfg.Language
	text := textFor(lang)
	rc := cfg.RiskControl
	sections := cfg.PromptSections
	defaults := strategy.DefaultPromptSections(lang)
	equity := s.equity(accountEquity)

	section := func(name strategy.Section) string {
		if v := strings.TrimSpace(sections.Get(name)); v != "" {
			return v
		}
		return defaults.Get(name)
	}

	// 1. 角色定义
	sb.WriteString(section(strategy.SectionRoleDefinition))
	sb.WriteString("\n\n")

	// 2. 风格
	sb.WriteString(loadTemplate(lang, NormalizeVariant(variant)))
	sb.WriteString("\n\n")

	// 3. 硬性约束
	sb.WriteString(renderTemplate(lang, "hard_constraints", map[string]interface{}{
		"min_risk_reward_ratio": formatFloat(rc.MinRiskRewardRatio),
		"max_positions":         strconv.Itoa(rc.MaxPositions),
		"min_position_size":     formatFloat(rc.MinPositionSize),
		"altcoin_max_position":  formatFloat(equity * rc.AltcoinMaxPositionValueRatio),
		"btc_eth_max_position":  formatFloat(equity * rc.BTCETHMaxPositionValueRatio),
		"altcoin_max_leverage":  strconv.Itoa(rc.AltcoinMaxLeverage),
		"btc_eth_max_leverage":  strconv.Itoa(rc.BTCETHMaxLeverage),
		"max_margin_usage":      formatFloat(rc.MaxMarginUsage * 100),
		"min_confidence":        strconv.Itoa(rc.MinConfidence),
	}))
	sb.WriteString("\n\n")

	// 4. 移动止损
	if rc.TrailingStop.Enabled {
		sb.WriteString(s.trailingStopBlock(lang, rc.TrailingStop))
		sb.WriteString("\n\n")
	}

	// 5. 交易频率
	sb.WriteString(section(strategy.SectionTradingFrequency))
	sb.WriteString("\n\n")

	// 6. 开仓标准与可用指标
	sb.WriteString(section(strategy.SectionEntryStandards))
	sb.WriteString("\n\n")
	sb.WriteString(text.IndicatorsIntro)
	sb.WriteString("\n")
	s.writeAvailableIndicators(&sb, cfg, text)
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf(text.MinConfidence, rc.MinConfidence))
	sb.WriteString("\n\n")

	// 7. 决策流程
	sb.WriteString(section(strategy.SectionDecisionProcess))
	sb.WriteString("\n\n")

	// 8. 输出格式
	sb.WriteString(renderTemplate(lang, "output_format", map[string]interface{}{
		"btc_eth_max_leverage":  strconv.Itoa(rc.BTCETHMaxLeverage),
		"example_position_size": formatFloat(equity * rc.BTCETHMaxPositionValueRatio / 2),
		"min_confidence":        strconv.Itoa(rc.MinConfidence),
	}))
	sb.WriteString("\n")

	// 9. 自定义提示词
	if custom := strings.TrimSpace(cfg.CustomPrompt); custom != "" {
		sb.WriteString("\n")
		sb.WriteString(text.CustomHeader)
		sb.WriteString("\n\n")
		sb.WriteString(custom)
		sb.WriteString("\n\n")
		sb.WriteString(text.CustomNote)
		sb.WriteString("\n")
	}

	return sb.String()
}

func (s *PromptService) trailingStopBlock(lang strategy.Language, ts strategy.TrailingStop) string {
	text := textFor(lang)
	mode := text.ModePnlPct
	if ts.Mode == strategy.TrailingModePricePct {
		mode = text.ModePricePct
	}

	var bands strings.Builder
	if len(ts.TightenBands) > 0 {
		sorted := append([]strategy.TightenBand(nil), ts.TightenBands...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ProfitPct < sorted[j].ProfitPct })
		bands.WriteString(text.TightenHeader)
		for _, b := range sorted {
			bands.WriteString("\n")
			bands.WriteString(fmt.Sprintf(text.TightenRow, formatFloat(b.ProfitPct), formatFloat(b.TrailPct)))
		}
	}

	return strings.TrimRight(renderTemplate(lang, "trailing_stop", map[string]interface{}{
		"trailing_mode":      mode,
		"activation_pct":     formatFloat(ts.ActivationPct),
		"trail_pct":          formatFloat(ts.TrailPct),
		"close_pct":          formatFloat(ts.ClosePct * 100),
		"check_interval_sec": strconv.Itoa(ts.CheckIntervalSec),
		"tighten_bands":      bands.String(),
	}), "\n")
}

// writeAvailableIndicators 写入可用指标列表
func (s *PromptService) writeAvailableIndicators(sb *strings.Builder, cfg strategy.Config, text promptText) {
	ind := cfg.Indicators
	kline := ind.Klines

	sb.WriteString(fmt.Sprintf(text.PriceSeries, kline.PrimaryTimeframe, kline.PrimaryCount))
	sb.WriteString("\n")
	if len(kline.SelectedTimeframes) > 1 {
		sb.WriteString(fmt.Sprintf(text.Timeframes, strings.Join(kline.SelectedTimeframes, ", ")))
		sb.WriteString("\n")
	}

	withPeriods := func(label string, periods []int) {
		sb.WriteString(label)
		if len(periods) > 0 {
			sb.WriteString(fmt.Sprintf(text.Periods, joinInts(periods)))
		}
		sb.WriteString("\n")
	}

	if ind.EnableEMA {
		withPeriods(text.EMA, ind.EMAPeriods)
	}
	if ind.EnableMACD {
		sb.WriteString(text.MACD + "\n")
	}
	if ind.EnableRSI {
		withPeriods(text.RSI, ind.RSIPeriods)
	}
	if ind.EnableATR {
		withPeriods(text.ATR, ind.ATRPeriods)
	}
	if ind.EnableBOLL {
		withPeriods(text.BOLL, ind.BOLLPeriods)
	}
	if ind.EnableVolume {
		sb.WriteString(text.Volume + "\n")
	}
	if ind.EnableOI {
		sb.WriteString(text.OI + "\n")
	}
	if ind.EnableFundingRate {
		sb.WriteString(text.FundingRate + "\n")
	}

	src := cfg.CoinSource
	if src.SourceType == strategy.SourceMixed || src.SourceType == strategy.SourceAI500 || src.SourceType == strategy.SourceOITop {
		sb.WriteString(text.PoolTags + "\n")
	}

	var rankings []string
	if ind.EnableOIRanking {
		rankings = append(rankings, fmt.Sprintf("OI %s top %d", ind.OIRanking.Duration, ind.OIRanking.Limit))
	}
	if ind.EnableNetflowRanking {
		rankings = append(rankings, fmt.Sprintf("netflow %s top %d", ind.NetflowRanking.Duration, ind.NetflowRanking.Limit))
	}
	if ind.EnablePriceRanking {
		rankings = append(rankings, fmt.Sprintf("price %s top %d", ind.PriceRanking.Duration, ind.PriceRanking.Limit))
	}
	if len(rankings) > 0 {
		sb.WriteString(fmt.Sprintf(text.Rankings, strings.Join(rankings, ", ")))
		sb.WriteString("\n")
	}
}

// BuildUserPrompt 生成用户提示词：候选币种与行情快照
func (s *PromptService) BuildUserPrompt(ctx context.Context, cfg strategy.Config, accountEquity float64) (string, []CandidateCoin, error) {
	text := textFor(cfg.Language)

	candidates, err := s.coinPool.ResolveCandidates(ctx, cfg.CoinSource)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString(text.UserContext + "\n\n")
	sb.WriteString(fmt.Sprintf(text.UserTime, s.now().UTC().Format("2006-01-02 15:04:05")) + "\n")
	sb.WriteString(fmt.Sprintf(text.UserEquity, formatFloat(s.equity(accountEquity))) + "\n\n")

	sb.WriteString(fmt.Sprintf(text.UserCandidates, len(candidates)) + "\n\n")
	if len(candidates) == 0 {
		sb.WriteString(text.UserNoCandidates + "\n\n")
	}
	symbols := make([]string, 0, len(candidates))
	for _, c := range candidates {
		sb.WriteString(fmt.Sprintf("- %s [%s]\n", c.Symbol, strings.Join(c.Sources, ", ")))
		symbols = append(symbols, c.Symbol)
	}
	if len(candidates) > 0 {
		sb.WriteString("\n")
	}

	sb.WriteString(text.UserMarket + "\n\n")
	marketData := s.collectMarket(ctx, symbols, cfg.Indicators)
	if len(marketData) == 0 {
		sb.WriteString(text.UserNoMarket + "\n\n")
	}
	for _, symbol := range symbols {
		data, ok := marketData[symbol]
		if !ok {
			continue
		}
		s.writeMarketData(&sb, data, cfg.Indicators, text)
	}

	sb.WriteString(text.UserTask + "\n")
	return sb.String(), candidates, nil
}

func (s *PromptService) collectMarket(ctx context.Context, symbols []string, conf strategy.Indicators) map[string]*MarketData {
	if s.marketService == nil || !s.marketService.Enabled() || len(symbols) == 0 {
		return nil
	}
	crypto := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		if !strings.HasPrefix(symbol, strategy.NonCryptoPrefix) {
			crypto = append(crypto, symbol)
		}
	}
	data, err := s.marketService.CollectAllSymbols(ctx, crypto, conf)
	if err != nil {
		s.logger.Warn("market snapshot unavailable", zap.Error(err))
		return nil
	}
	return data
}

// writeMarketData 写入单个币种的行情
func (s *PromptService) writeMarketData(sb *strings.Builder, data *MarketData, conf strategy.Indicators, text promptText) {
	sb.WriteString(fmt.Sprintf("### %s\n\n", data.Symbol))
	sb.WriteString(fmt.Sprintf(text.UserPrice, formatFloat(data.CurrentPrice)) + "\n")
	if data.FundingRate != nil {
		sb.WriteString(fmt.Sprintf(text.UserFunding, strconv.FormatFloat(*data.FundingRate*100, 'f', 4, 64)) + "\n")
	}
	if data.OpenInterest != nil {
		sb.WriteString(fmt.Sprintf(text.UserOI, formatFloat(*data.OpenInterest)) + "\n")
	}
	if data.Trend != "" {
		sb.WriteString(fmt.Sprintf(text.UserTrend, data.Trend) + "\n")
	}

	timeframes := conf.Klines.SelectedTimeframes
	if len(timeframes) == 0 {
		timeframes = []string{conf.Klines.PrimaryTimeframe}
	}
	for _, tf := range timeframes {
		ind, ok := data.Timeframes[tf]
		if !ok {
			continue
		}
		sb.WriteString(fmt.Sprintf("- **%s**: %s\n", tf, formatIndicators(ind)))
		if len(ind.Klines) > 0 {
			closes := make([]float64, len(ind.Klines))
			for i, k := range ind.Klines {
				closes[i] = k.Close
			}
			sb.WriteString(fmt.Sprintf(text.UserCloses, len(closes), formatFloatArray(closes)) + "\n")
		}
	}
	sb.WriteString("\n")
}

func formatIndicators(ind *TimeframeIndicators) string {
	parts := []string{"price=" + formatFloat(ind.Price)}
	for _, p := range sortedKeys(ind.EMA) {
		parts = append(parts, fmt.Sprintf("EMA%d=%s", p, formatFloat(ind.EMA[p])))
	}
	if ind.MACD != nil {
		parts = append(parts, fmt.Sprintf("MACD=%s/%s/%s", formatFloat(*ind.MACD), formatFloat(*ind.MACDSignal), formatFloat(*ind.MACDHist)))
	}
	for _, p := range sortedKeys(ind.RSI) {
		parts = append(parts, fmt.Sprintf("RSI%d=%s", p, formatFloat(ind.RSI[p])))
	}
	for _, p := range sortedKeys(ind.ATR) {
		parts = append(parts, fmt.Sprintf("ATR%d=%s", p, formatFloat(ind.ATR[p])))
	}
	bollPeriods := make([]int, 0, len(ind.BOLL))
	for p := range ind.BOLL {
		bollPeriods = append(bollPeriods, p)
	}
	sort.Ints(bollPeriods)
	for _, p := range bollPeriods {
		b := ind.BOLL[p]
		parts = append(parts, fmt.Sprintf("BOLL%d=%s/%s/%s", p, formatFloat(b.Upper), formatFloat(b.Middle), formatFloat(b.Lower)))
	}
	if ind.Volume != nil {
		parts = append(parts, fmt.Sprintf("volume=%s (avg %s)", formatFloat(*ind.Volume), formatFloat(*ind.AvgVolume)))
	}
	if len(ind.Signals) > 0 {
		parts = append(parts, "signals="+strings.Join(ind.Signals, ","))
	}
	return strings.Join(parts, ", ")
}

func sortedKeys(m map[int]float64) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// formatFloatArray 格式化浮点数组
func formatFloatArray(arr []float64) string {
	if len(arr) == 0 {
		return "[]"
	}
	strs := make([]string, len(arr))
	for i, v := range arr {
		strs[i] = formatFloat(v)
	}
	return "[" + strings.Join(strs, ", ") + "]"
}

// ConfigSummary 配置摘要，预览时展示
type ConfigSummary struct {
	Language           strategy.Language   `json:"language"`
	CoinSource         strategy.SourceType `json:"coin_source"`
	StaticCoins        int                 `json:"static_coins"`
	ExcludedCoins      int                 `json:"excluded_coins"`
	PrimaryTimeframe   string              `json:"primary_timeframe"`
	Timeframes         []string            `json:"timeframes"`
	Indicators         []string            `json:"indicators"`
	MaxPositions       int                 `json:"max_positions"`
	BTCETHMaxLeverage  int                 `json:"btc_eth_max_leverage"`
	AltcoinMaxLeverage int                 `json:"altcoin_max_leverage"`
	MinConfidence      int                 `json:"min_confidence"`
	TrailingStop       bool                `json:"trailing_stop"`
	CustomPrompt       bool                `json:"custom_prompt"`
}

// Summarize 生成配置摘要
func (s *PromptService) Summarize(cfg strategy.Config) ConfigSummary {
	ind := cfg.Indicators
	var enabled []string
	for _, item := range []struct {
		name string
		on   bool
	}{
		{"raw_klines", ind.EnableRawKlines},
		{"ema", ind.EnableEMA},
		{"macd", ind.EnableMACD},
		{"rsi", ind.EnableRSI},
		{"atr", ind.EnableATR},
		{"boll", ind.EnableBOLL},
		{"volume", ind.EnableVolume},
		{"oi", ind.EnableOI},
		{"funding_rate", ind.EnableFundingRate},
	} {
		if item.on {
			enabled = append(enabled, item.name)
		}
	}

	return ConfigSummary{
		Language:           cfg.Language,
		CoinSource:         cfg.CoinSource.SourceType,
		StaticCoins:        len(cfg.CoinSource.StaticCoins),
		ExcludedCoins:      len(cfg.CoinSource.ExcludedCoins),
		PrimaryTimeframe:   ind.Klines.PrimaryTimeframe,
		Timeframes:         append([]string{}, ind.Klines.SelectedTimeframes...),
		Indicators:         enabled,
		MaxPositions:       cfg.RiskControl.MaxPositions,
		BTCETHMaxLeverage:  cfg.RiskControl.BTCETHMaxLeverage,
		AltcoinMaxLeverage: cfg.RiskControl.AltcoinMaxLeverage,
		MinConfidence:      cfg.RiskControl.MinConfidence,
		TrailingStop:       cfg.RiskControl.TrailingStop.Enabled,
		CustomPrompt:       strings.TrimSpace(cfg.CustomPrompt) != "",
	}
}

// PreviewRequest 提示词预览请求，使用请求中的配置而不是已保存的配置
type PreviewRequest struct {
	Config            json.RawMessage `json:"config"`
	AccountEquity     float64         `json:"account_equity" validate:"gte=0"`
	PromptVariant     string          `json:"prompt_variant"`
	IncludeUserPrompt bool            `json:"include_user_prompt"`
}

// PreviewResponse 提示词预览结果
type PreviewResponse struct {
	SystemPrompt  string          `json:"system_prompt"`
	UserPrompt    string          `json:"user_prompt,omitempty"`
	PromptVariant string          `json:"prompt_variant"`
	ConfigSummary ConfigSummary   `json:"config_summary"`
	Candidates    []CandidateCoin `json:"candidates,omitempty"`
}

// ParsePreviewConfig 解析并规范化预览配置，不做范围校验
func ParsePreviewConfig(raw json.RawMessage) (strategy.Config, error) {
	cfg, err := strategy.Load(raw)
	if err != nil {
		return strategy.Config{}, fmt.Errorf("%w: %v", xe.ErrInvalidConfig, err)
	}
	return strategy.Canonicalize(cfg), nil
}

// Preview 生成提示词预览，每次都重新生成
func (s *PromptService) Preview(ctx context.Context, req PreviewRequest) (*PreviewResponse, error) {
	cfg, err := ParsePreviewConfig(req.Config)
	if err != nil {
		return nil, err
	}
	variant := NormalizeVariant(req.PromptVariant)

	resp := &PreviewResponse{
		SystemPrompt:  s.BuildSystemPrompt(cfg, req.AccountEquity, variant),
		PromptVariant: variant,
		ConfigSummary: s.Summarize(cfg),
	}
	if req.IncludeUserPrompt {
		userPrompt, candidates, err := s.BuildUserPrompt(ctx, cfg, req.AccountEquity)
		if err != nil {
			return nil, err
		}
		resp.UserPrompt = userPrompt
		resp.Candidates = candidates
	}
	return resp, nil
}

// PromptTemplate 提示词风格模板
type PromptTemplate struct {
	Name     string            `json:"name"`
	Language strategy.Language `json:"language"`
	Content  string            `json:"content"`
}

// ListTemplates 所有风格模板
func (s *PromptService) ListTemplates(lang string) []PromptTemplate {
	language := strategy.ParseLanguage(lang)
	out := make([]PromptTemplate, 0, len(Variants))
	for _, name := range Variants {
		out = append(out, PromptTemplate{Name: name, Language: language, Content: loadTemplate(language, name)})
	}
	return out
}

// GetTemplate 获取单个风格模板
func (s *PromptService) GetTemplate(name, lang string) (*PromptTemplate, error) {
	for _, known := range Variants {
		if known == name {
			language := strategy.ParseLanguage(lang)
			return &PromptTemplate{Name: name, Language: language, Content: loadTemplate(language, name)}, nil
		}
	}
	return nil, xe.ErrPromptTemplateNotFound
}
