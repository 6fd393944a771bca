package strategy

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed prompts/*.md
var promptFS embed.FS

var defaultSections = loadDefaultSections()

func loadDefaultSections() map[Language]PromptSections {
	out := make(map[Language]PromptSections, len(Languages))
	for _, lang := range Languages {
		var ps PromptSections
		for _, section := range Sections {
			data, err := promptFS.ReadFile(fmt.Sprintf("prompts/%s_%s.md", lang, section))
			if err != nil {
				panic(err)
			}
			ps = ps.With(section, strings.TrimSpace(string(data)))
		}
		out[lang] = ps
	}
	return out
}

// DefaultPromptSections 返回指定语言的默认提示词段落
func DefaultPromptSections(lang Language) PromptSections {
	if ps, ok := defaultSections[lang]; ok {
		return ps
	}
	return defaultSections[LanguageEN]
}

// DefaultTrailingStop 默认移动止损配置
func DefaultTrailingStop() TrailingStop {
	return TrailingStop{
		Enabled:          false,
		Mode:             TrailingModePnlPct,
		ActivationPct:    5,
		TrailPct:         2,
		CheckIntervalMs:  30000,
		CheckIntervalSec: 30,
		ClosePct:         1,
		TightenBands:     []TightenBand{},
	}
}

// DefaultConfig 返回指定语言的完整默认配置
func DefaultConfig(lang Language) Config {
	lang = ParseLanguage(string(lang))
	return Config{
		Language: lang,
		CoinSource: CoinSource{
			SourceType:    SourceAI500,
			StaticCoins:   []string{},
			ExcludedCoins: []string{},
			UseAI500:      true,
			AI500Limit:    30,
			UseOITop:      false,
			OITopLimit:    20,
		},
		Indicators: Indicators{
			Klines: KlineConfig{
				PrimaryTimeframe:   "5m",
				PrimaryCount:       30,
				SelectedTimeframes: []string{"5m", "15m", "1h", "4h"},
			},
			EnableRawKlines:   true,
			EnableVolume:      true,
			EnableOI:          true,
			EnableFundingRate: true,
			EMAPeriods:        []int{20, 50},
			RSIPeriods:        []int{7, 14},
			ATRPeriods:        []int{14},
			BOLLPeriods:       []int{20},
			OIRanking:         RankingConfig{Duration: Duration1h, Limit: 20},
			NetflowRanking:    RankingConfig{Duration: Duration1h, Limit: 20},
			PriceRanking:      RankingConfig{Duration: Duration1h, Limit: 20},
		},
		RiskControl: RiskControl{
			MaxPositions:                 3,
			BTCETHMaxLeverage:            5,
			AltcoinMaxLeverage:           5,
			BTCETHMaxPositionValueRatio:  5,
			AltcoinMaxPositionValueRatio: 1.5,
			MinRiskRewardRatio:           3,
			MaxMarginUsage:               0.9,
			MinPositionSize:              12,
			MinConfidence:                75,
			TrailingStop:                 DefaultTrailingStop(),
		},
		PromptSections: DefaultPromptSections(lang),
	}
}

// IsModified 段落内容与配置语言的默认值不同即视为已修改
func IsModified(sections PromptSections, lang Language, section Section) bool {
	return sections.Get(section) != DefaultPromptSections(lang).Get(section)
}

// ResetSection 将段落恢复为配置语言的默认文本
func ResetSection(sections PromptSections, lang Language, section Section) PromptSections {
	return sections.With(section, DefaultPromptSections(lang).Get(section))
}
