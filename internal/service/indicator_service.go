package service

import (
	"sort"
	"strconv"

	"github.com/dushixiang/prism-studio/pkg/exchange"
	"github.com/dushixiang/prism-studio/pkg/strategy"
	"github.com/dushixiang/prism-studio/pkg/ta"
)

// 计算指标至少需要的K线数量
const minIndicatorKlines = 50

// IndicatorService 技术指标计算服务
type IndicatorService struct{}

// NewIndicatorService 创建技术指标服务
func NewIndicatorService() *IndicatorService {
	return &IndicatorService{}
}

// BollBand 布林带最新值
type BollBand struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// TimeframeIndicators 单个时间框架的指标，只包含策略启用的部分
type TimeframeIndicators struct {
	Timeframe  string            `json:"timeframe"`
	Price      float64           `json:"price"`
	Klines     []*exchange.Kline `json:"klines,omitempty"`
	EMA        map[int]float64   `json:"ema,omitempty"`
	MACD       *float64          `json:"macd,omitempty"`
	MACDSignal *float64          `json:"macd_signal,omitempty"`
	MACDHist   *float64          `json:"macd_hist,omitempty"`
	RSI        map[int]float64   `json:"rsi,omitempty"`
	ATR        map[int]float64   `json:"atr,omitempty"`
	BOLL       map[int]BollBand  `json:"boll,omitempty"`
	Volume     *float64          `json:"volume,omitempty"`
	AvgVolume  *float64          `json:"avg_volume,omitempty"`
	Signals    []string          `json:"signals,omitempty"`
}

// CalculateIndicators 按策略指标配置计算；rawCount 为附带的原始K线根数
func (s *IndicatorService) CalculateIndicators(klines []*exchange.Kline, conf strategy.Indicators, rawCount int) *TimeframeIndicators {
	if len(klines) == 0 {
		return nil
	}

	highs, lows, closes, volumes := exchange.HLCV(klines)
	result := &TimeframeIndicators{
		Price: ta.Last(closes, 0),
	}

	if conf.EnableRawKlines && rawCount > 0 {
		n := rawCount
		if n > len(klines) {
			n = len(klines)
		}
		result.Klines = klines[len(klines)-n:]
	}

	if len(klines) < minIndicatorKlines {
		return result
	}

	if conf.EnableEMA {
		result.EMA = make(map[int]float64, len(conf.EMAPeriods))
		for _, p := range conf.EMAPeriods {
			if series := ta.EMA(closes, p); series != nil {
				result.EMA[p] = ta.Last(series, 0)
			}
		}
		if periods := sortedPeriods(conf.EMAPeriods); len(periods) >= 2 {
			fast := ta.EMA(closes, periods[0])
			slow := ta.EMA(closes, periods[len(periods)-1])
			switch {
			case ta.Crossover(fast, slow):
				result.Signals = append(result.Signals, "ema_golden_cross")
			case ta.Crossunder(fast, slow):
				result.Signals = append(result.Signals, "ema_death_cross")
			}
		}
	}

	if conf.EnableMACD {
		macd, signal, hist := ta.MACD(closes, 12, 26, 9)
		if macd != nil {
			m, sg, h := ta.Last(macd, 0), ta.Last(signal, 0), ta.Last(hist, 0)
			result.MACD, result.MACDSignal, result.MACDHist = &m, &sg, &h
		}
	}

	if conf.EnableRSI {
		result.RSI = make(map[int]float64, len(conf.RSIPeriods))
		for _, p := range conf.RSIPeriods {
			if series := ta.RSI(closes, p); series != nil {
				result.RSI[p] = ta.Last(series, 0)
			}
		}
	}

	if conf.EnableATR {
		result.ATR = make(map[int]float64, len(conf.ATRPeriods))
		for _, p := range conf.ATRPeriods {
			if series := ta.ATR(highs, lows, closes, p); series != nil {
				result.ATR[p] = ta.Last(series, 0)
			}
		}
	}

	if conf.EnableBOLL {
		result.BOLL = make(map[int]BollBand, len(conf.BOLLPeriods))
		for _, p := range conf.BOLLPeriods {
			upper, middle, lower := ta.BOLL(closes, p)
			if middle == nil {
				continue
			}
			result.BOLL[p] = BollBand{Upper: ta.Last(upper, 0), Middle: ta.Last(middle, 0), Lower: ta.Last(lower, 0)}
		}
	}

	if conf.EnableVolume {
		v := ta.Last(volumes, 0)
		avg := ta.Average(volumes)
		result.Volume, result.AvgVolume = &v, &avg
	}

	return result
}

func sortedPeriods(periods []int) []int {
	out := append([]int(nil), periods...)
	sort.Ints(out)
	return out
}

// ValidateIndicators 验证指标数据质量
func (s *IndicatorService) ValidateIndicators(indicators *TimeframeIndicators) []string {
	issues := make([]string, 0)

	if indicators.Price <= 0 {
		issues = append(issues, "invalid price")
	}
	for p, v := range indicators.EMA {
		if v <= 0 {
			issues = append(issues, "invalid EMA"+strconv.Itoa(p))
		}
	}
	for p, v := range indicators.RSI {
		if v < 0 || v > 100 {
			issues = append(issues, "RSI"+strconv.Itoa(p)+" out of range")
		}
	}
	if indicators.Volume != nil && *indicators.Volume < 0 {
		issues = append(issues, "negative volume")
	}

	return issues
}

// DetectMultiTimeframeConfluence 检测多时间框架共振，至少三个时间框架同向才给出方向
func (s *IndicatorService) DetectMultiTimeframeConfluence(indicators map[string]*TimeframeIndicators) (string, int) {
	bullishCount := 0
	bearishCount := 0

	for _, ind := range indicators {
		if ind == nil || ind.MACD == nil || len(ind.EMA) < 2 {
			continue
		}
		periods := make([]int, 0, len(ind.EMA))
		for p := range ind.EMA {
			periods = append(periods, p)
		}
		sort.Ints(periods)
		fast, slow := ind.EMA[periods[0]], ind.EMA[periods[len(periods)-1]]

		if fast > slow && *ind.MACD > 0 {
			bullishCount++
		} else if fast < slow && *ind.MACD < 0 {
			bearishCount++
		}
	}

	if bullishCount >= 3 {
		return "bullish", bullishCount
	} else if bearishCount >= 3 {
		return "bearish", bearishCount
	}

	return "neutral", 0
}
