package service

import (
	"context"
	"errors"
	"sync"

	"github.com/dushixiang/prism-studio/pkg/exchange"
	"github.com/dushixiang/prism-studio/pkg/strategy"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// 每个时间框架拉取的K线数量下限，保证指标有足够的预热数据
const minKlineFetch = 120

// ErrMarketDataDisabled 未启用行情数据
var ErrMarketDataDisabled = errors.New("market data is disabled")

// MarketService 市场数据收集服务
type MarketService struct {
	logger *zap.Logger

	market           exchange.MarketData
	indicatorService *IndicatorService
	concurrency      int
}

// NewMarketService 创建市场数据服务，market 为 nil 时只生成不含行情的提示词
func NewMarketService(logger *zap.Logger, market exchange.MarketData, indicatorService *IndicatorService) *MarketService {
	return &MarketService{
		logger:           logger,
		market:           market,
		indicatorService: indicatorService,
		concurrency:      4,
	}
}

// MarketData 单个币种的行情快照
type MarketData struct {
	Symbol       string                          `json:"symbol"`
	CurrentPrice float64                         `json:"current_price"`
	FundingRate  *float64                        `json:"funding_rate,omitempty"`
	OpenInterest *float64                        `json:"open_interest,omitempty"`
	Timeframes   map[string]*TimeframeIndicators `json:"timeframes"`
	Trend        string                          `json:"trend"` // bullish, bearish, neutral
}

// Enabled 是否可以拉取行情
func (s *MarketService) Enabled() bool {
	return s.market != nil
}

// CollectMarketData 按策略的K线与指标配置收集单个币种的数据
func (s *MarketService) CollectMarketData(ctx context.Context, symbol string, conf strategy.Indicators) (*MarketData, error) {
	if s.market == nil {
		return nil, ErrMarketDataDisabled
	}

	timeframes := conf.Klines.SelectedTimeframes
	if len(timeframes) == 0 && conf.Klines.PrimaryTimeframe != "" {
		timeframes = []string{conf.Klines.PrimaryTimeframe}
	}

	limit := conf.Klines.PrimaryCount
	if limit < minKlineFetch {
		limit = minKlineFetch
	}

	marketData := &MarketData{
		Symbol:     symbol,
		Timeframes: make(map[string]*TimeframeIndicators),
	}

	for _, tf := range timeframes {
		klines, err := s.market.GetKlines(ctx, symbol, tf, limit)
		if err != nil {
			s.logger.Error("failed to get klines",
				zap.String("symbol", symbol),
				zap.String("timeframe", tf),
				zap.Error(err))
			continue
		}

		rawCount := 0
		if tf == conf.Klines.PrimaryTimeframe {
			rawCount = conf.Klines.PrimaryCount
		}
		indicators := s.indicatorService.CalculateIndicators(klines, conf, rawCount)
		if indicators == nil {
			continue
		}
		indicators.Timeframe = tf
		marketData.Timeframes[tf] = indicators

		if issues := s.indicatorService.ValidateIndicators(indicators); len(issues) > 0 {
			s.logger.Warn("data quality issues",
				zap.String("symbol", symbol),
				zap.String("timeframe", tf),
				zap.Strings("issues", issues))
		}
	}

	if len(marketData.Timeframes) == 0 {
		return nil, errors.New("no kline data for " + symbol)
	}

	if primary, ok := marketData.Timeframes[conf.Klines.PrimaryTimeframe]; ok {
		marketData.CurrentPrice = primary.Price
	} else if price, err := s.market.GetCurrentPrice(ctx, symbol); err == nil {
		marketData.CurrentPrice = price
	}

	if conf.EnableFundingRate {
		rate, err := s.market.GetFundingRate(ctx, symbol)
		if err != nil {
			s.logger.Warn("failed to get funding rate", zap.String("symbol", symbol), zap.Error(err))
		} else {
			marketData.FundingRate = &rate
		}
	}

	if conf.EnableOI {
		oi, err := s.market.GetOpenInterest(ctx, symbol)
		if err != nil {
			s.logger.Warn("failed to get open interest", zap.String("symbol", symbol), zap.Error(err))
		} else {
			marketData.OpenInterest = &oi
		}
	}

	marketData.Trend, _ = s.indicatorService.DetectMultiTimeframeConfluence(marketData.Timeframes)
	return marketData, nil
}

// CollectAllSymbols 并发收集多个币种，单个失败不影响其他币种
func (s *MarketService) CollectAllSymbols(ctx context.Context, symbols []string, conf strategy.Indicators) (map[string]*MarketData, error) {
	if s.market == nil {
		return nil, ErrMarketDataDisabled
	}

	var mu sync.Mutex
	result := make(map[string]*MarketData, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, symbol := range symbols {
		g.Go(func() error {
			data, err := s.CollectMarketData(gctx, symbol, conf)
			if err != nil {
				s.logger.Error("failed to collect market data",
					zap.String("symbol", symbol),
					zap.Error(err))
				return nil
			}
			mu.Lock()
			result[symbol] = data
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(result) == 0 && len(symbols) > 0 {
		return nil, errors.New("failed to collect market data for any symbol")
	}
	return result, nil
}

// ListTradableSymbols 可交易的 USDT 永续合约
func (s *MarketService) ListTradableSymbols(ctx context.Context) ([]string, error) {
	if s.market == nil {
		return nil, ErrMarketDataDisabled
	}
	symbols, err := s.market.ListSymbols(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		if sym.Tradable() {
			out = append(out, sym.Symbol)
		}
	}
	return out, nil
}
