package exchange

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/futures"
)

// BinanceClient Binance期货行情客户端
type BinanceClient struct {
	client *futures.Client

	symbolsLock    sync.RWMutex
	symbols        []*SymbolInfo
	symbolsUpdated time.Time
}

var _ MarketData = (*BinanceClient)(nil)

// NewBinanceClient 创建Binance客户端，行情接口不要求密钥
func NewBinanceClient(apiKey, secretKey, proxyURL string, testnet bool) *BinanceClient {
	var client *futures.Client
	if proxyURL != "" {
		client = futures.NewProxiedClient(apiKey, secretKey, proxyURL)
	} else {
		client = futures.NewClient(apiKey, secretKey)
	}

	if testnet {
		futures.UseTestnet = true
	}

	return &BinanceClient{
		client: client,
	}
}

// GetKlines 获取K线数据
func (b *BinanceClient) GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*Kline, error) {
	klines, err := b.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to get klines: %w", err)
	}

	result := make([]*Kline, 0, len(klines))
	for _, k := range klines {
		open, _ := strconv.ParseFloat(k.Open, 64)
		high, _ := strconv.ParseFloat(k.High, 64)
		low, _ := strconv.ParseFloat(k.Low, 64)
		closePrice, _ := strconv.ParseFloat(k.Close, 64)
		volume, _ := strconv.ParseFloat(k.Volume, 64)

		result = append(result, &Kline{
			OpenTime:  time.UnixMilli(k.OpenTime),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
			CloseTime: time.UnixMilli(k.CloseTime),
		})
	}

	return result, nil
}

// GetCurrentPrice 获取当前价格
func (b *BinanceClient) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get current price: %w", err)
	}

	if len(prices) == 0 {
		return 0, fmt.Errorf("no price data for symbol %s", symbol)
	}

	price, _ := strconv.ParseFloat(prices[0].Price, 64)
	return price, nil
}

// GetFundingRate 获取资金费率
func (b *BinanceClient) GetFundingRate(ctx context.Context, symbol string) (float64, error) {
	rates, err := b.client.NewFundingRateService().
		Symbol(symbol).
		Limit(1).
		Do(ctx)

	if err != nil {
		return 0, fmt.Errorf("failed to get funding rate: %w", err)
	}

	if len(rates) == 0 {
		return 0, fmt.Errorf("no funding rate data for symbol %s", symbol)
	}

	rate, _ := strconv.ParseFloat(rates[0].FundingRate, 64)
	return rate, nil
}

// GetOpenInterest 获取持仓量（合约张数）
func (b *BinanceClient) GetOpenInterest(ctx context.Context, symbol string) (float64, error) {
	oi, err := b.client.NewGetOpenInterestService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get open interest: %w", err)
	}
	value, _ := strconv.ParseFloat(oi.OpenInterest, 64)
	return value, nil
}

// ListSymbols 获取所有交易对，缓存5分钟
func (b *BinanceClient) ListSymbols(ctx context.Context) ([]*SymbolInfo, error) {
	b.symbolsLock.RLock()
	if len(b.symbols) > 0 && time.Since(b.symbolsUpdated) < 5*time.Minute {
		symbols := b.symbols
		b.symbolsLock.RUnlock()
		return symbols, nil
	}
	b.symbolsLock.RUnlock()

	exchangeInfo, err := b.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange info: %w", err)
	}

	symbols := make([]*SymbolInfo, 0, len(exchangeInfo.Symbols))
	for _, s := range exchangeInfo.Symbols {
		symbols = append(symbols, &SymbolInfo{
			Symbol:       s.Symbol,
			BaseAsset:    s.BaseAsset,
			QuoteAsset:   s.QuoteAsset,
			ContractType: string(s.ContractType),
			Status:       s.Status,
		})
	}

	b.symbolsLock.Lock()
	b.symbols = symbols
	b.symbolsUpdated = time.Now()
	b.symbolsLock.Unlock()

	return symbols, nil
}
