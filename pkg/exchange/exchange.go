package exchange

import "context"

// MarketData 只读行情接口，提示词预览只需要行情，不涉及下单
type MarketData interface {
	GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*Kline, error)
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
	GetFundingRate(ctx context.Context, symbol string) (float64, error)
	GetOpenInterest(ctx context.Context, symbol string) (float64, error)
	ListSymbols(ctx context.Context) ([]*SymbolInfo, error)
}
