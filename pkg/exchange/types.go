package exchange

import "time"

// Kline K线数据
type Kline struct {
	OpenTime  time.Time `json:"open_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	CloseTime time.Time `json:"close_time"`
}

// SymbolInfo 交易对信息
type SymbolInfo struct {
	Symbol       string `json:"symbol"`
	BaseAsset    string `json:"base_asset"`
	QuoteAsset   string `json:"quote_asset"`
	ContractType string `json:"contract_type"` // PERPETUAL, CURRENT_QUARTER ...
	Status       string `json:"status"`        // TRADING, SETTLING ...
}

// Tradable 是否为可交易的 USDT 永续合约
func (s SymbolInfo) Tradable() bool {
	return s.Status == "TRADING" && s.ContractType == "PERPETUAL" && s.QuoteAsset == "USDT"
}

// Closes 提取收盘价
func Closes(klines []*Kline) []float64 {
	out := make([]float64, len(klines))
	for i, k := range klines {
		out[i] = k.Close
	}
	return out
}

// HLCV 提取最高价、最低价、收盘价与成交量
func HLCV(klines []*Kline) (highs, lows, closes, volumes []float64) {
	highs = make([]float64, len(klines))
	lows = make([]float64, len(klines))
	closes = make([]float64, len(klines))
	volumes = make([]float64, len(klines))
	for i, k := range klines {
		highs[i] = k.High
		lows[i] = k.Low
		closes[i] = k.Close
		volumes[i] = k.Volume
	}
	return
}
