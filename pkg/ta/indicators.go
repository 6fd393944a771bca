package ta

import "github.com/markcheno/go-talib"

// 以下函数返回与输入等长的序列，前 period 个值为 0

func EMA(closes []float64, period int) []float64 {
	if !enough(closes, period) {
		return nil
	}
	return talib.Ema(closes, period)
}

// MACD 返回 macd, signal, hist
func MACD(closes []float64, fast, slow, signal int) ([]float64, []float64, []float64) {
	if !enough(closes, slow+signal) {
		return nil, nil, nil
	}
	return talib.Macd(closes, fast, slow, signal)
}

func RSI(closes []float64, period int) []float64 {
	if !enough(closes, period+1) {
		return nil
	}
	return talib.Rsi(closes, period)
}

func ATR(highs, lows, closes []float64, period int) []float64 {
	if !enough(closes, period+1) || len(highs) != len(closes) || len(lows) != len(closes) {
		return nil
	}
	return talib.Atr(highs, lows, closes, period)
}

// BOLL 布林带，2倍标准差，返回 upper, middle, lower
func BOLL(closes []float64, period int) ([]float64, []float64, []float64) {
	if !enough(closes, period) {
		return nil, nil, nil
	}
	return talib.BBands(closes, period, 2, 2, talib.SMA)
}

func enough(s []float64, period int) bool {
	return period > 0 && len(s) > period
}
