package strategy

import (
	"strings"
)

// NonCryptoPrefix 非加密资产（股票、外汇、商品、指数）所在的命名空间前缀
const NonCryptoPrefix = "xyz:"

const quoteAsset = "USDT"

// nonCryptoAssets 识别为非加密资产的代码
var nonCryptoAssets = map[string]struct{}{
	// 美股
	"TSLA": {}, "NVDA": {}, "AAPL": {}, "MSFT": {}, "GOOGL": {}, "AMZN": {}, "META": {},
	"AMD": {}, "COIN": {}, "MSTR": {}, "NFLX": {}, "PLTR": {}, "HOOD": {}, "INTC": {},
	"CRCL": {}, "ORCL": {},
	// 外汇
	"EURUSD": {}, "GBPUSD": {}, "USDJPY": {}, "AUDUSD": {}, "USDCAD": {}, "USDCHF": {},
	// 商品
	"GOLD": {}, "SILVER": {}, "OIL": {}, "COPPER": {}, "NATGAS": {}, "XAU": {}, "XAG": {},
	// 指数
	"SPX": {}, "NDX": {}, "DJI": {}, "XYZ100": {},
}

// IsNonCrypto 判断代码是否属于非加密资产
func IsNonCrypto(ticker string) bool {
	_, ok := nonCryptoAssets[strings.ToUpper(ticker)]
	return ok
}

// NormalizeSymbol 将用户输入的币种转换为规范形式：
// 加密资产为大写 + USDT 后缀，非加密资产为 xyz: 前缀且无后缀。
// 函数是幂等的。
func NormalizeSymbol(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if len(s) >= len(NonCryptoPrefix) && strings.EqualFold(s[:len(NonCryptoPrefix)], NonCryptoPrefix) {
		ticker := cleanTicker(s[len(NonCryptoPrefix):])
		if ticker == "" {
			return ""
		}
		return NonCryptoPrefix + ticker
	}

	ticker := cleanTicker(s)
	if ticker == "" {
		return ""
	}
	if IsNonCrypto(ticker) {
		return NonCryptoPrefix + ticker
	}
	if strings.HasSuffix(ticker, quoteAsset) && len(ticker) > len(quoteAsset) {
		return ticker
	}
	return ticker + quoteAsset
}

func cleanTicker(s string) string {
	s = strings.ToUpper(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '-', '_', ' ', '\t':
			return -1
		}
		return r
	}, s)
}

// NormalizeSymbols 规范化并去重，保持原有顺序，丢弃空值
func NormalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, raw := range symbols {
		sym := NormalizeSymbol(raw)
		if sym == "" {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}

// DisplaySymbol 用于界面展示的短名称
func DisplaySymbol(symbol string) string {
	if strings.HasPrefix(symbol, NonCryptoPrefix) {
		return strings.TrimPrefix(symbol, NonCryptoPrefix)
	}
	return strings.TrimSuffix(symbol, quoteAsset)
}

// IsMajor 判断是否为 BTC/ETH，用于区分杠杆档位
func IsMajor(symbol string) bool {
	switch NormalizeSymbol(symbol) {
	case "BTCUSDT", "ETHUSDT":
		return true
	}
	return false
}
