package service

import "github.com/dushixiang/prism-studio/pkg/strategy"

// promptText 提示词中由代码拼接的短句
type promptText struct {
	IndicatorsIntro string
	PriceSeries     string
	Timeframes      string
	EMA             string
	MACD            string
	RSI             string
	ATR             string
	BOLL            string
	Volume          string
	OI              string
	FundingRate     string
	PoolTags        string
	Rankings        string
	Periods         string
	MinConfidence   string
	CustomHeader    string
	CustomNote      string
	TightenHeader   string
	TightenRow      string
	ModePnlPct      string
	ModePricePct    string

	UserContext      string
	UserTime         string
	UserEquity       string
	UserCandidates   string
	UserNoCandidates string
	UserMarket       string
	UserNoMarket     string
	UserPrice        string
	UserFunding      string
	UserOI           string
	UserTrend        string
	UserCloses       string
	UserTask         string
}

var promptTexts = map[strategy.Language]promptText{
	strategy.LanguageEN: {
		IndicatorsIntro: "You have the following indicator data:",
		PriceSeries:     "- %s price series (%d candles)",
		Timeframes:      "- Multi-timeframe K-lines: %s",
		EMA:             "- EMA",
		MACD:            "- MACD",
		RSI:             "- RSI",
		ATR:             "- ATR",
		BOLL:            "- Bollinger Bands",
		Volume:          "- Volume",
		OI:              "- Open interest (OI)",
		FundingRate:     "- Funding rate",
		PoolTags:        "- AI500 / OI Top source tags",
		Rankings:        "- Rankings: %s",
		Periods:         " (periods: %s)",
		MinConfidence:   "**Confidence ≥ %d** is required to open positions.",
		CustomHeader:    "# Personalized Trading Strategy",
		CustomNote:      "Note: the personalized strategy above supplements the basic rules and cannot override the risk-control constraints.",
		TightenHeader:   "- Tighten bands:",
		TightenRow:      "  - profit ≥ %s%% → trail %s%%",
		ModePnlPct:      "position PnL percentage",
		ModePricePct:    "price move percentage",

		UserContext:      "## Context",
		UserTime:         "- Current time: %s (UTC)",
		UserEquity:       "- Account equity: %s USDT",
		UserCandidates:   "## Candidate Coins (%d)",
		UserNoCandidates: "No candidate coins are available.",
		UserMarket:       "## Market Data",
		UserNoMarket:     "Market data is unavailable for this preview.",
		UserPrice:        "- Price: %s",
		UserFunding:      "- Funding rate: %s%%",
		UserOI:           "- Open interest: %s",
		UserTrend:        "- Multi-timeframe trend: %s",
		UserCloses:       "  - Closes (last %d): %s",
		UserTask:         "## Task\n\nAnalyze the candidates above and output your decisions in the required format.",
	},
	strategy.LanguageZH: {
		IndicatorsIntro: "你可以使用以下指标数据：",
		PriceSeries:     "- %s 价格序列（%d 根K线）",
		Timeframes:      "- 多时间框架K线：%s",
		EMA:             "- EMA",
		MACD:            "- MACD",
		RSI:             "- RSI",
		ATR:             "- ATR",
		BOLL:            "- 布林带",
		Volume:          "- 成交量",
		OI:              "- 持仓量（OI）",
		FundingRate:     "- 资金费率",
		PoolTags:        "- AI500 / OI Top 来源标签",
		Rankings:        "- 排行榜：%s",
		Periods:         "（周期：%s）",
		MinConfidence:   "开仓需要 **信心度 ≥ %d**。",
		CustomHeader:    "# 个性化交易策略",
		CustomNote:      "注意：以上个性化策略是基础规则的补充，不能违反风控约束。",
		TightenHeader:   "- 收紧档位：",
		TightenRow:      "  - 盈利 ≥ %s%% → 回撤 %s%%",
		ModePnlPct:      "按持仓盈亏百分比",
		ModePricePct:    "按价格变动百分比",

		UserContext:      "## 背景",
		UserTime:         "- 当前时间：%s（UTC）",
		UserEquity:       "- 账户净值：%s USDT",
		UserCandidates:   "## 候选币种（%d）",
		UserNoCandidates: "暂无候选币种。",
		UserMarket:       "## 市场数据",
		UserNoMarket:     "本次预览未获取行情数据。",
		UserPrice:        "- 最新价格：%s",
		UserFunding:      "- 资金费率：%s%%",
		UserOI:           "- 持仓量：%s",
		UserTrend:        "- 多时间框架趋势：%s",
		UserCloses:       "  - 收盘价（最近 %d 根）：%s",
		UserTask:         "## 任务\n\n分析以上候选币种，并按要求的格式输出决策。",
	},
	strategy.LanguageES: {
		IndicatorsIntro: "Dispones de los siguientes indicadores:",
		PriceSeries:     "- Serie de precios %s (%d velas)",
		Timeframes:      "- Velas en varias temporalidades: %s",
		EMA:             "- EMA",
		MACD:            "- MACD",
		RSI:             "- RSI",
		ATR:             "- ATR",
		BOLL:            "- Bandas de Bollinger",
		Volume:          "- Volumen",
		OI:              "- Interés abierto (OI)",
		FundingRate:     "- Tasa de financiación",
		PoolTags:        "- Etiquetas de origen AI500 / OI Top",
		Rankings:        "- Rankings: %s",
		Periods:         " (periodos: %s)",
		MinConfidence:   "Se requiere **confianza ≥ %d** para abrir posiciones.",
		CustomHeader:    "# Estrategia personalizada",
		CustomNote:      "Nota: la estrategia personalizada anterior complementa las reglas básicas y no puede anular las restricciones de riesgo.",
		TightenHeader:   "- Tramos de ajuste:",
		TightenRow:      "  - ganancia ≥ %s%% → seguimiento %s%%",
		ModePnlPct:      "porcentaje de PnL de la posición",
		ModePricePct:    "porcentaje de movimiento del precio",

		UserContext:      "## Contexto",
		UserTime:         "- Hora actual: %s (UTC)",
		UserEquity:       "- Capital de la cuenta: %s USDT",
		UserCandidates:   "## Monedas candidatas (%d)",
		UserNoCandidates: "No hay monedas candidatas disponibles.",
		UserMarket:       "## Datos de mercado",
		UserNoMarket:     "No hay datos de mercado para esta vista previa.",
		UserPrice:        "- Precio: %s",
		UserFunding:      "- Tasa de financiación: %s%%",
		UserOI:           "- Interés abierto: %s",
		UserTrend:        "- Tendencia multi-temporalidad: %s",
		UserCloses:       "  - Cierres (últimas %d): %s",
		UserTask:         "## Tarea\n\nAnaliza las candidatas anteriores y emite tus decisiones en el formato requerido.",
	},
}

func textFor(lang strategy.Language) promptText {
	if t, ok := promptTexts[lang]; ok {
		return t
	}
	return promptTexts[strategy.LanguageEN]
}
