package config

type Config struct {
	Auth     AuthConf     `json:"auth"`
	Telegram TelegramConf `json:"telegram"`
	Binance  BinanceConf  `json:"binance"`
	LLM      LlmConf      `json:"llm"`
	Gemini   GeminiConf   `json:"gemini"`
	CoinPool CoinPoolConf `json:"coin_pool"`
	Studio   StudioConf   `json:"studio"`
}

type AuthConf struct {
	JWTSecret     string `json:"jwt_secret"`      // 为空时每次启动随机生成
	TokenTTLHours int    `json:"token_ttl_hours"` // 默认24
}

type TelegramConf struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	ChatID  string `json:"chat_id"`
}

type BinanceConf struct {
	Enabled  bool   `json:"enabled"`   // 是否在提示词预览中拉取行情
	APIKey   string `json:"api_key"`
	Secret   string `json:"secret"`
	ProxyURL string `json:"proxy_url"` // 代理地址，例如: http://127.0.0.1:7890
	Testnet  bool   `json:"testnet"`   // 是否使用测试网
}

// LlmConf OpenAI 兼容接口的默认配置，AI 模型未填写时使用
type LlmConf struct {
	BaseURL  string `json:"base_url"`  // LLM API基础URL
	APIKey   string `json:"api_key"`   // LLM API密钥
	Model    string `json:"model"`     // 模型名称
	ProxyURL string `json:"proxy_url"` // 代理地址，例如: http://127.0.0.1:7890
}

type GeminiConf struct {
	APIKey string `json:"api_key"`
}

type CoinPoolConf struct {
	AI500URL       string `json:"ai500_url"`
	OITopURL       string `json:"oi_top_url"`
	RefreshCron    string `json:"refresh_cron"`    // 默认 */5 * * * *
	TimeoutSeconds int    `json:"timeout_seconds"` // 默认10
}

type StudioConf struct {
	DefaultLanguage      string  `json:"default_language"`
	DefaultAccountEquity float64 `json:"default_account_equity"` // 预览时未提供账户净值的默认值
}
