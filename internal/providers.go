package internal

import (
	"net/http"
	"time"

	"github.com/dushixiang/prism-studio/internal/config"
	"github.com/dushixiang/prism-studio/internal/telegram"
	"github.com/dushixiang/prism-studio/pkg/exchange"
	"github.com/dushixiang/prism-studio/pkg/nostd"
	"go.uber.org/zap"
)

const telegramHTTPTimeout = 10 * time.Second

// provideTelegram provides telegram instance
func provideTelegram(logger *zap.Logger, conf *config.Config) *telegram.Telegram {
	if !conf.Telegram.Enabled {
		return nil
	}

	httpClient := &http.Client{Timeout: telegramHTTPTimeout}

	tg, err := telegram.NewTelegram(logger, telegram.Settings{
		Token:  conf.Telegram.Token,
		Client: httpClient,
	})
	if err != nil {
		logger.Error("failed to init telegram", zap.Error(err))
		return nil
	}

	return tg
}

// provideMarketData provides read-only Binance futures market data, nil when disabled
func provideMarketData(conf *config.Config, logger *zap.Logger) exchange.MarketData {
	if !conf.Binance.Enabled {
		logger.Info("Binance market data disabled; prompt previews will not include market snapshots")
		return nil
	}

	client := exchange.NewBinanceClient(
		conf.Binance.APIKey,
		conf.Binance.Secret,
		conf.Binance.ProxyURL,
		conf.Binance.Testnet,
	)

	logger.Info("Binance client initialized",
		zap.Bool("testnet", conf.Binance.Testnet),
		zap.Bool("has_credentials", conf.Binance.APIKey != "" && conf.Binance.Secret != ""),
	)
	return client
}

// provideValidator provides the echo validator with en/zh/es translations
func provideValidator() (*nostd.CustomValidator, error) {
	return nostd.NewCustomValidator()
}
