package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/dushixiang/prism-studio/internal/config"
	"github.com/dushixiang/prism-studio/pkg/strategy"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	CoinTagStatic = "static"
	CoinTagAI500  = "ai500"
	CoinTagOITop  = "oi_top"
)

// CandidateCoin 候选币种及其来源
type CandidateCoin struct {
	Symbol  string   `json:"symbol"`
	Sources []string `json:"sources"`
}

// CoinPoolStatus 币池缓存状态
type CoinPoolStatus struct {
	AI500Count int       `json:"ai500_count"`
	OITopCount int       `json:"oi_top_count"`
	UpdatedAt  time.Time `json:"updated_at"`
	LastError  string    `json:"last_error,omitempty"`
	IsRunning  bool      `json:"is_running"`
}

// CoinPoolService AI500 与 OI Top 币池，定时刷新并缓存
type CoinPoolService struct {
	logger *zap.Logger
	client *http.Client

	ai500URL string
	oiTopURL string
	cronExpr string

	mu        sync.RWMutex
	ai500     []string
	oiTop     []string
	updatedAt time.Time
	lastErr   error

	cron      *cron.Cron
	isRunning bool
}

// NewCoinPoolService 创建币池服务
func NewCoinPoolService(logger *zap.Logger, conf *config.Config) *CoinPoolService {
	timeout := conf.CoinPool.TimeoutSeconds
	if timeout <= 0 {
		timeout = 10
	}
	cronExpr := conf.CoinPool.RefreshCron
	if cronExpr == "" {
		cronExpr = "*/5 * * * *"
	}
	return &CoinPoolService{
		logger:   logger,
		client:   &http.Client{Timeout: time.Duration(timeout) * time.Second},
		ai500URL: conf.CoinPool.AI500URL,
		oiTopURL: conf.CoinPool.OITopURL,
		cronExpr: cronExpr,
	}
}

// Start 启动定时刷新，立即执行一次
func (s *CoinPoolService) Start() error {
	if s.IsRunning() {
		return fmt.Errorf("coin pool refresher is already running")
	}
	if s.ai500URL == "" && s.oiTopURL == "" {
		s.logger.Info("coin pool urls not configured, refresher disabled")
		return nil
	}

	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.cronExpr, func() {
		if err := s.Refresh(context.Background()); err != nil {
			s.logger.Error("coin pool refresh failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.cron.Start()

	s.mu.Lock()
	s.isRunning = true
	s.mu.Unlock()

	s.logger.Info("coin pool refresher started", zap.String("cron_expression", s.cronExpr))

	go func() {
		if err := s.Refresh(context.Background()); err != nil {
			s.logger.Error("first coin pool refresh failed", zap.Error(err))
		}
	}()
	return nil
}

// Stop 停止定时刷新，等待正在执行的任务完成
func (s *CoinPoolService) Stop() {
	if !s.IsRunning() {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()

	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()
	s.logger.Info("coin pool refresher stopped")
}

// IsRunning 定时刷新是否在运行
func (s *CoinPoolService) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Refresh 拉取两个币池，任一失败都会记录但不清空旧缓存
func (s *CoinPoolService) Refresh(ctx context.Context) error {
	var errs []error

	var ai500, oiTop []string
	if s.ai500URL != "" {
		coins, err := s.fetchAI500(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("ai500: %w", err))
		} else {
			ai500 = coins
		}
	}
	if s.oiTopURL != "" {
		coins, err := s.fetchOITop(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("oi_top: %w", err))
		} else {
			oiTop = coins
		}
	}

	err := errors.Join(errs...)

	s.mu.Lock()
	if ai500 != nil {
		s.ai500 = ai500
	}
	if oiTop != nil {
		s.oiTop = oiTop
	}
	if ai500 != nil || oiTop != nil {
		s.updatedAt = time.Now()
	}
	s.lastErr = err
	s.mu.Unlock()

	s.logger.Debug("coin pool refreshed",
		zap.Int("ai500", len(ai500)),
		zap.Int("oi_top", len(oiTop)),
		zap.Error(err))
	return err
}

// Status 缓存状态
func (s *CoinPoolService) Status() CoinPoolStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status := CoinPoolStatus{
		AI500Count: len(s.ai500),
		OITopCount: len(s.oiTop),
		UpdatedAt:  s.updatedAt,
		IsRunning:  s.isRunning,
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	return status
}

func (s *CoinPoolService) cached(ctx context.Context, pick func() []string) ([]string, error) {
	s.mu.RLock()
	coins := pick()
	s.mu.RUnlock()
	if len(coins) > 0 {
		return coins, nil
	}
	err := s.Refresh(ctx)
	s.mu.RLock()
	coins = pick()
	s.mu.RUnlock()
	if len(coins) == 0 && err != nil {
		return nil, err
	}
	return coins, nil
}

// AI500 评分最高的 limit 个币种
func (s *CoinPoolService) AI500(ctx context.Context, limit int) ([]string, error) {
	if s.ai500URL == "" {
		return nil, errors.New("ai500 url is not configured")
	}
	coins, err := s.cached(ctx, func() []string { return s.ai500 })
	if err != nil {
		return nil, err
	}
	return head(coins, limit), nil
}

// OITop 持仓量增长最多的 limit 个币种
func (s *CoinPoolService) OITop(ctx context.Context, limit int) ([]string, error) {
	if s.oiTopURL == "" {
		return nil, errors.New("oi top url is not configured")
	}
	coins, err := s.cached(ctx, func() []string { return s.oiTop })
	if err != nil {
		return nil, err
	}
	return head(coins, limit), nil
}

func head(coins []string, limit int) []string {
	if limit > 0 && len(coins) > limit {
		coins = coins[:limit]
	}
	return append([]string(nil), coins...)
}

// ResolveCandidates 按币种来源配置解析候选币种，排除列表优先，结果按首次出现的顺序排列
func (s *CoinPoolService) ResolveCandidates(ctx context.Context, src strategy.CoinSource) ([]CandidateCoin, error) {
	excluded := make(map[string]struct{}, len(src.ExcludedCoins))
	for _, c := range src.ExcludedCoins {
		excluded[strategy.NormalizeSymbol(c)] = struct{}{}
	}

	var order []string
	sources := make(map[string][]string)
	add := func(symbol, tag string) {
		symbol = strategy.NormalizeSymbol(symbol)
		if symbol == "" {
			return
		}
		if _, skip := excluded[symbol]; skip {
			return
		}
		if _, seen := sources[symbol]; !seen {
			order = append(order, symbol)
		}
		for _, t := range sources[symbol] {
			if t == tag {
				return
			}
		}
		sources[symbol] = append(sources[symbol], tag)
	}

	switch src.SourceType {
	case strategy.SourceStatic:
		for _, c := range src.StaticCoins {
			add(c, CoinTagStatic)
		}
	case strategy.SourceAI500:
		coins, err := s.AI500(ctx, src.AI500Limit)
		if err != nil {
			return nil, err
		}
		for _, c := range coins {
			add(c, CoinTagAI500)
		}
	case strategy.SourceOITop:
		coins, err := s.OITop(ctx, src.OITopLimit)
		if err != nil {
			return nil, err
		}
		for _, c := range coins {
			add(c, CoinTagOITop)
		}
	case strategy.SourceMixed:
		if src.UseAI500 {
			coins, err := s.AI500(ctx, src.AI500Limit)
			if err != nil {
				s.logger.Warn("failed to get ai500 coin pool", zap.Error(err))
			}
			for _, c := range coins {
				add(c, CoinTagAI500)
			}
		}
		if src.UseOITop {
			coins, err := s.OITop(ctx, src.OITopLimit)
			if err != nil {
				s.logger.Warn("failed to get oi top coins", zap.Error(err))
			}
			for _, c := range coins {
				add(c, CoinTagOITop)
			}
		}
		for _, c := range src.StaticCoins {
			add(c, CoinTagStatic)
		}
	default:
		return nil, fmt.Errorf("unknown coin source type: %s", src.SourceType)
	}

	out := make([]CandidateCoin, 0, len(order))
	for _, symbol := range order {
		out = append(out, CandidateCoin{Symbol: symbol, Sources: sources[symbol]})
	}
	return out, nil
}

type ai500Response struct {
	Success bool `json:"success"`
	Data    struct {
		Coins []struct {
			Pair  string  `json:"pair"`
			Score float64 `json:"score"`
		} `json:"coins"`
	} `json:"data"`
}

type oiTopResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Positions []struct {
			Symbol string `json:"symbol"`
		} `json:"positions"`
	} `json:"data"`
}

func (s *CoinPoolService) fetchAI500(ctx context.Context) ([]string, error) {
	var resp ai500Response
	if err := s.getJSON(ctx, s.ai500URL, &resp); err != nil {
		return nil, err
	}
	coins := make([]string, 0, len(resp.Data.Coins))
	for _, c := range resp.Data.Coins {
		coins = append(coins, c.Pair)
	}
	return strategy.NormalizeSymbols(coins), nil
}

func (s *CoinPoolService) fetchOITop(ctx context.Context) ([]string, error) {
	var resp oiTopResponse
	if err := s.getJSON(ctx, s.oiTopURL, &resp); err != nil {
		return nil, err
	}
	coins := make([]string, 0, len(resp.Data.Positions))
	for _, p := range resp.Data.Positions {
		coins = append(coins, p.Symbol)
	}
	return strategy.NormalizeSymbols(coins), nil
}

func (s *CoinPoolService) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncateString(string(body), 200))
	}
	return json.Unmarshal(body, v)
}

// truncateString 截断字符串
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
