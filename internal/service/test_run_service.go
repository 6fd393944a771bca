package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dushixiang/prism-studio/internal/models"
	"github.com/dushixiang/prism-studio/internal/repo"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testRunTimeout = 2 * time.Minute

// TestRunService 用指定模型对当前配置跑一次决策，不下单
type TestRunService struct {
	logger *zap.Logger

	promptService  *PromptService
	aiModelService *AIModelService
	testRunLogRepo *repo.TestRunLogRepo
	providers      ProviderFactory
}

// NewTestRunService 创建测试运行服务
func NewTestRunService(logger *zap.Logger, db *gorm.DB, promptService *PromptService, aiModelService *AIModelService, providers ProviderFactory) *TestRunService {
	return &TestRunService{
		logger:         logger,
		promptService:  promptService,
		aiModelService: aiModelService,
		testRunLogRepo: repo.NewTestRunLogRepo(db),
		providers:      providers,
	}
}

// TestRunRequest 测试运行请求
type TestRunRequest struct {
	Config        json.RawMessage `json:"config"`
	PromptVariant string          `json:"prompt_variant"`
	AIModelID     string          `json:"ai_model_id"`
	RunRealAI     bool            `json:"run_real_ai"`
	AccountEquity float64         `json:"account_equity" validate:"gte=0"`
}

// Decision AI 输出的单条决策
type Decision struct {
	Symbol          string  `json:"symbol"`
	Action          string  `json:"action"`
	Leverage        int     `json:"leverage,omitempty"`
	PositionSizeUSD float64 `json:"position_size_usd,omitempty"`
	StopLoss        float64 `json:"stop_loss,omitempty"`
	TakeProfit      float64 `json:"take_profit,omitempty"`
	Confidence      int     `json:"confidence,omitempty"`
	RiskUSD         float64 `json:"risk_usd,omitempty"`
	Reasoning       string  `json:"reasoning,omitempty"`
}

// TestRunResponse 测试运行结果，模型调用失败写入 error 字段
type TestRunResponse struct {
	SystemPrompt  string          `json:"system_prompt"`
	UserPrompt    string          `json:"user_prompt"`
	PromptVariant string          `json:"prompt_variant"`
	Candidates    []CandidateCoin `json:"candidates,omitempty"`
	AIResponse    string          `json:"ai_response,omitempty"`
	Reasoning     string          `json:"reasoning,omitempty"`
	Decisions     []Decision      `json:"decisions,omitempty"`
	DurationMs    int64           `json:"duration_ms,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// Run 生成提示词，run_real_ai 为 true 时调用模型并解析决策
func (s *TestRunService) Run(ctx context.Context, userID string, req TestRunRequest) (*TestRunResponse, error) {
	cfg, err := ParsePreviewConfig(req.Config)
	if err != nil {
		return nil, err
	}
	variant := NormalizeVariant(req.PromptVariant)

	var model *models.AIModel
	if req.RunRealAI {
		model, err = s.aiModelService.GetEnabled(ctx, userID, req.AIModelID)
		if err != nil {
			return nil, err
		}
	}

	resp := &TestRunResponse{
		SystemPrompt:  s.promptService.BuildSystemPrompt(cfg, req.AccountEquity, variant),
		PromptVariant: variant,
	}
	userPrompt, candidates, err := s.promptService.BuildUserPrompt(ctx, cfg, req.AccountEquity)
	if err != nil {
		resp.Error = fmt.Sprintf("failed to build user prompt: %v", err)
		return resp, nil
	}
	resp.UserPrompt = userPrompt
	resp.Candidates = candidates

	if !req.RunRealAI {
		return resp, nil
	}

	s.callModel(ctx, model, resp)

	log := &models.TestRunLog{
		ID:            ulid.Make().String(),
		UserID:        userID,
		AIModelID:     model.ID,
		Provider:      model.Provider,
		Model:         model.Model,
		PromptVariant: variant,
		SystemPrompt:  resp.SystemPrompt,
		UserPrompt:    resp.UserPrompt,
		Response:      resp.AIResponse,
		DecisionCount: len(resp.Decisions),
		Duration:      resp.DurationMs,
		Error:         resp.Error,
		ExecutedAt:    time.Now(),
	}
	if err := s.testRunLogRepo.Create(ctx, log); err != nil {
		s.logger.Error("failed to save test run log", zap.Error(err))
	}
	return resp, nil
}

func (s *TestRunService) callModel(ctx context.Context, model *models.AIModel, resp *TestRunResponse) {
	provider, err := s.providers(ctx, model)
	if err != nil {
		resp.Error = err.Error()
		return
	}

	ctx, cancel := context.WithTimeout(ctx, testRunTimeout)
	defer cancel()

	start := time.Now()
	text, err := provider.Complete(ctx, resp.SystemPrompt, resp.UserPrompt)
	resp.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		s.logger.Error("test run failed",
			zap.String("provider", model.Provider),
			zap.String("model", model.Model),
			zap.Int64("duration_ms", resp.DurationMs),
			zap.Error(err))
		resp.Error = err.Error()
		return
	}
	resp.AIResponse = text

	reasoning, decisions, err := ParseDecisionResponse(text)
	resp.Reasoning = reasoning
	resp.Decisions = decisions
	if err != nil {
		resp.Error = err.Error()
	}
	s.logger.Info("test run completed",
		zap.String("provider", model.Provider),
		zap.String("model", model.Model),
		zap.Int("decisions", len(decisions)),
		zap.Int64("duration_ms", resp.DurationMs))
}

// RecentLogs 最近的测试记录
func (s *TestRunService) RecentLogs(ctx context.Context, userID string, limit int) ([]models.TestRunLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.testRunLogRepo.FindRecentByUser(ctx, userID, limit)
}

var (
	reasoningPattern = regexp.MustCompile(`(?s)<reasoning>(.*?)</reasoning>`)
	decisionPattern  = regexp.MustCompile(`(?s)<decision>(.*?)</decision>`)
	fencePattern     = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
)

// ErrNoDecision 模型输出中找不到决策 JSON
var ErrNoDecision = errors.New("no decision JSON found in model response")

// ParseDecisionResponse 拆分 <reasoning> 与 <decision>，没有标签时从全文中查找 JSON 数组
func ParseDecisionResponse(text string) (string, []Decision, error) {
	var reasoning string
	if m := reasoningPattern.FindStringSubmatch(text); m != nil {
		reasoning = strings.TrimSpace(m[1])
	}

	body := text
	if m := decisionPattern.FindStringSubmatch(text); m != nil {
		body = m[1]
	} else if reasoning == "" {
		if idx := strings.Index(text, "["); idx > 0 {
			reasoning = strings.TrimSpace(text[:idx])
		}
	}
	if m := fencePattern.FindStringSubmatch(body); m != nil {
		body = m[1]
	}

	start := strings.Index(body, "[")
	end := strings.LastIndex(body, "]")
	if start < 0 || end <= start {
		return reasoning, nil, ErrNoDecision
	}

	var decisions []Decision
	if err := json.Unmarshal([]byte(body[start:end+1]), &decisions); err != nil {
		return reasoning, nil, fmt.Errorf("invalid decision JSON: %w", err)
	}
	return reasoning, decisions, nil
}
