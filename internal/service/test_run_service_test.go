package service

import (
	"context"
	"errors"
	"testing"

	"github.com/dushixiang/prism-studio/internal/config"
	"github.com/dushixiang/prism-studio/internal/models"
	"github.com/dushixiang/prism-studio/internal/xe"
	"github.com/dushixiang/prism-studio/pkg/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	reply  string
	err    error
	system string
	user   string
}

func (f *fakeProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.system = systemPrompt
	f.user = userPrompt
	return f.reply, f.err
}

func newTestRunFixture(t *testing.T, provider *fakeProvider) (*TestRunService, *AIModelService) {
	t.Helper()
	db := newTestDB(t)
	conf := &config.Config{}
	prompts := NewPromptService(zap.NewNop(), conf, NewCoinPoolService(zap.NewNop(), conf), nil)
	modelService := NewAIModelService(zap.NewNop(), db)
	factory := func(ctx context.Context, m *models.AIModel) (ChatProvider, error) {
		return provider, nil
	}
	return NewTestRunService(zap.NewNop(), db, prompts, modelService, factory), modelService
}

func staticConfig(t *testing.T) []byte {
	cfg := strategy.DefaultConfig(strategy.LanguageEN)
	cfg.CoinSource.SourceType = strategy.SourceStatic
	cfg.CoinSource.StaticCoins = []string{"BTCUSDT", "ETHUSDT"}
	return mustJSON(t, cfg)
}

const sampleReply = "<reasoning>\nBTC is trending down.\n</reasoning>\n\n<decision>\n```json\n" +
	`[{"symbol":"BTCUSDT","action":"open_short","leverage":5,"position_size_usd":500,"stop_loss":97000,"take_profit":91000,"confidence":85,"risk_usd":30},{"symbol":"ETHUSDT","action":"wait"}]` +
	"\n```\n</decision>"

func TestParseDecisionResponseTagged(t *testing.T) {
	reasoning, decisions, err := ParseDecisionResponse(sampleReply)
	require.NoError(t, err)
	assert.Equal(t, "BTC is trending down.", reasoning)
	require.Len(t, decisions, 2)
	assert.Equal(t, "open_short", decisions[0].Action)
	assert.Equal(t, 5, decisions[0].Leverage)
	assert.Equal(t, 85, decisions[0].Confidence)
	assert.Equal(t, "wait", decisions[1].Action)
}

func TestParseDecisionResponseUntagged(t *testing.T) {
	reasoning, decisions, err := ParseDecisionResponse(`Market is flat. [{"symbol":"SOLUSDT","action":"hold"}]`)
	require.NoError(t, err)
	assert.Equal(t, "Market is flat.", reasoning)
	require.Len(t, decisions, 1)
	assert.Equal(t, "SOLUSDT", decisions[0].Symbol)
}

func TestParseDecisionResponseErrors(t *testing.T) {
	_, _, err := ParseDecisionResponse("<reasoning>nothing to do</reasoning>")
	assert.ErrorIs(t, err, ErrNoDecision)

	_, _, err = ParseDecisionResponse("<decision>[{\"symbol\":}]</decision>")
	assert.Error(t, err)
}

func TestTestRunPromptsOnly(t *testing.T) {
	provider := &fakeProvider{reply: sampleReply}
	s, _ := newTestRunFixture(t, provider)

	resp, err := s.Run(context.Background(), "user-a", TestRunRequest{Config: staticConfig(t), PromptVariant: "nope"})
	require.NoError(t, err)
	assert.Equal(t, VariantBalanced, resp.PromptVariant)
	assert.NotEmpty(t, resp.SystemPrompt)
	assert.Contains(t, resp.UserPrompt, "BTCUSDT")
	assert.Empty(t, resp.AIResponse)
	assert.Empty(t, provider.system)
}

func TestTestRunRequiresEnabledModel(t *testing.T) {
	s, modelService := newTestRunFixture(t, &fakeProvider{})
	ctx := context.Background()

	_, err := s.Run(ctx, "user-a", TestRunRequest{Config: staticConfig(t), RunRealAI: true})
	assert.ErrorIs(t, err, xe.ErrModelNotFound)

	items, err := modelService.Update(ctx, "user-a", UpdateModelsRequest{Models: []AIModelRequest{
		{Name: "gpt", Provider: "openai", Model: "gpt-4o-mini", Enabled: false},
	}})
	require.NoError(t, err)

	_, err = s.Run(ctx, "user-a", TestRunRequest{Config: staticConfig(t), RunRealAI: true, AIModelID: items[0].ID})
	assert.ErrorIs(t, err, xe.ErrModelDisabled)

	_, err = s.Run(ctx, "user-b", TestRunRequest{Config: staticConfig(t), RunRealAI: true, AIModelID: items[0].ID})
	assert.ErrorIs(t, err, xe.ErrModelNotFound)
}

func TestTestRunCallsModelAndLogs(t *testing.T) {
	provider := &fakeProvider{reply: sampleReply}
	s, modelService := newTestRunFixture(t, provider)
	ctx := context.Background()

	items, err := modelService.Update(ctx, "user-a", UpdateModelsRequest{Models: []AIModelRequest{
		{Name: "gemini", Provider: "gemini", Model: "gemini-2.5-flash", APIKey: "sk-1234567890", Enabled: true},
	}})
	require.NoError(t, err)
	assert.True(t, items[0].HasAPIKey)
	assert.Equal(t, "sk-1****7890", items[0].APIKey)

	resp, err := s.Run(ctx, "user-a", TestRunRequest{
		Config:        staticConfig(t),
		PromptVariant: VariantAggressive,
		AIModelID:     items[0].ID,
		RunRealAI:     true,
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Error)
	assert.Equal(t, resp.SystemPrompt, provider.system)
	assert.Equal(t, resp.UserPrompt, provider.user)
	assert.Len(t, resp.Decisions, 2)
	assert.Equal(t, "BTC is trending down.", resp.Reasoning)

	logs, err := s.RecentLogs(ctx, "user-a", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 2, logs[0].DecisionCount)
	assert.Equal(t, VariantAggressive, logs[0].PromptVariant)
}

func TestTestRunReportsProviderFailure(t *testing.T) {
	provider := &fakeProvider{err: errors.New("upstream 503")}
	s, modelService := newTestRunFixture(t, provider)
	ctx := context.Background()

	items, err := modelService.Update(ctx, "user-a", UpdateModelsRequest{Models: []AIModelRequest{
		{Name: "gpt", Provider: "openai", Model: "gpt-4o-mini", Enabled: true},
	}})
	require.NoError(t, err)

	resp, err := s.Run(ctx, "user-a", TestRunRequest{Config: staticConfig(t), AIModelID: items[0].ID, RunRealAI: true})
	require.NoError(t, err)
	assert.Contains(t, resp.Error, "upstream 503")
	assert.Empty(t, resp.Decisions)
	assert.NotEmpty(t, resp.SystemPrompt)
}

func TestAIModelUpdateKeepsKeyWhenBlank(t *testing.T) {
	db := newTestDB(t)
	s := NewAIModelService(zap.NewNop(), db)
	ctx := context.Background()

	items, err := s.Update(ctx, "user-a", UpdateModelsRequest{Models: []AIModelRequest{
		{Name: "gpt", Provider: "openai", Model: "gpt-4o", APIKey: "abcd", Enabled: true},
	}})
	require.NoError(t, err)

	items, err = s.Update(ctx, "user-a", UpdateModelsRequest{Models: []AIModelRequest{
		{ID: items[0].ID, Name: "gpt renamed", Provider: "openai", Model: "gpt-4o", Enabled: false},
	}})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "gpt renamed", items[0].Name)
	assert.True(t, items[0].HasAPIKey)
	assert.Equal(t, "****", items[0].APIKey)

	enabled, err := s.List(ctx, "user-a", true)
	require.NoError(t, err)
	assert.Empty(t, enabled)

	require.NoError(t, s.Delete(ctx, "user-a", items[0].ID))
	assert.ErrorIs(t, s.Delete(ctx, "user-a", items[0].ID), xe.ErrModelNotFound)
}
