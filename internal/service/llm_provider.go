package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dushixiang/prism-studio/internal/config"
	"github.com/dushixiang/prism-studio/internal/models"
	"github.com/dushixiang/prism-studio/internal/xe"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"google.golang.org/genai"
)

// ChatProvider 单轮对话：系统提示词 + 用户提示词 -> 文本
type ChatProvider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ProviderFactory 根据用户配置的模型创建调用方
type ProviderFactory func(ctx context.Context, m *models.AIModel) (ChatProvider, error)

type openAIProvider struct {
	client openai.Client
	model  string
}

func (p *openAIProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to call OpenAI API: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from model %s", p.model)
	}
	return resp.Choices[0].Message.Content, nil
}

type geminiProvider struct {
	client *genai.Client
	model  string
}

func (p *geminiProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(userPrompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	})
	if err != nil {
		return "", fmt.Errorf("failed to call Gemini API: %w", err)
	}
	return resp.Text(), nil
}

func proxiedHTTPClient(proxyURL string) (*http.Client, error) {
	httpClient := &http.Client{Timeout: 2 * time.Minute}
	if proxyURL == "" {
		return httpClient, nil
	}
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url: %w", err)
	}
	httpClient.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
	return httpClient, nil
}

// NewProviderFactory 模型未填写的地址与密钥使用全局配置
func NewProviderFactory(conf *config.Config) ProviderFactory {
	return func(ctx context.Context, m *models.AIModel) (ChatProvider, error) {
		httpClient, err := proxiedHTTPClient(conf.LLM.ProxyURL)
		if err != nil {
			return nil, err
		}

		switch m.Provider {
		case models.ProviderOpenAI:
			baseURL, apiKey, model := m.BaseURL, m.APIKey, m.Model
			if baseURL == "" {
				baseURL = conf.LLM.BaseURL
			}
			if apiKey == "" {
				apiKey = conf.LLM.APIKey
			}
			if model == "" {
				model = conf.LLM.Model
			}
			options := []option.RequestOption{
				option.WithAPIKey(apiKey),
				option.WithHTTPClient(httpClient),
			}
			if baseURL != "" {
				options = append(options, option.WithBaseURL(baseURL))
			}
			return &openAIProvider{client: openai.NewClient(options...), model: model}, nil
		case models.ProviderGemini:
			apiKey := m.APIKey
			if apiKey == "" {
				apiKey = conf.Gemini.APIKey
			}
			client, err := genai.NewClient(ctx, &genai.ClientConfig{
				APIKey:     apiKey,
				Backend:    genai.BackendGeminiAPI,
				HTTPClient: httpClient,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to init gemini client: %w", err)
			}
			return &geminiProvider{client: client, model: m.Model}, nil
		default:
			return nil, xe.ErrModelNotSupported
		}
	}
}
