package studio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dushixiang/prism-studio/pkg/strategy"
)

// ErrConcurrentModification 保存时基准版本已过期
var ErrConcurrentModification = errors.New("studio: strategy was modified by another session")

// APIError 所有失败统一为一条可展示的消息
type APIError struct {
	Status  int               `json:"-"`
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Status > 0 {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return "request failed"
}

func (e *APIError) Is(target error) bool {
	return target == ErrConcurrentModification && e.Status == http.StatusConflict
}

// Strategy 服务端返回的策略
type Strategy struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	IsActive      bool            `json:"is_active"`
	IsDefault     bool            `json:"is_default"`
	IsPublic      bool            `json:"is_public"`
	ConfigVisible bool            `json:"config_visible"`
	Version       int             `json:"version"`
	Config        strategy.Config `json:"config"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CreateRequest Config 为 nil 时由服务端按语言生成默认配置
type CreateRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Config      *strategy.Config `json:"config,omitempty"`
}

// UpdateRequest 整体更新
type UpdateRequest struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Config        strategy.Config `json:"config"`
	IsPublic      bool            `json:"is_public"`
	ConfigVisible bool            `json:"config_visible"`
	Version       int             `json:"version"`
}

type PreviewRequest struct {
	Config            strategy.Config `json:"config"`
	AccountEquity     float64         `json:"account_equity"`
	PromptVariant     string          `json:"prompt_variant"`
	IncludeUserPrompt bool            `json:"include_user_prompt"`
}

type PreviewResponse struct {
	SystemPrompt  string          `json:"system_prompt"`
	UserPrompt    string          `json:"user_prompt,omitempty"`
	PromptVariant string          `json:"prompt_variant"`
	ConfigSummary json.RawMessage `json:"config_summary"`
}

type TestRunRequest struct {
	Config        strategy.Config `json:"config"`
	PromptVariant string          `json:"prompt_variant"`
	AIModelID     string          `json:"ai_model_id"`
	RunRealAI     bool            `json:"run_real_ai"`
}

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

type TestRunResponse struct {
	SystemPrompt string     `json:"system_prompt,omitempty"`
	UserPrompt   string     `json:"user_prompt,omitempty"`
	AIResponse   string     `json:"ai_response,omitempty"`
	Reasoning    string     `json:"reasoning,omitempty"`
	Decisions    []Decision `json:"decisions,omitempty"`
	DurationMs   int64      `json:"duration_ms,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// Model 已配置的 AI 模型
type Model struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Enabled   bool   `json:"enabled"`
	HasAPIKey bool   `json:"has_api_key"`
}

// API 控制器依赖的服务端接口
type API interface {
	ListStrategies(ctx context.Context) ([]Strategy, error)
	DefaultConfig(ctx context.Context, lang string) (strategy.Config, error)
	CreateStrategy(ctx context.Context, req CreateRequest) (*Strategy, error)
	UpdateStrategy(ctx context.Context, id string, req UpdateRequest) (*Strategy, error)
	DeleteStrategy(ctx context.Context, id string) error
	DuplicateStrategy(ctx context.Context, id, name string) (*Strategy, error)
	ActivateStrategy(ctx context.Context, id string) error
	PreviewPrompt(ctx context.Context, req PreviewRequest) (*PreviewResponse, error)
	TestRun(ctx context.Context, req TestRunRequest) (*TestRunResponse, error)
}

type localeKey struct{}

// WithLocale 请求语言随 context 传递，作为 Accept-Language 发送
func WithLocale(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, localeKey{}, lang)
}

func localeFrom(ctx context.Context) string {
	lang, _ := ctx.Value(localeKey{}).(string)
	return lang
}

// Client Strategy Studio HTTP 客户端
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ API = (*Client)(nil)

type Option func(*Client)

func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient baseURL 形如 http://127.0.0.1:8080
func NewClient(baseURL string, options ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 3 * time.Minute},
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// SetToken 登录后替换令牌
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if lang := localeFrom(ctx); lang != "" {
		req.Header.Set("Accept-Language", lang)
	}
	return req, nil
}

// send 非 2xx 与网络错误都转换为 *APIError
func (c *Client) send(req *http.Request, out any) (*http.Response, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, &APIError{Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, &APIError{Status: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		apiErr.Status = resp.StatusCode
		return resp, data, apiErr
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp, data, &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("invalid response: %v", err)}
		}
	}
	return resp, data, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return &APIError{Message: err.Error()}
	}
	_, _, err = c.send(req, out)
	return err
}

// Login 登录并保存令牌
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, &out)
	if err != nil {
		return "", err
	}
	c.token = out.Token
	return out.Token, nil
}

func (c *Client) ListStrategies(ctx context.Context) ([]Strategy, error) {
	var out struct {
		Strategies []Strategy `json:"strategies"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/strategies", nil, &out); err != nil {
		return nil, err
	}
	return out.Strategies, nil
}

func (c *Client) GetStrategy(ctx context.Context, id string) (*Strategy, error) {
	var out Strategy
	if err := c.do(ctx, http.MethodGet, "/api/strategies/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetActiveStrategy 当前生效的策略，用户未激活任何策略时为系统默认策略
func (c *Client) GetActiveStrategy(ctx context.Context) (*Strategy, error) {
	var out Strategy
	if err := c.do(ctx, http.MethodGet, "/api/strategies/active", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DefaultConfig(ctx context.Context, lang string) (strategy.Config, error) {
	var out strategy.Config
	path := "/api/strategies/default-config?lang=" + url.QueryEscape(lang)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return strategy.Config{}, err
	}
	return out, nil
}

func (c *Client) CreateStrategy(ctx context.Context, req CreateRequest) (*Strategy, error) {
	var out Strategy
	if err := c.do(ctx, http.MethodPost, "/api/strategies", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStrategy 基准版本同时放在 body 与 If-Match
func (c *Client) UpdateStrategy(ctx context.Context, id string, req UpdateRequest) (*Strategy, error) {
	httpReq, err := c.newRequest(ctx, http.MethodPut, "/api/strategies/"+url.PathEscape(id), req)
	if err != nil {
		return nil, &APIError{Message: err.Error()}
	}
	if req.Version > 0 {
		httpReq.Header.Set("If-Match", fmt.Sprintf(`"%d"`, req.Version))
	}
	var out Strategy
	if _, _, err := c.send(httpReq, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteStrategy(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/strategies/"+url.PathEscape(id), nil, nil)
}

func (c *Client) DuplicateStrategy(ctx context.Context, id, name string) (*Strategy, error) {
	var out Strategy
	err := c.do(ctx, http.MethodPost, "/api/strategies/"+url.PathEscape(id)+"/duplicate", map[string]string{"name": name}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ActivateStrategy(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/strategies/"+url.PathEscape(id)+"/activate", nil, nil)
}

func (c *Client) PreviewPrompt(ctx context.Context, req PreviewRequest) (*PreviewResponse, error) {
	var out PreviewResponse
	if err := c.do(ctx, http.MethodPost, "/api/strategies/preview-prompt", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) TestRun(ctx context.Context, req TestRunRequest) (*TestRunResponse, error) {
	var out TestRunResponse
	if err := c.do(ctx, http.MethodPost, "/api/strategies/test-run", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListModels enabledOnly 为 true 时只返回已启用的模型
func (c *Client) ListModels(ctx context.Context, enabledOnly bool) ([]Model, error) {
	var out struct {
		Models []Model `json:"models"`
	}
	path := "/api/models"
	if enabledOnly {
		path += "?enabled=true"
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

// ExportStrategy 下载服务端生成的导出文件，返回文件名与内容
func (c *Client) ExportStrategy(ctx context.Context, id string) (string, []byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/strategies/"+url.PathEscape(id)+"/export", nil)
	if err != nil {
		return "", nil, &APIError{Message: err.Error()}
	}
	resp, data, err := c.send(req, nil)
	if err != nil {
		return "", nil, err
	}
	return attachmentName(resp.Header.Get("Content-Disposition")), data, nil
}

// ImportStrategy 由服务端按导出文件创建新策略
func (c *Client) ImportStrategy(ctx context.Context, data []byte) (*Strategy, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/strategies/import", json.RawMessage(data))
	if err != nil {
		return nil, &APIError{Message: err.Error()}
	}
	var out Strategy
	if _, _, err := c.send(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func attachmentName(disposition string) string {
	const key = "filename="
	idx := strings.Index(disposition, key)
	if idx < 0 {
		return ""
	}
	return strings.Trim(disposition[idx+len(key):], `"; `)
}
