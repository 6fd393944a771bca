package studio

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/dushixiang/prism-studio/pkg/i18n"
	"github.com/dushixiang/prism-studio/pkg/strategy"
)

var (
	ErrNoSelection     = errors.New("studio: no strategy selected")
	ErrUnknownStrategy = errors.New("studio: strategy not found in list")
	ErrNotDirty        = errors.New("studio: nothing to save")
	ErrSaving          = errors.New("studio: save in progress")
	ErrNoPendingSwitch = errors.New("studio: no pending switch")
	ErrModelRequired   = errors.New("studio: an enabled AI model is required")
	ErrStaleEditor     = errors.New("studio: editor belongs to a previous selection")
)

// State 编辑状态
type State int

const (
	StateUnselected State = iota
	StateClean
	StateDirty
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	case StateSaving:
		return "saving"
	default:
		return "unselected"
	}
}

// SwitchResult 切换选中策略的结果，Proceed 为 false 时 Pending 为被挡住的目标
type SwitchResult struct {
	Proceed bool
	Pending string
	Message string
}

// Metadata 策略的非配置字段
type Metadata struct {
	Name          string
	Description   string
	IsPublic      bool
	ConfigVisible bool
}

// Controller 策略工作室的客户端状态机：
// Unselected -> Selected(clean) -> Selected(dirty) -> Saving -> Selected(clean)
type Controller struct {
	mu  sync.Mutex
	api API
	now func() time.Time

	locale     strategy.Language
	strategies []Strategy
	selected   *Strategy
	editing    strategy.Config
	meta       Metadata
	state      State
	pending    string
	pageError  string
	// gen 每次载入或清空编辑内容时递增，编辑器据此判断是否过期
	gen uint64
}

// NewController 创建控制器，locale 为会话语言
func NewController(api API, locale string) *Controller {
	return &Controller{
		api:    api,
		now:    time.Now,
		locale: strategy.ParseLanguage(locale),
	}
}

func (c *Controller) ctx(ctx context.Context) context.Context {
	return WithLocale(ctx, string(c.locale))
}

// fail 记录页面错误并原样返回
func (c *Controller) fail(err error) error {
	c.mu.Lock()
	c.pageError = err.Error()
	c.mu.Unlock()
	return err
}

// Error 页面级错误，直到 ClearError 前一直保留
func (c *Controller) Error() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pageError
}

func (c *Controller) ClearError() {
	c.mu.Lock()
	c.pageError = ""
	c.mu.Unlock()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Locale() strategy.Language {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locale
}

// Strategies 最近一次拉取的列表
func (c *Controller) Strategies() []Strategy {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Strategy, len(c.strategies))
	for i, s := range c.strategies {
		s.Config = s.Config.Clone()
		out[i] = s
	}
	return out
}

// Selected 当前选中策略的已保存版本
func (c *Controller) Selected() (Strategy, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return Strategy{}, false
	}
	s := *c.selected
	s.Config = s.Config.Clone()
	return s, true
}

// Config 正在编辑的配置副本
func (c *Controller) Config() strategy.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editing.Clone()
}

func (c *Controller) Metadata() Metadata {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta
}

// ReadOnly 系统默认策略只读
func (c *Controller) ReadOnly() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected != nil && c.selected.IsDefault
}

// Refresh 重新拉取列表，选中的策略已不存在时回到未选中
func (c *Controller) Refresh(ctx context.Context) error {
	items, err := c.api.ListStrategies(c.ctx(ctx))
	if err != nil {
		return c.fail(err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strategies = items
	if c.selected == nil {
		return nil
	}
	for i := range items {
		if items[i].ID == c.selected.ID {
			if c.state == StateClean {
				c.load(items[i])
			} else {
				// 只同步服务端字段，保留未保存的编辑
				s := items[i]
				c.selected.IsActive = s.IsActive
			}
			return nil
		}
	}
	c.unselect()
	return nil
}

func (c *Controller) find(id string) (Strategy, bool) {
	for _, s := range c.strategies {
		if s.ID == id {
			return s, true
		}
	}
	return Strategy{}, false
}

func (c *Controller) load(s Strategy) {
	s.Config = s.Config.Clone()
	c.selected = &s
	c.editing = s.Config.Clone()
	c.meta = Metadata{
		Name:          s.Name,
		Description:   s.Description,
		IsPublic:      s.IsPublic,
		ConfigVisible: s.ConfigVisible,
	}
	c.state = StateClean
	c.pending = ""
	c.gen++
}

func (c *Controller) unselect() {
	c.selected = nil
	c.editing = strategy.Config{}
	c.meta = Metadata{}
	c.state = StateUnselected
	c.pending = ""
	c.gen++
}

// replace 用服务端返回的最新版本替换列表中的条目
func (c *Controller) replace(s Strategy) {
	for i := range c.strategies {
		if c.strategies[i].ID == s.ID {
			s.Config = s.Config.Clone()
			c.strategies[i] = s
			return
		}
	}
}

// Select 切换选中策略；有未保存的修改时被挡住，需要 DiscardAndSwitch / SaveAndSwitch / CancelSwitch
func (c *Controller) Select(id string) (SwitchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	target, ok := c.find(id)
	if !ok {
		return SwitchResult{}, ErrUnknownStrategy
	}
	if c.selected != nil && c.selected.ID == id {
		return SwitchResult{Proceed: true}, nil
	}
	if c.state == StateSaving {
		return SwitchResult{}, ErrSaving
	}
	if c.state == StateDirty {
		c.pending = id
		return SwitchResult{
			Pending: id,
			Message: i18n.T(string(c.locale), i18n.KeyUnsavedChanges),
		}, nil
	}
	c.load(target)
	return SwitchResult{Proceed: true}, nil
}

// PendingSwitch 被挡住的切换目标
func (c *Controller) PendingSwitch() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// DiscardAndSwitch 丢弃未保存的修改并切换
func (c *Controller) DiscardAndSwitch() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == "" {
		return ErrNoPendingSwitch
	}
	target, ok := c.find(c.pending)
	if !ok {
		c.pending = ""
		return ErrUnknownStrategy
	}
	c.load(target)
	return nil
}

// SaveAndSwitch 先保存，成功后切换；保存失败时保持阻塞状态。
// 保存成功而列表刷新失败时仍然切换，刷新错误留在页面错误中。
func (c *Controller) SaveAndSwitch(ctx context.Context) error {
	c.mu.Lock()
	pending := c.pending
	c.mu.Unlock()
	if pending == "" {
		return ErrNoPendingSwitch
	}
	if err := c.Save(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	target, ok := c.find(pending)
	if !ok {
		c.pending = ""
		return ErrUnknownStrategy
	}
	c.load(target)
	return nil
}

// CancelSwitch 取消切换，继续编辑当前策略
func (c *Controller) CancelSwitch() {
	c.mu.Lock()
	c.pending = ""
	c.mu.Unlock()
}

// edit 替换一个配置段并标记为 dirty
func (c *Controller) edit(fn func(cfg *strategy.Config, meta *Metadata)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editLocked(fn)
}

// editAt 只在编辑内容仍是 gen 对应的那一版时生效
func (c *Controller) editAt(gen uint64, fn func(cfg *strategy.Config, meta *Metadata)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return ErrStaleEditor
	}
	return c.editLocked(fn)
}

func (c *Controller) editLocked(fn func(cfg *strategy.Config, meta *Metadata)) error {
	if c.selected == nil {
		return ErrNoSelection
	}
	if c.selected.IsDefault {
		return strategy.ErrReadOnly
	}
	if c.state == StateSaving {
		return ErrSaving
	}
	fn(&c.editing, &c.meta)
	c.state = StateDirty
	return nil
}

func (c *Controller) SetCoinSource(cs strategy.CoinSource) error {
	return c.edit(func(cfg *strategy.Config, _ *Metadata) { cfg.CoinSource = cs })
}

func (c *Controller) SetIndicators(ind strategy.Indicators) error {
	return c.edit(func(cfg *strategy.Config, _ *Metadata) { cfg.Indicators = ind })
}

func (c *Controller) SetRiskControl(rc strategy.RiskControl) error {
	return c.edit(func(cfg *strategy.Config, _ *Metadata) { cfg.RiskControl = rc })
}

func (c *Controller) SetPromptSections(ps strategy.PromptSections) error {
	return c.edit(func(cfg *strategy.Config, _ *Metadata) { cfg.PromptSections = ps })
}

func (c *Controller) SetCustomPrompt(text string) error {
	return c.edit(func(cfg *strategy.Config, _ *Metadata) { cfg.CustomPrompt = text })
}

func (c *Controller) SetPublish(isPublic, configVisible bool) error {
	return c.edit(func(_ *strategy.Config, meta *Metadata) {
		meta.IsPublic = isPublic
		meta.ConfigVisible = configVisible
	})
}

func (c *Controller) SetMetadata(name, description string) error {
	return c.edit(func(_ *strategy.Config, meta *Metadata) {
		meta.Name = name
		meta.Description = description
	})
}

// 各配置段的编辑器，变更回写到创建时选中的那一版编辑内容；
// 切换、丢弃、保存或刷新之后旧编辑器返回 ErrStaleEditor，只读策略得到禁用的编辑器

func (c *Controller) snapshot() (strategy.Config, bool, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editing.Clone(), c.selected != nil && c.selected.IsDefault, c.gen
}

func (c *Controller) CoinSourceEditor() *strategy.Editor[strategy.CoinSource] {
	cfg, readOnly, gen := c.snapshot()
	return strategy.NewCoinSourceEditor(cfg.CoinSource, readOnly, func(v strategy.CoinSource) error {
		return c.editAt(gen, func(cfg *strategy.Config, _ *Metadata) { cfg.CoinSource = v })
	})
}

func (c *Controller) IndicatorsEditor() *strategy.Editor[strategy.Indicators] {
	cfg, readOnly, gen := c.snapshot()
	return strategy.NewIndicatorsEditor(cfg.Indicators, readOnly, func(v strategy.Indicators) error {
		return c.editAt(gen, func(cfg *strategy.Config, _ *Metadata) { cfg.Indicators = v })
	})
}

func (c *Controller) RiskControlEditor() *strategy.Editor[strategy.RiskControl] {
	cfg, readOnly, gen := c.snapshot()
	return strategy.NewRiskControlEditor(cfg.RiskControl, readOnly, func(v strategy.RiskControl) error {
		return c.editAt(gen, func(cfg *strategy.Config, _ *Metadata) { cfg.RiskControl = v })
	})
}

func (c *Controller) PromptSectionsEditor() *strategy.Editor[strategy.PromptSections] {
	cfg, readOnly, gen := c.snapshot()
	return strategy.NewPromptSectionsEditor(cfg.PromptSections, readOnly, func(v strategy.PromptSections) error {
		return c.editAt(gen, func(cfg *strategy.Config, _ *Metadata) { cfg.PromptSections = v })
	})
}

// SetLocale 只记录会话语言，不改动提示词
func (c *Controller) SetLocale(lang string) {
	c.mu.Lock()
	c.locale = strategy.ParseLanguage(lang)
	c.mu.Unlock()
}

// SyncPromptLanguage 用当前语言的服务端默认值整体替换提示词段落与 language
func (c *Controller) SyncPromptLanguage(ctx context.Context) error {
	c.mu.Lock()
	locale := c.locale
	c.mu.Unlock()

	defaults, err := c.api.DefaultConfig(c.ctx(ctx), string(locale))
	if err != nil {
		return c.fail(err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editLocked(func(cfg *strategy.Config, _ *Metadata) {
		cfg.PromptSections = defaults.PromptSections
		cfg.Language = locale
	}); err != nil {
		return err
	}
	c.gen++
	return nil
}

// Save 保存整份配置；失败时保持 dirty 且不回退任何字段。
// 写入成功后列表刷新失败只记录页面错误，不影响保存结果。
func (c *Controller) Save(ctx context.Context) error {
	c.mu.Lock()
	if c.selected == nil {
		c.mu.Unlock()
		return ErrNoSelection
	}
	if c.state != StateDirty {
		c.mu.Unlock()
		return ErrNotDirty
	}
	id := c.selected.ID
	cfg := c.editing.Clone()
	cfg.Language = c.locale
	req := UpdateRequest{
		Name:          c.meta.Name,
		Description:   c.meta.Description,
		Config:        cfg,
		IsPublic:      c.meta.IsPublic,
		ConfigVisible: c.meta.ConfigVisible,
		Version:       c.selected.Version,
	}
	c.state = StateSaving
	c.mu.Unlock()

	saved, err := c.api.UpdateStrategy(c.ctx(ctx), id, req)
	if err != nil {
		c.mu.Lock()
		c.state = StateDirty
		c.pageError = err.Error()
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.replace(*saved)
	c.load(*saved)
	c.mu.Unlock()
	_ = c.Refresh(ctx)
	return nil
}

// Create 由服务端生成当前语言的默认配置，未处于编辑状态时选中新策略
func (c *Controller) Create(ctx context.Context, name, description string) (*Strategy, error) {
	return c.create(ctx, CreateRequest{Name: name, Description: description})
}

func (c *Controller) create(ctx context.Context, req CreateRequest) (*Strategy, error) {
	created, err := c.api.CreateStrategy(c.ctx(ctx), req)
	if err != nil {
		return nil, c.fail(err)
	}
	if err := c.Refresh(ctx); err != nil {
		return created, err
	}
	c.mu.Lock()
	if c.state == StateUnselected || c.state == StateClean {
		if s, ok := c.find(created.ID); ok {
			c.load(s)
		}
	}
	c.mu.Unlock()
	return created, nil
}

// Delete 删除后刷新列表，删除的是当前选中策略时回到未选中
func (c *Controller) Delete(ctx context.Context, id string) error {
	if err := c.api.DeleteStrategy(c.ctx(ctx), id); err != nil {
		return c.fail(err)
	}
	c.mu.Lock()
	if c.selected != nil && c.selected.ID == id {
		c.unselect()
	}
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// Duplicate 复制策略，name 为空时由服务端追加副本后缀
func (c *Controller) Duplicate(ctx context.Context, id, name string) (*Strategy, error) {
	dup, err := c.api.DuplicateStrategy(c.ctx(ctx), id, name)
	if err != nil {
		return nil, c.fail(err)
	}
	return dup, c.Refresh(ctx)
}

// Activate 服务端确认后刷新列表
func (c *Controller) Activate(ctx context.Context, id string) error {
	if err := c.api.ActivateStrategy(c.ctx(ctx), id); err != nil {
		return c.fail(err)
	}
	return c.Refresh(ctx)
}

// PreviewPrompt 使用正在编辑的配置，不需要先保存
func (c *Controller) PreviewPrompt(ctx context.Context, accountEquity float64, variant string, includeUser bool) (*PreviewResponse, error) {
	c.mu.Lock()
	if c.selected == nil {
		c.mu.Unlock()
		return nil, ErrNoSelection
	}
	req := PreviewRequest{
		Config:            c.editing.Clone(),
		AccountEquity:     accountEquity,
		PromptVariant:     variant,
		IncludeUserPrompt: includeUser,
	}
	c.mu.Unlock()

	resp, err := c.api.PreviewPrompt(c.ctx(ctx), req)
	if err != nil {
		return nil, c.fail(err)
	}
	return resp, nil
}

// TestRun 用正在编辑的配置做一次测试运行；模型调用失败时 resp.Error 同时写入页面错误
func (c *Controller) TestRun(ctx context.Context, modelID, variant string, runRealAI bool) (*TestRunResponse, error) {
	c.mu.Lock()
	if c.selected == nil {
		c.mu.Unlock()
		return nil, ErrNoSelection
	}
	if runRealAI && modelID == "" {
		c.pageError = i18n.T(string(c.locale), i18n.KeyModelRequired)
		c.mu.Unlock()
		return nil, ErrModelRequired
	}
	req := TestRunRequest{
		Config:        c.editing.Clone(),
		PromptVariant: variant,
		AIModelID:     modelID,
		RunRealAI:     runRealAI,
	}
	c.mu.Unlock()

	resp, err := c.api.TestRun(c.ctx(ctx), req)
	if err != nil {
		return nil, c.fail(err)
	}
	if resp.Error != "" {
		c.mu.Lock()
		c.pageError = resp.Error
		c.mu.Unlock()
	}
	return resp, nil
}

// ExportFilename 当前选中策略的导出文件名
func (c *Controller) ExportFilename() (string, error) {
	s, ok := c.Selected()
	if !ok {
		return "", ErrNoSelection
	}
	return strategy.ExportFilename(s.Name, c.now()), nil
}

// Export 导出当前选中策略的已保存版本
func (c *Controller) Export(w io.Writer) error {
	s, ok := c.Selected()
	if !ok {
		return ErrNoSelection
	}
	doc := strategy.NewExportDocument(s.Name, s.Description, s.Config, c.now())
	if err := strategy.WriteExport(w, doc); err != nil {
		return c.fail(err)
	}
	return nil
}

// Import 校验 name 与 config 后以新策略创建，名称追加导入后缀
func (c *Controller) Import(ctx context.Context, r io.Reader) (*Strategy, error) {
	doc, err := strategy.ReadImport(r)
	if err != nil {
		c.mu.Lock()
		c.pageError = i18n.T(string(c.locale), i18n.KeyInvalidImport)
		c.mu.Unlock()
		return nil, err
	}
	c.mu.Lock()
	suffix := i18n.T(string(c.locale), i18n.KeyImportedSuffix)
	c.mu.Unlock()

	cfg := doc.Config
	return c.create(ctx, CreateRequest{
		Name:        doc.Name + suffix,
		Description: doc.Description,
		Config:      &cfg,
	})
}
