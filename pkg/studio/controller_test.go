package studio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/dushixiang/prism-studio/pkg/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI 内存版服务端，行为与 /api/strategies 一致
type fakeAPI struct {
	mu         sync.Mutex
	items      []Strategy
	seq        int
	updates    []UpdateRequest
	failUpdate error
	failList   error
	testRuns   []TestRunRequest
	langs      []string

	// updateStarted/updateGate 非空时 UpdateStrategy 先通知再等待放行
	updateStarted chan struct{}
	updateGate    chan struct{}
}

var _ API = (*fakeAPI)(nil)

func newFakeAPI() *fakeAPI {
	f := &fakeAPI{}
	f.items = append(f.items,
		Strategy{ID: "default", Name: "Default Strategy", IsDefault: true, IsActive: true, Version: 1, Config: strategy.DefaultConfig(strategy.LanguageEN)},
		Strategy{ID: "s1", Name: "Alpha", Version: 1, Config: strategy.DefaultConfig(strategy.LanguageEN)},
		Strategy{ID: "s2", Name: "Beta", Version: 1, Config: strategy.DefaultConfig(strategy.LanguageEN)},
	)
	return f
}

func (f *fakeAPI) index(id string) int {
	for i := range f.items {
		if f.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (f *fakeAPI) ListStrategies(ctx context.Context) ([]Strategy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList != nil {
		return nil, f.failList
	}
	out := make([]Strategy, len(f.items))
	for i, s := range f.items {
		s.Config = s.Config.Clone()
		out[i] = s
	}
	return out, nil
}

func (f *fakeAPI) DefaultConfig(ctx context.Context, lang string) (strategy.Config, error) {
	f.mu.Lock()
	f.langs = append(f.langs, lang)
	f.mu.Unlock()
	return strategy.DefaultConfig(strategy.ParseLanguage(lang)), nil
}

func (f *fakeAPI) CreateStrategy(ctx context.Context, req CreateRequest) (*Strategy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	cfg := strategy.DefaultConfig(strategy.ParseLanguage(localeFrom(ctx)))
	if req.Config != nil {
		cfg = req.Config.Clone()
	}
	s := Strategy{ID: fmt.Sprintf("new-%d", f.seq), Name: req.Name, Description: req.Description, Version: 1, Config: cfg}
	f.items = append(f.items, s)
	return &s, nil
}

func (f *fakeAPI) UpdateStrategy(ctx context.Context, id string, req UpdateRequest) (*Strategy, error) {
	if f.updateGate != nil {
		f.updateStarted <- struct{}{}
		<-f.updateGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, req)
	if f.failUpdate != nil {
		return nil, f.failUpdate
	}
	i := f.index(id)
	if i < 0 {
		return nil, &APIError{Status: http.StatusNotFound, Message: "strategy not found"}
	}
	if req.Version != 0 && req.Version != f.items[i].Version {
		return nil, &APIError{Status: http.StatusConflict, Message: "concurrent modification"}
	}
	s := &f.items[i]
	s.Name = req.Name
	s.Description = req.Description
	s.Config = req.Config.Clone()
	s.IsPublic = req.IsPublic
	s.ConfigVisible = req.ConfigVisible
	s.Version++
	out := *s
	return &out, nil
}

func (f *fakeAPI) DeleteStrategy(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.index(id)
	if i < 0 {
		return &APIError{Status: http.StatusNotFound, Message: "strategy not found"}
	}
	f.items = append(f.items[:i], f.items[i+1:]...)
	return nil
}

func (f *fakeAPI) DuplicateStrategy(ctx context.Context, id, name string) (*Strategy, error) {
	f.mu.Lock()
	i := f.index(id)
	if i < 0 {
		f.mu.Unlock()
		return nil, &APIError{Status: http.StatusNotFound, Message: "strategy not found"}
	}
	src := f.items[i]
	f.mu.Unlock()
	if name == "" {
		name = src.Name + " (Copy)"
	}
	cfg := src.Config.Clone()
	return f.CreateStrategy(ctx, CreateRequest{Name: name, Description: src.Description, Config: &cfg})
}

func (f *fakeAPI) ActivateStrategy(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index(id) < 0 {
		return &APIError{Status: http.StatusNotFound, Message: "strategy not found"}
	}
	for i := range f.items {
		f.items[i].IsActive = f.items[i].ID == id
	}
	return nil
}

func (f *fakeAPI) PreviewPrompt(ctx context.Context, req PreviewRequest) (*PreviewResponse, error) {
	return &PreviewResponse{
		SystemPrompt:  fmt.Sprintf("max positions %d", req.Config.RiskControl.MaxPositions),
		PromptVariant: req.PromptVariant,
	}, nil
}

func (f *fakeAPI) TestRun(ctx context.Context, req TestRunRequest) (*TestRunResponse, error) {
	f.mu.Lock()
	f.testRuns = append(f.testRuns, req)
	f.mu.Unlock()
	if req.RunRealAI {
		return &TestRunResponse{SystemPrompt: "sys", Error: "upstream timeout"}, nil
	}
	return &TestRunResponse{SystemPrompt: "sys", UserPrompt: "user"}, nil
}

func newTestController(t *testing.T) (*Controller, *fakeAPI) {
	t.Helper()
	api := newFakeAPI()
	c := NewController(api, "en")
	c.now = fixedNow
	require.NoError(t, c.Refresh(context.Background()))
	return c, api
}

func TestControllerSelect(t *testing.T) {
	c, _ := newTestController(t)
	assert.Equal(t, StateUnselected, c.State())
	assert.Len(t, c.Strategies(), 3)

	res, err := c.Select("s1")
	require.NoError(t, err)
	assert.True(t, res.Proceed)
	assert.Equal(t, StateClean, c.State())

	s, ok := c.Selected()
	require.True(t, ok)
	assert.Equal(t, "Alpha", s.Name)
	assert.Equal(t, s.Config, c.Config())

	_, err = c.Select("missing")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestControllerEditMarksDirty(t *testing.T) {
	c, _ := newTestController(t)
	assert.ErrorIs(t, c.SetCustomPrompt("x"), ErrNoSelection)

	_, err := c.Select("s1")
	require.NoError(t, err)

	rc := c.Config().RiskControl
	rc.MaxPositions = 5
	require.NoError(t, c.SetRiskControl(rc))
	assert.Equal(t, StateDirty, c.State())
	assert.Equal(t, 5, c.Config().RiskControl.MaxPositions)

	s, _ := c.Selected()
	assert.NotEqual(t, 5, s.Config.RiskControl.MaxPositions)
}

func TestControllerEditorWritesBack(t *testing.T) {
	c, _ := newTestController(t)
	_, err := c.Select("s1")
	require.NoError(t, err)

	e := c.CoinSourceEditor()
	require.NoError(t, strategy.AddStaticCoin(e, "doge"))
	assert.Equal(t, StateDirty, c.State())
	assert.Contains(t, c.Config().CoinSource.StaticCoins, "DOGEUSDT")
}

func TestControllerStaleEditorRejected(t *testing.T) {
	c, _ := newTestController(t)
	_, err := c.Select("s1")
	require.NoError(t, err)
	e := c.CoinSourceEditor()

	require.NoError(t, c.SetCustomPrompt("draft"))
	_, err = c.Select("s2")
	require.NoError(t, err)
	require.NoError(t, c.DiscardAndSwitch())

	assert.ErrorIs(t, strategy.AddStaticCoin(e, "doge"), ErrStaleEditor)
	assert.Empty(t, e.Value().StaticCoins)

	s, _ := c.Selected()
	assert.Equal(t, "s2", s.ID)
	assert.Equal(t, StateClean, c.State())
	assert.Empty(t, c.Config().CoinSource.StaticCoins)

	// 切回 s1 后旧编辑器同样失效
	_, err = c.Select("s1")
	require.NoError(t, err)
	assert.ErrorIs(t, e.Set("use_ai500", false), ErrStaleEditor)
	assert.Equal(t, StateClean, c.State())

	fresh := c.CoinSourceEditor()
	require.NoError(t, strategy.AddStaticCoin(fresh, "doge"))
	assert.Equal(t, []string{"DOGEUSDT"}, c.Config().CoinSource.StaticCoins)
}

func TestControllerEditorRejectedWhileSaving(t *testing.T) {
	c, api := newTestController(t)
	_, err := c.Select("s1")
	require.NoError(t, err)
	require.NoError(t, c.SetCustomPrompt("draft"))

	before := c.Config().RiskControl.MaxPositions
	e := c.RiskControlEditor()

	api.updateStarted = make(chan struct{})
	api.updateGate = make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- c.Save(context.Background()) }()
	<-api.updateStarted

	assert.Equal(t, StateSaving, c.State())
	assert.ErrorIs(t, e.Set("max_positions", 9), ErrSaving)
	assert.Equal(t, before, e.Value().MaxPositions)
	assert.ErrorIs(t, c.SetCustomPrompt("late"), ErrSaving)

	close(api.updateGate)
	require.NoError(t, <-done)

	assert.Equal(t, StateClean, c.State())
	assert.Equal(t, before, c.Config().RiskControl.MaxPositions)
	assert.Equal(t, "draft", c.Config().CustomPrompt)
	assert.ErrorIs(t, e.Set("max_positions", 9), ErrStaleEditor)
}

func TestControllerEditorKeepsWorkingAfterFailedSave(t *testing.T) {
	c, api := newTestController(t)
	_, err := c.Select("s1")
	require.NoError(t, err)
	e := c.RiskControlEditor()
	require.NoError(t, e.Set("max_positions", 4))

	api.failUpdate = errors.New("offline")
	require.Error(t, c.Save(context.Background()))

	require.NoError(t, e.Set("max_positions", 5))
	assert.Equal(t, 5, c.Config().RiskControl.MaxPositions)
	assert.Equal(t, StateDirty, c.State())
}

func TestControllerDefaultIsReadOnly(t *testing.T) {
	c, _ := newTestController(t)
	_, err := c.Select("default")
	require.NoError(t, err)

	assert.True(t, c.ReadOnly())
	assert.ErrorIs(t, c.SetCustomPrompt("x"), strategy.ErrReadOnly)
	assert.True(t, c.RiskControlEditor().Disabled())
	assert.Equal(t, StateClean, c.State())
}

func TestControllerSave(t *testing.T) {
	c, api := newTestController(t)
	c.SetLocale("zh")
	_, err := c.Select("s1")
	require.NoError(t, err)

	require.NoError(t, c.SetMetadata("Alpha v2", "desc"))
	require.NoError(t, c.SetPublish(true, false))
	require.NoError(t, c.Save(context.Background()))

	assert.Equal(t, StateClean, c.State())
	require.Len(t, api.updates, 1)
	assert.Equal(t, 1, api.updates[0].Version)
	assert.Equal(t, strategy.LanguageZH, api.updates[0].Config.Language)

	s, _ := c.Selected()
	assert.Equal(t, "Alpha v2", s.Name)
	assert.Equal(t, 2, s.Version)
	assert.True(t, s.IsPublic)

	assert.ErrorIs(t, c.Save(context.Background()), ErrNotDirty)
}

func TestControllerSaveFailureKeepsEdits(t *testing.T) {
	c, api := newTestController(t)
	_, err := c.Select("s1")
	require.NoError(t, err)
	require.NoError(t, c.SetCustomPrompt("only long setups"))

	api.failUpdate = &APIError{Status: http.StatusBadRequest, Message: "max_positions out of range"}
	err = c.Save(context.Background())
	require.Error(t, err)

	assert.Equal(t, StateDirty, c.State())
	assert.Equal(t, "only long setups", c.Config().CustomPrompt)
	assert.Contains(t, c.Error(), "max_positions")

	s, _ := c.Selected()
	assert.Empty(t, s.Config.CustomPrompt)

	c.ClearError()
	assert.Empty(t, c.Error())
}

func TestControllerSaveStaleVersion(t *testing.T) {
	c, api := newTestController(t)
	_, err := c.Select("s1")
	require.NoError(t, err)
	require.NoError(t, c.SetCustomPrompt("mine"))

	// 另一个会话先保存
	_, err = api.UpdateStrategy(context.Background(), "s1", UpdateRequest{Name: "Alpha", Config: strategy.DefaultConfig(strategy.LanguageEN), Version: 1})
	require.NoError(t, err)

	err = c.Save(context.Background())
	assert.ErrorIs(t, err, ErrConcurrentModification)
	assert.Equal(t, StateDirty, c.State())
	assert.Equal(t, "mine", c.Config().CustomPrompt)
}

func TestControllerSwitchGuard(t *testing.T) {
	c, _ := newTestController(t)
	_, err := c.Select("s1")
	require.NoError(t, err)
	require.NoError(t, c.SetCustomPrompt("draft"))

	res, err := c.Select("s2")
	require.NoError(t, err)
	assert.False(t, res.Proceed)
	assert.Equal(t, "s2", res.Pending)
	assert.NotEmpty(t, res.Message)

	s, _ := c.Selected()
	assert.Equal(t, "s1", s.ID)

	c.CancelSwitch()
	assert.Empty(t, c.PendingSwitch())
	assert.Equal(t, "draft", c.Config().CustomPrompt)
	assert.ErrorIs(t, c.DiscardAndSwitch(), ErrNoPendingSwitch)

	_, err = c.Select("s2")
	require.NoError(t, err)
	require.NoError(t, c.DiscardAndSwitch())

	s, _ = c.Selected()
	assert.Equal(t, "s2", s.ID)
	assert.Equal(t, StateClean, c.State())
	assert.Empty(t, c.Config().CustomPrompt)
}

func TestControllerSaveAndSwitch(t *testing.T) {
	c, api := newTestController(t)
	_, err := c.Select("s1")
	require.NoError(t, err)
	require.NoError(t, c.SetCustomPrompt("draft"))
	_, err = c.Select("s2")
	require.NoError(t, err)

	api.failUpdate = errors.New("offline")
	require.Error(t, c.SaveAndSwitch(context.Background()))
	s, _ := c.Selected()
	assert.Equal(t, "s1", s.ID)
	assert.Equal(t, "s2", c.PendingSwitch())

	api.failUpdate = nil
	require.NoError(t, c.SaveAndSwitch(context.Background()))
	s, _ = c.Selected()
	assert.Equal(t, "s2", s.ID)

	list, _ := api.ListStrategies(context.Background())
	assert.Equal(t, "draft", list[1].Config.CustomPrompt)
}

func TestControllerSaveAndSwitchWhenRefreshFails(t *testing.T) {
	c, api := newTestController(t)
	_, err := c.Select("s1")
	require.NoError(t, err)
	require.NoError(t, c.SetCustomPrompt("draft"))
	_, err = c.Select("s2")
	require.NoError(t, err)

	api.failList = errors.New("connection reset")
	require.NoError(t, c.SaveAndSwitch(context.Background()))

	s, _ := c.Selected()
	assert.Equal(t, "s2", s.ID)
	assert.Equal(t, StateClean, c.State())
	assert.Empty(t, c.PendingSwitch())
	assert.Equal(t, "connection reset", c.Error())
	require.Len(t, api.updates, 1)

	// 列表未刷新，但已保存的条目带着新版本号
	for _, item := range c.Strategies() {
		if item.ID == "s1" {
			assert.Equal(t, 2, item.Version)
			assert.Equal(t, "draft", item.Config.CustomPrompt)
		}
	}

	_, err = c.Select("s1")
	require.NoError(t, err)
	require.NoError(t, c.SetCustomPrompt("second"))
	api.failList = nil
	require.NoError(t, c.Save(context.Background()))
	assert.Equal(t, 2, api.updates[1].Version)
}

func TestControllerActivateRefetches(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.Activate(context.Background(), "s2"))

	active := 0
	for _, s := range c.Strategies() {
		if s.IsActive {
			active++
			assert.Equal(t, "s2", s.ID)
		}
	}
	assert.Equal(t, 1, active)

	err := c.Activate(context.Background(), "missing")
	require.Error(t, err)
	assert.NotEmpty(t, c.Error())
}

func TestControllerDeleteSelected(t *testing.T) {
	c, _ := newTestController(t)
	_, err := c.Select("s1")
	require.NoError(t, err)

	require.NoError(t, c.Delete(context.Background(), "s1"))
	assert.Equal(t, StateUnselected, c.State())
	assert.Len(t, c.Strategies(), 2)
}

func TestControllerCreateAndDuplicate(t *testing.T) {
	c, _ := newTestController(t)
	c.SetLocale("es")

	created, err := c.Create(context.Background(), "Gamma", "")
	require.NoError(t, err)
	s, ok := c.Selected()
	require.True(t, ok)
	assert.Equal(t, created.ID, s.ID)
	assert.Equal(t, strategy.LanguageES, s.Config.Language)

	dup, err := c.Duplicate(context.Background(), "s1", "")
	require.NoError(t, err)
	assert.Equal(t, "Alpha (Copy)", dup.Name)
	assert.Len(t, c.Strategies(), 5)
}

func TestControllerSyncPromptLanguage(t *testing.T) {
	c, api := newTestController(t)
	_, err := c.Select("s1")
	require.NoError(t, err)

	c.SetLocale("zh")
	assert.Equal(t, StateClean, c.State())
	assert.Equal(t, strategy.LanguageEN, c.Config().Language)

	require.NoError(t, c.SyncPromptLanguage(context.Background()))
	assert.Equal(t, StateDirty, c.State())
	assert.Equal(t, []string{"zh"}, api.langs)

	cfg := c.Config()
	assert.Equal(t, strategy.LanguageZH, cfg.Language)
	assert.Equal(t, strategy.DefaultPromptSections(strategy.LanguageZH), cfg.PromptSections)
}

func TestControllerPreviewUsesUnsavedConfig(t *testing.T) {
	c, _ := newTestController(t)
	_, err := c.PreviewPrompt(context.Background(), 1000, "balanced", false)
	assert.ErrorIs(t, err, ErrNoSelection)

	_, err = c.Select("s1")
	require.NoError(t, err)
	rc := c.Config().RiskControl
	rc.MaxPositions = 9
	require.NoError(t, c.SetRiskControl(rc))

	resp, err := c.PreviewPrompt(context.Background(), 1000, "aggressive", false)
	require.NoError(t, err)
	assert.Equal(t, "max positions 9", resp.SystemPrompt)
	assert.Equal(t, "aggressive", resp.PromptVariant)
	assert.Equal(t, StateDirty, c.State())
}

func TestControllerTestRun(t *testing.T) {
	c, api := newTestController(t)
	_, err := c.Select("s1")
	require.NoError(t, err)

	_, err = c.TestRun(context.Background(), "", "balanced", true)
	assert.ErrorIs(t, err, ErrModelRequired)
	assert.NotEmpty(t, c.Error())
	assert.Empty(t, api.testRuns)
	c.ClearError()

	resp, err := c.TestRun(context.Background(), "", "balanced", false)
	require.NoError(t, err)
	assert.Equal(t, "user", resp.UserPrompt)
	assert.Empty(t, c.Error())

	resp, err = c.TestRun(context.Background(), "m1", "balanced", true)
	require.NoError(t, err)
	assert.Equal(t, "upstream timeout", resp.Error)
	assert.Equal(t, "upstream timeout", c.Error())
}

func TestControllerExportImportRoundTrip(t *testing.T) {
	c, _ := newTestController(t)
	_, err := c.Select("s1")
	require.NoError(t, err)
	require.NoError(t, c.SetCustomPrompt("exported text"))
	require.NoError(t, c.Save(context.Background()))

	name, err := c.ExportFilename()
	require.NoError(t, err)
	assert.Equal(t, "strategy_alpha_2026-03-01.json", name)

	var buf bytes.Buffer
	require.NoError(t, c.Export(&buf))

	imported, err := c.Import(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, "Alpha (Imported)", imported.Name)
	assert.Equal(t, "exported text", imported.Config.CustomPrompt)

	_, err = c.Import(context.Background(), strings.NewReader(`{"config":{}}`))
	assert.ErrorIs(t, err, strategy.ErrInvalidImport)
	assert.NotEmpty(t, c.Error())
}

func TestControllerRefreshFailure(t *testing.T) {
	c, api := newTestController(t)
	_, err := c.Select("s1")
	require.NoError(t, err)

	api.failList = errors.New("connection refused")
	require.Error(t, c.Refresh(context.Background()))
	assert.Equal(t, StateClean, c.State())
	assert.Equal(t, "connection refused", c.Error())
	assert.Len(t, c.Strategies(), 3)
}
