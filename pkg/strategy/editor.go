package strategy

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
)

var (
	ErrReadOnly     = errors.New("strategy: editor is read-only")
	ErrUnknownField = errors.New("strategy: unknown field")
	ErrDerivedField = errors.New("strategy: field is derived and cannot be set")
	ErrBandIndex    = errors.New("strategy: tighten band index out of range")
)

// Range 数值输入控件的取值范围
type Range struct {
	Min     float64
	Max     float64
	Integer bool
}

// Clamp 将数值限制在范围内，整数字段四舍五入
func (r Range) Clamp(v float64) float64 {
	if r.Integer {
		v = math.Round(v)
	}
	return math.Min(r.Max, math.Max(r.Min, v))
}

// NumberRanges 各数值字段在编辑控件上的范围，按 JSON 字段名索引
var NumberRanges = map[string]Range{
	"ai500_limit":                      {Min: 1, Max: 100, Integer: true},
	"oi_top_limit":                     {Min: 1, Max: 100, Integer: true},
	"primary_count":                    {Min: 10, Max: 500, Integer: true},
	"limit":                            {Min: 1, Max: 100, Integer: true},
	"max_positions":                    {Min: 1, Max: 20, Integer: true},
	"btc_eth_max_leverage":             {Min: 1, Max: 125, Integer: true},
	"altcoin_max_leverage":             {Min: 1, Max: 75, Integer: true},
	"btc_eth_max_position_value_ratio": {Min: 0.1, Max: 20},
	"altcoin_max_position_value_ratio": {Min: 0.1, Max: 20},
	"min_risk_reward_ratio":            {Min: 0, Max: 20},
	"max_margin_usage":                 {Min: 0, Max: 1},
	"min_position_size":                {Min: 0, Max: 1e6},
	"min_confidence":                   {Min: 0, Max: 100, Integer: true},
	"activation_pct":                   {Min: 0, Max: 1000},
	"trail_pct":                        {Min: 0.1, Max: 100},
	"check_interval_ms":                {Min: 100, Max: 3600000, Integer: true},
	"close_pct":                        {Min: 0.01, Max: 1},
	"profit_pct":                       {Min: 0.1, Max: 1000},
}

// Editor 受控的配置段编辑器：每次修改都基于上一版子文档做浅合并，
// 并通过 onChange 发出完整的子文档。onChange 返回错误时修改不生效。
type Editor[T any] struct {
	value    T
	disabled bool
	onChange func(T) error
	derived  map[string]struct{}
	fix      func(T) T
}

// NewEditor 创建编辑器，disabled 为 true 时拒绝所有修改
func NewEditor[T any](value T, disabled bool, onChange func(T) error) *Editor[T] {
	return &Editor[T]{value: value, disabled: disabled, onChange: onChange}
}

// Value 当前子文档
func (e *Editor[T]) Value() T {
	return e.value
}

// Disabled 是否只读
func (e *Editor[T]) Disabled() bool {
	return e.disabled
}

// Set 将单个字段合并进子文档并发出完整子文档
func (e *Editor[T]) Set(key string, value any) error {
	if e.disabled {
		return ErrReadOnly
	}
	if _, ok := e.derived[key]; ok {
		return fmt.Errorf("%w: %s", ErrDerivedField, key)
	}
	next, err := Merge(e.value, key, value)
	if err != nil {
		return err
	}
	return e.emit(next)
}

// SetNumber 按控件范围截断后再写入
func (e *Editor[T]) SetNumber(key string, value float64) error {
	if r, ok := NumberRanges[key]; ok {
		value = r.Clamp(value)
	}
	return e.Set(key, value)
}

// Replace 整体替换子文档
func (e *Editor[T]) Replace(next T) error {
	if e.disabled {
		return ErrReadOnly
	}
	return e.emit(next)
}

// Update 由函数计算新的子文档，changed 为 false 时不发出变更
func (e *Editor[T]) Update(fn func(T) (T, bool)) error {
	if e.disabled {
		return ErrReadOnly
	}
	next, changed := fn(e.value)
	if !changed {
		return nil
	}
	return e.emit(next)
}

func (e *Editor[T]) emit(next T) error {
	if e.fix != nil {
		next = e.fix(next)
	}
	if e.onChange != nil {
		if err := e.onChange(next); err != nil {
			return err
		}
	}
	e.value = next
	return nil
}

// Merge 将 key 对应的 JSON 字段替换为 value，其余字段原样保留
func Merge[T any](prev T, key string, value any) (T, error) {
	var zero T
	next := prev
	rv := reflect.ValueOf(&next).Elem()
	if rv.Kind() != reflect.Struct {
		return zero, fmt.Errorf("merge %s: %T is not a struct", key, prev)
	}
	field, ok := fieldByJSONName(rv, key)
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrUnknownField, key)
	}

	v := reflect.ValueOf(value)
	if v.IsValid() && v.Type().AssignableTo(field.Type()) {
		field.Set(v)
		return next, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return zero, err
	}
	ptr := reflect.New(field.Type())
	if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
		return zero, fmt.Errorf("merge %s: %w", key, err)
	}
	field.Set(ptr.Elem())
	return next, nil
}

func fieldByJSONName(rv reflect.Value, key string) (reflect.Value, bool) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		if name == key {
			return rv.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// NewCoinSourceEditor 币种来源编辑器
func NewCoinSourceEditor(cs CoinSource, disabled bool, onChange func(CoinSource) error) *Editor[CoinSource] {
	return NewEditor(cs, disabled, onChange)
}

// AddStaticCoin 规范化后加入静态币种列表，已存在时不产生变更
func AddStaticCoin(e *Editor[CoinSource], raw string) error {
	return e.Update(func(cs CoinSource) (CoinSource, bool) {
		var changed bool
		cs.StaticCoins, changed = addSymbol(cs.StaticCoins, raw)
		return cs, changed
	})
}

// RemoveStaticCoin 从静态币种列表移除
func RemoveStaticCoin(e *Editor[CoinSource], symbol string) error {
	return e.Update(func(cs CoinSource) (CoinSource, bool) {
		var changed bool
		cs.StaticCoins, changed = removeSymbol(cs.StaticCoins, symbol)
		return cs, changed
	})
}

// AddExcludedCoin 规范化后加入排除列表
func AddExcludedCoin(e *Editor[CoinSource], raw string) error {
	return e.Update(func(cs CoinSource) (CoinSource, bool) {
		var changed bool
		cs.ExcludedCoins, changed = addSymbol(cs.ExcludedCoins, raw)
		return cs, changed
	})
}

// RemoveExcludedCoin 从排除列表移除
func RemoveExcludedCoin(e *Editor[CoinSource], symbol string) error {
	return e.Update(func(cs CoinSource) (CoinSource, bool) {
		var changed bool
		cs.ExcludedCoins, changed = removeSymbol(cs.ExcludedCoins, symbol)
		return cs, changed
	})
}

func addSymbol(list []string, raw string) ([]string, bool) {
	sym := NormalizeSymbol(raw)
	if sym == "" {
		return list, false
	}
	for _, s := range list {
		if s == sym {
			return list, false
		}
	}
	out := make([]string, 0, len(list)+1)
	out = append(out, list...)
	return append(out, sym), true
}

func removeSymbol(list []string, symbol string) ([]string, bool) {
	target := NormalizeSymbol(symbol)
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s == target || s == symbol {
			continue
		}
		out = append(out, s)
	}
	return out, len(out) != len(list)
}

// NewIndicatorsEditor 指标编辑器，原始K线开关始终为开启
func NewIndicatorsEditor(ind Indicators, disabled bool, onChange func(Indicators) error) *Editor[Indicators] {
	e := NewEditor(ind, disabled, onChange)
	e.derived = map[string]struct{}{"enable_raw_klines": {}}
	e.fix = func(next Indicators) Indicators {
		next.EnableRawKlines = true
		return next
	}
	return e
}

// NewRiskControlEditor 风控编辑器
func NewRiskControlEditor(rc RiskControl, disabled bool, onChange func(RiskControl) error) *Editor[RiskControl] {
	e := NewEditor(rc, disabled, onChange)
	e.fix = func(next RiskControl) RiskControl {
		next.TrailingStop = syncInterval(next.TrailingStop)
		return next
	}
	return e
}

// NewTrailingStopEditor 移动止损编辑器，秒级间隔由毫秒间隔推导
func NewTrailingStopEditor(ts TrailingStop, disabled bool, onChange func(TrailingStop) error) *Editor[TrailingStop] {
	e := NewEditor(ts, disabled, onChange)
	e.derived = map[string]struct{}{"check_interval_sec": {}}
	e.fix = syncInterval
	return e
}

func syncInterval(ts TrailingStop) TrailingStop {
	ts.CheckIntervalSec = IntervalSeconds(ts.CheckIntervalMs)
	return ts
}

// AppendBand 追加收紧档位：盈利 10%，回撤取 max(0.2, trail_pct/2)
func (ts TrailingStop) AppendBand() TrailingStop {
	bands := make([]TightenBand, 0, len(ts.TightenBands)+1)
	bands = append(bands, ts.TightenBands...)
	ts.TightenBands = append(bands, TightenBand{
		ProfitPct: 10,
		TrailPct:  math.Max(0.2, ts.TrailPct/2),
	})
	return ts
}

// UpdateBand 替换第 i 个档位，不重新排序
func (ts TrailingStop) UpdateBand(i int, band TightenBand) (TrailingStop, error) {
	if i < 0 || i >= len(ts.TightenBands) {
		return ts, ErrBandIndex
	}
	bands := cloneSlice(ts.TightenBands)
	bands[i] = band
	ts.TightenBands = bands
	return ts, nil
}

// RemoveBand 删除第 i 个档位
func (ts TrailingStop) RemoveBand(i int) (TrailingStop, error) {
	if i < 0 || i >= len(ts.TightenBands) {
		return ts, ErrBandIndex
	}
	bands := make([]TightenBand, 0, len(ts.TightenBands)-1)
	bands = append(bands, ts.TightenBands[:i]...)
	ts.TightenBands = append(bands, ts.TightenBands[i+1:]...)
	return ts, nil
}

// NewPromptSectionsEditor 提示词段落编辑器
func NewPromptSectionsEditor(ps PromptSections, disabled bool, onChange func(PromptSections) error) *Editor[PromptSections] {
	return NewEditor(ps, disabled, onChange)
}

// ResetPromptSection 将编辑器中的段落恢复为默认文本
func ResetPromptSection(e *Editor[PromptSections], lang Language, section Section) error {
	return e.Update(func(ps PromptSections) (PromptSections, bool) {
		next := ResetSection(ps, lang, section)
		return next, next != ps
	})
}

// PublishSettings 发布元数据
type PublishSettings struct {
	IsPublic      bool `json:"is_public"`
	ConfigVisible bool `json:"config_visible"`
}
