package strategy

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// 自定义校验标签
const (
	TagSymbol          = "symbol"
	TagRankingDuration = "ranking_duration"
	TagRankingLimit    = "ranking_limit"
	TagIntervalSync    = "interval_sync"
)

var defaultValidator = NewValidator()

// NewValidator 创建注册了策略配置规则的校验器，字段名使用 JSON 名称
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	RegisterValidations(v)
	return v
}

// RegisterValidations 向已有校验器注册策略配置的字段级与结构级规则
func RegisterValidations(v *validator.Validate) {
	_ = v.RegisterValidation(TagSymbol, func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s != "" && NormalizeSymbol(s) == s
	})
	v.RegisterStructValidation(validateIndicators, Indicators{})
	v.RegisterStructValidation(validateTrailingStop, TrailingStop{})
}

func validateIndicators(sl validator.StructLevel) {
	ind := sl.Current().Interface().(Indicators)
	checkRanking(sl, ind.EnableOIRanking, ind.OIRanking, "oi_ranking", "OIRanking")
	checkRanking(sl, ind.EnableNetflowRanking, ind.NetflowRanking, "netflow_ranking", "NetflowRanking")
	checkRanking(sl, ind.EnablePriceRanking, ind.PriceRanking, "price_ranking", "PriceRanking")
}

func checkRanking(sl validator.StructLevel, enabled bool, rc RankingConfig, field, structField string) {
	if !enabled {
		return
	}
	switch rc.Duration {
	case Duration1h, Duration4h, Duration24h:
	default:
		sl.ReportError(rc.Duration, field+".duration", structField+".Duration", TagRankingDuration, "1h 4h 24h")
	}
	if rc.Limit < 1 || rc.Limit > 100 {
		sl.ReportError(rc.Limit, field+".limit", structField+".Limit", TagRankingLimit, "100")
	}
}

func validateTrailingStop(sl validator.StructLevel) {
	ts := sl.Current().Interface().(TrailingStop)
	if ts.CheckIntervalSec != IntervalSeconds(ts.CheckIntervalMs) {
		sl.ReportError(ts.CheckIntervalSec, "check_interval_sec", "CheckIntervalSec", TagIntervalSync, "check_interval_ms")
	}
}

// FieldError 单个字段的校验失败
type FieldError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param,omitempty"`
}

// DefaultValidator 包内共享的校验器，Validate 使用它，翻译也注册在它上面
func DefaultValidator() *validator.Validate {
	return defaultValidator
}

// Validate 校验完整配置，返回 validator.ValidationErrors 或 nil
func Validate(cfg Config) error {
	return defaultValidator.Struct(cfg)
}

// FieldErrors 将校验错误展开为以 JSON 路径命名的字段列表
func FieldErrors(err error) []FieldError {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return nil
	}
	out := make([]FieldError, 0, len(ves))
	for _, fe := range ves {
		out = append(out, FieldError{
			Field: FieldPath(fe),
			Tag:   fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}

// FieldPath 去掉根结构体名，返回 coin_source.static_coins[0] 形式的路径
func FieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
