package nostd

import (
	"errors"

	"github.com/dushixiang/prism-studio/pkg/i18n"
	"github.com/dushixiang/prism-studio/pkg/strategy"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	es_translations "github.com/go-playground/validator/v10/translations/es"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

// CustomValidator echo 校验器，错误信息可翻译为 en/zh/es
type CustomValidator struct {
	Validator *validator.Validate
	uni       *ut.UniversalTranslator
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.Validator.Struct(i)
}

var customMessages = map[string]map[string]string{
	"en": {
		strategy.TagSymbol:          "{0} must be a normalized symbol",
		strategy.TagRankingDuration: "{0} must be one of [{1}]",
		strategy.TagRankingLimit:    "{0} must be between 1 and {1}",
		strategy.TagIntervalSync:    "{0} must be derived from {1}",
	},
	"zh": {
		strategy.TagSymbol:          "{0}必须是规范化的币种代码",
		strategy.TagRankingDuration: "{0}必须是[{1}]中的一个",
		strategy.TagRankingLimit:    "{0}必须在1到{1}之间",
		strategy.TagIntervalSync:    "{0}必须由{1}推导",
	},
	"es": {
		strategy.TagSymbol:          "{0} debe ser un símbolo normalizado",
		strategy.TagRankingDuration: "{0} debe ser uno de [{1}]",
		strategy.TagRankingLimit:    "{0} debe estar entre 1 y {1}",
		strategy.TagIntervalSync:    "{0} debe derivarse de {1}",
	},
}

// TransInit 注册默认翻译与策略配置自定义标签的翻译
func (cv *CustomValidator) TransInit() error {
	registers := map[string]func(*validator.Validate, ut.Translator) error{
		"en": en_translations.RegisterDefaultTranslations,
		"zh": zh_translations.RegisterDefaultTranslations,
		"es": es_translations.RegisterDefaultTranslations,
	}
	cv.uni = i18n.NewUniversal()
	for locale, register := range registers {
		trans, _ := cv.uni.GetTranslator(locale)
		if err := register(cv.Validator, trans); err != nil {
			return err
		}
		for tag, text := range customMessages[locale] {
			tag, text := tag, text
			err := cv.Validator.RegisterTranslation(tag, trans,
				func(t ut.Translator) error {
					return t.Add(tag, text, true)
				},
				func(t ut.Translator, fe validator.FieldError) string {
					msg, err := t.T(tag, strategy.FieldPath(fe), fe.Param())
					if err != nil {
						return fe.Error()
					}
					return msg
				})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// Translate 将校验错误翻译为 字段路径 -> 消息
func (cv *CustomValidator) Translate(err error, locale string) map[string]string {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return nil
	}
	if cv.uni == nil {
		return nil
	}
	trans, _ := cv.uni.GetTranslator(locale)
	out := make(map[string]string, len(ves))
	for _, fe := range ves {
		out[strategy.FieldPath(fe)] = fe.Translate(trans)
	}
	return out
}

// NewCustomValidator 基于策略包的共享校验器创建，服务层返回的校验错误同样可以翻译
func NewCustomValidator() (*CustomValidator, error) {
	cv := &CustomValidator{Validator: strategy.DefaultValidator()}
	if err := cv.TransInit(); err != nil {
		return nil, err
	}
	return cv, nil
}
