package i18n

import (
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/es"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
)

const (
	KeyImportedSuffix     = "strategy.imported_suffix"
	KeyCopySuffix         = "strategy.copy_suffix"
	KeyDefaultName        = "strategy.default_name"
	KeyDefaultDescription = "strategy.default_description"
	KeyActivated          = "strategy.activated"
	KeyUnsavedChanges     = "studio.unsaved_changes"
	KeyInvalidImport      = "studio.invalid_import"
	KeyModelRequired      = "studio.model_required"
	KeyNoSelection        = "studio.no_selection"
)

var messages = map[string]map[string]string{
	"en": {
		KeyImportedSuffix:     " (Imported)",
		KeyCopySuffix:         " (Copy)",
		KeyDefaultName:        "Default Strategy",
		KeyDefaultDescription: "System default strategy. Duplicate it to customize.",
		KeyActivated:          "Strategy *{0}* is now active",
		KeyUnsavedChanges:     "You have unsaved changes",
		KeyInvalidImport:      "Invalid strategy file: name and config are required",
		KeyModelRequired:      "Select an enabled AI model first",
		KeyNoSelection:        "No strategy selected",
	},
	"zh": {
		KeyImportedSuffix:     "（导入）",
		KeyCopySuffix:         "（副本）",
		KeyDefaultName:        "默认策略",
		KeyDefaultDescription: "系统默认策略，复制后可自定义。",
		KeyActivated:          "策略 *{0}* 已激活",
		KeyUnsavedChanges:     "有未保存的修改",
		KeyInvalidImport:      "策略文件无效：缺少名称或配置",
		KeyModelRequired:      "请先选择一个已启用的 AI 模型",
		KeyNoSelection:        "未选择策略",
	},
	"es": {
		KeyImportedSuffix:     " (Importado)",
		KeyCopySuffix:         " (Copia)",
		KeyDefaultName:        "Estrategia predeterminada",
		KeyDefaultDescription: "Estrategia del sistema. Duplícala para personalizarla.",
		KeyActivated:          "La estrategia *{0}* está activa",
		KeyUnsavedChanges:     "Tienes cambios sin guardar",
		KeyInvalidImport:      "Archivo de estrategia no válido: se requieren nombre y configuración",
		KeyModelRequired:      "Selecciona primero un modelo de IA habilitado",
		KeyNoSelection:        "No hay ninguna estrategia seleccionada",
	},
}

var uni = NewUniversal()

// NewUniversal 创建一个载入了消息表的翻译器集合（en 为回退语言）
func NewUniversal() *ut.UniversalTranslator {
	enLocale := en.New()
	u := ut.New(enLocale, enLocale, zh.New(), es.New())
	for locale, table := range messages {
		trans, _ := u.GetTranslator(locale)
		for key, text := range table {
			if err := trans.Add(key, text, true); err != nil {
				panic(err)
			}
		}
	}
	return u
}

// Translator 返回指定语言的翻译器，未知语言回退为英文
func Translator(locale string) ut.Translator {
	trans, _ := uni.GetTranslator(locale)
	return trans
}

// T 翻译 key，参数按 {0} {1} 顺序替换；缺失时回退英文，再缺失返回 key 本身
func T(locale, key string, params ...string) string {
	if s, err := Translator(locale).T(key, params...); err == nil {
		return s
	}
	if s, err := Translator("en").T(key, params...); err == nil {
		return s
	}
	return key
}
