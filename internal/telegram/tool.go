package telegram

import "strings"

var markdownV2Replacer = strings.NewReplacer(
	"\\", "\\\\",
	"*", "\\*",
	"_", "\\_",
	"`", "\\`",
	"{", "\\{",
	"}", "\\}",
	"[", "\\[",
	"]", "\\]",
	"(", "\\(",
	")", "\\)",
	"~", "\\~",
	">", "\\>",
	"#", "\\#",
	"+", "\\+",
	"-", "\\-",
	"=", "\\=",
	"|", "\\|",
	".", "\\.",
	"!", "\\!",
)

// EscapeMarkdown 转义 MarkdownV2 格式中的特殊字符
func EscapeMarkdown(input string) string {
	return markdownV2Replacer.Replace(input)
}
