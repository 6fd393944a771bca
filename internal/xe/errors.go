package xe

import "github.com/go-orz/orz"

var (
	ErrInvalidParams        = orz.NewError(10400, "参数无效")
	ErrInvalidToken         = orz.NewError(10403, "令牌无效")
	ErrPermissionDenied     = orz.NewError(10401, "您没有权限查看/修改/删除此数据")
	ErrAccountAlreadyUsed   = orz.NewError(10000, "账户已被使用")
	ErrIncorrectPassword    = orz.NewError(10001, "账户或密码错误")
	ErrIncorrectOldPassword = orz.NewError(10003, "原密码错误")
	ErrUserDisabled         = orz.NewError(10004, "用户已被禁用")
	ErrAlreadySetup         = orz.NewError(10005, "系统已经初始化，无法重复设置")

	ErrStrategyNotFound        = orz.NewError(20001, "策略不存在")
	ErrDefaultStrategyReadOnly = orz.NewError(20002, "系统默认策略不可修改或删除，请先复制")
	ErrConcurrentModification  = orz.NewError(20003, "策略已被其他会话修改，请刷新后重试")
	ErrInvalidConfig           = orz.NewError(20004, "策略配置无效")
	ErrInvalidImport           = orz.NewError(20005, "导入文件无效：缺少名称或配置")
	ErrPromptTemplateNotFound  = orz.NewError(20006, "提示词模板不存在")

	ErrModelNotFound     = orz.NewError(30001, "AI 模型不存在")
	ErrModelDisabled     = orz.NewError(30002, "AI 模型未启用")
	ErrModelNotSupported = orz.NewError(30003, "不支持的 AI 模型供应商")
)
