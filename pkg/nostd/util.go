package nostd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
)

const Token = "X-Studio-Token"

// GetToken 从请求头、查询参数或 Cookie 中读取令牌
func GetToken(c echo.Context) string {
	token := c.Request().Header.Get(Token)
	if len(token) > 0 {
		return token
	}
	token = c.QueryParam(Token)
	if token != "" {
		return token
	}
	cookie, err := c.Cookie(Token)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func SafePathJoin(baseDir, userInput string) (string, error) {
	cleanedPath := filepath.Clean(userInput)
	absBaseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return "", err
	}

	absFilePath, err := filepath.Abs(filepath.Join(absBaseDir, cleanedPath))
	if err != nil {
		return "", err
	}

	if !strings.HasPrefix(absFilePath, absBaseDir) {
		return "", fmt.Errorf("invalid file path: %s", userInput)
	}
	return absFilePath, nil
}

// Locale 请求语言：优先 lang 查询参数，其次 Accept-Language 的首选语言
func Locale(c echo.Context) string {
	if lang := c.QueryParam("lang"); lang != "" {
		return strings.ToLower(lang)
	}
	accept := c.Request().Header.Get("Accept-Language")
	if accept == "" {
		return ""
	}
	first := strings.TrimSpace(strings.Split(accept, ",")[0])
	first = strings.SplitN(first, ";", 2)[0]
	first = strings.SplitN(first, "-", 2)[0]
	return strings.ToLower(first)
}
