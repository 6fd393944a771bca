package handler

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"
)

func currentUserID(c echo.Context) string {
	return cast.ToString(c.Get("user_id"))
}

// ifMatchVersion 解析 If-Match 中的版本号，支持 "3"、W/"3"、3
func ifMatchVersion(c echo.Context) int {
	v := strings.TrimSpace(c.Request().Header.Get("If-Match"))
	v = strings.TrimPrefix(v, "W/")
	return cast.ToInt(strings.Trim(v, `"`))
}

func setETag(c echo.Context, version int) {
	c.Response().Header().Set("ETag", fmt.Sprintf(`"%d"`, version))
}
