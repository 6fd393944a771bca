package web

import (
	"embed"
	"io/fs"
)

// 前端构建产物，由 dashboard 构建时写入 dist
//
//go:embed all:dist
var dist embed.FS

// Assets 返回去掉 dist 前缀的静态资源
func Assets() fs.FS {
	sub, _ := fs.Sub(dist, "dist")
	return sub
}
