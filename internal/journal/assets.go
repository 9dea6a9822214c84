package journal

import (
	"embed"
	"io/fs"
	"mime"
	"path"
	"strings"

	"github.com/gofiber/fiber/v3"
)

//go:embed static
var staticFiles embed.FS

// indexFile 是站点根与前端路由共用的应用外壳。
const indexFile = "index.html"

// ShellAssets 是嵌入的静态资源路径，按站点路径列出。
var ShellAssets = []string{
	"/",
	"/offline.html",
	"/manifest.json",
	"/favicon.png",
	"/icons/icon-192.png",
	"/assets/app.js",
	"/assets/app.css",
}

func staticFS() fs.FS {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// assetHandler 输出嵌入的静态资源；没有扩展名的未知路径回退到应用外壳，
// 由前端路由处理。
func assetHandler(files fs.FS) fiber.Handler {
	return func(c fiber.Ctx) error {
		clean := path.Clean("/" + c.Path())
		name := strings.TrimPrefix(clean, "/")
		if name == "" {
			name = indexFile
		}

		data, err := fs.ReadFile(files, name)
		if err != nil {
			if path.Ext(clean) != "" {
				return c.SendStatus(fiber.StatusNotFound)
			}
			name = indexFile
			if data, err = fs.ReadFile(files, name); err != nil {
				return err
			}
		}

		c.Set(fiber.HeaderContentType, contentTypeFor(name))
		c.Set(fiber.HeaderCacheControl, "no-cache")
		return c.Send(data)
	}
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return fiber.MIMEOctetStream
}
