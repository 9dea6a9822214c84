package version

import "fmt"

// Version/Commit 可在构建时通过 -ldflags 注入，默认使用开发占位符。
var (
	Version = "0.1.0"
	Commit  = "dev"
)

// Name 是二进制与日志中使用的服务名。
const Name = "journal-cache"

// Full 返回便于 CLI 打印的完整版本信息。
func Full() string {
	return fmt.Sprintf("%s %s (%s)", Name, Version, Commit)
}

// UserAgent 用于控制器自身发起的请求（precache 等没有浏览器 UA 的场景）。
func UserAgent() string {
	return Name + "/" + Version
}
