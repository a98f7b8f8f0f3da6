package provider

import (
	"context"
	"net/http"

	"github.com/John-Robertt/movienotes/internal/domain"
)

// Page 是 Fetch 抓取到的原始内容：主页面 + 可选的附属页面（例如剧情页）。
// Parse 只依赖 Page，不再访问网络。
type Page struct {
	URL  string
	Body []byte
	Aux  map[string][]byte
}

// Provider 把“站点变化”限制在 provider 包内部；核心流程只依赖统一接口与稳定的 RawRecord。
//
// 约束：
// - Search 返回按相关性排序的候选 ID；没有结果时返回空切片与 nil 错误
// - Fetch/Search 不做缓存、不做限速（重试由 httpx 统一实现）
// - Parse 必须是纯函数：相同输入 => 相同输出
type Provider interface {
	Name() string
	Search(ctx context.Context, title string, c *http.Client) ([]string, error)
	Fetch(ctx context.Context, id string, c *http.Client) (Page, error)
	Parse(id string, p Page) (domain.RawRecord, error)
}
