package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/John-Robertt/movienotes/internal/domain"
)

// ErrNotFound 表示所有可用 provider 都没有找到匹配结果（不是失败）。
var ErrNotFound = errors.New("未找到匹配结果")

const (
	StageSearch = "search"
	StageFetch  = "fetch"
	StageParse  = "parse"
	StageOK     = "ok"
)

// Attempt 记录一次 provider 尝试（用于解释回退原因）。
type Attempt struct {
	Provider string // provider name（小写）
	Stage    string // search / fetch / parse / ok
	Err      error  // nil when Stage=="ok" 或 search 无结果
}

// Result 是一次成功查找的产物。
type Result struct {
	Raw          domain.RawRecord
	ProviderUsed string
	ID           string
	Website      string
}

// Error 是 provider 阶段的可追溯错误。
// 上层据此把失败归类为 provider_unavailable / parse_failed。
type Error struct {
	Provider string // provider name（小写）
	Stage    string // search / fetch / parse
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider=%s stage=%s: %v", e.Provider, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// LookupTrace 按“requested -> 其余已注册 provider”的顺序查找 title，只取每个 provider 的第一个候选，
// 同时返回 provider 的尝试链路。
//
// 结论规则：
// - 任一 provider 成功 => 返回该结果
// - 所有 provider 都是“搜索无结果” => ErrNotFound
// - 其余情况 => 最后一个 *Error（至少有一个 provider 真正失败）
func LookupTrace(ctx context.Context, reg Registry, providerRequested, title string, c *http.Client) (Result, []Attempt, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Result{}, nil, fmt.Errorf("title 不能为空")
	}

	order, err := reg.fallbackOrder(providerRequested)
	if err != nil {
		return Result{}, nil, err
	}

	var (
		attempts []Attempt
		lastErr  error
	)
	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return Result{}, attempts, err
		}
		p, _ := reg.Get(name)

		ids, serr := p.Search(ctx, title, c)
		if serr != nil {
			lastErr = &Error{Provider: name, Stage: StageSearch, Err: serr}
			attempts = append(attempts, Attempt{Provider: name, Stage: StageSearch, Err: serr})
			continue
		}
		if len(ids) == 0 {
			attempts = append(attempts, Attempt{Provider: name, Stage: StageSearch})
			continue
		}

		id := ids[0]
		page, ferr := p.Fetch(ctx, id, c)
		if ferr != nil {
			lastErr = &Error{Provider: name, Stage: StageFetch, Err: ferr}
			attempts = append(attempts, Attempt{Provider: name, Stage: StageFetch, Err: ferr})
			continue
		}

		raw, perr := p.Parse(id, page)
		if perr != nil {
			lastErr = &Error{Provider: name, Stage: StageParse, Err: perr}
			attempts = append(attempts, Attempt{Provider: name, Stage: StageParse, Err: perr})
			continue
		}

		attempts = append(attempts, Attempt{Provider: name, Stage: StageOK})
		return Result{Raw: raw, ProviderUsed: name, ID: id, Website: page.URL}, attempts, nil
	}
	if lastErr == nil {
		return Result{}, attempts, ErrNotFound
	}
	return Result{}, attempts, lastErr
}
