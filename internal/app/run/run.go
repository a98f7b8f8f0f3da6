package run

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/google/uuid"

	"github.com/John-Robertt/movienotes/internal/config"
	"github.com/John-Robertt/movienotes/internal/domain"
	"github.com/John-Robertt/movienotes/internal/export"
	"github.com/John-Robertt/movienotes/internal/infra/httpx"
	"github.com/John-Robertt/movienotes/internal/infra/logx"
	"github.com/John-Robertt/movienotes/internal/normalize"
	"github.com/John-Robertt/movienotes/internal/page"
	"github.com/John-Robertt/movienotes/internal/provider"
)

var log = logx.Get("run")

// Execute 执行一次 run（dry-run/apply），返回结果集与对外稳定的 RunReport。
// 单条失败只降级为 item 级结果：每个输入标题都会得到一条记录。
func Execute(ctx context.Context, eff config.EffectiveConfig, reg provider.Registry, titles []string) (domain.ResultSet, domain.RunReport) {
	return ExecuteWithObserver(ctx, eff, reg, titles, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, reg provider.Registry, titles []string, obs Observer) (domain.ResultSet, domain.RunReport) {
	started := time.Now().UTC()
	total := len(titles)

	if obs != nil {
		obs.OnStart(eff, total)
	}

	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		Input:     eff.Input,
		DryRun:    !eff.Apply,
		StartedAt: started,
		Items:     make([]domain.ItemResult, 0, total+1),
	}
	rs := domain.ResultSet{
		Query:   make([]string, 0, total),
		Records: make([]domain.MovieRecord, 0, total),
		Status:  make([]domain.LookupStatus, 0, total),
	}

	norm := normalize.Normalizer{Defaults: eff.Defaults, Log: logx.Get("normalize")}

	// client 与 provider 在整个 run 内复用。
	client, err := httpx.NewClient(httpx.Options{
		ProxyURL: eff.ProxyURL,
		Timeout:  eff.HTTPTimeout,
		RetryMax: eff.RetryMax,
	})
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeConfigInvalid, fmt.Sprintf("proxy.url 无效：%v", err)))
	}

	r := &runner{eff: eff, reg: reg, client: client, norm: norm, metric: &metrics.JaroWinkler{CaseSensitive: false}}

	lookupStarted := time.Now()
	for i, title := range titles {
		idx := i + 1
		oneStarted := time.Now()
		if obs != nil {
			obs.OnItemStart(idx, total, title)
		}

		var (
			rec  domain.MovieRecord
			st   domain.LookupStatus
			item domain.ItemResult
		)
		switch {
		case ctx.Err() != nil:
			rec, st, item = r.skipped(idx, title, fmt.Sprintf("运行已取消（%v），未查找", ctx.Err()))
		case r.client == nil:
			rec, st, item = r.skipped(idx, title, "HTTP client 初始化失败，未查找")
		default:
			rec, st, item = r.lookupOne(ctx, idx, title)
		}

		rs.Append(title, rec, st)
		rr.Items = append(rr.Items, item)
		if obs != nil {
			obs.OnItemDone(idx, total, item, time.Since(oneStarted))
		}
	}
	if obs != nil {
		obs.OnPhaseDone("lookup", map[string]any{
			"total":     total,
			"found":     rs.Count(domain.LookupFound),
			"not_found": rs.Count(domain.LookupNotFound),
			"failed":    rs.Count(domain.LookupFailed),
		}, time.Since(lookupStarted))
	}

	if eff.Apply {
		// 已查到的结果总要落盘：取消只中止查找，不中止写出。
		writeOutputs(context.WithoutCancel(ctx), eff, rr.RunID, rs, &rr, obs)
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rs, rr
}

type runner struct {
	eff    config.EffectiveConfig
	reg    provider.Registry
	client *http.Client
	norm   normalize.Normalizer
	metric strutil.StringMetric
}

func (r *runner) baseItem(idx int, title string) domain.ItemResult {
	return domain.ItemResult{
		Index:             idx,
		Query:             title,
		ProviderRequested: r.eff.Provider,
		Defaulted:         []string{},
		Attempts:          []domain.ProviderAttempt{},
	}
}

// skipped 生成未查找的标题对应的记录（not-found 默认值，状态 failed）。
func (r *runner) skipped(idx int, title, msg string) (domain.MovieRecord, domain.LookupStatus, domain.ItemResult) {
	rec, _ := r.norm.Normalize(title, nil)
	item := r.baseItem(idx, title)
	item.Title = rec.Title
	item.Status = domain.StatusFailed
	item.ErrorCode = domain.ErrCodeProviderUnavailable
	item.ErrorMsg = msg
	return rec, domain.LookupFailed, item
}

func (r *runner) lookupOne(ctx context.Context, idx int, title string) (domain.MovieRecord, domain.LookupStatus, domain.ItemResult) {
	item := r.baseItem(idx, title)

	res, attempts, err := provider.LookupTrace(ctx, r.reg, r.eff.Provider, title, r.client)
	for _, a := range attempts {
		pa := domain.ProviderAttempt{Provider: a.Provider, Stage: a.Stage}
		if a.Err != nil {
			pa.Error = a.Err.Error()
		}
		item.Attempts = append(item.Attempts, pa)
	}

	if err != nil {
		rec, _ := r.norm.Normalize(title, nil)
		item.Title = rec.Title
		if errors.Is(err, provider.ErrNotFound) {
			item.Status = domain.StatusNotFound
			item.ErrorCode = domain.ErrCodeLookupFailed
			item.ErrorMsg = "所有 provider 均未找到匹配结果"
			log.Emit(logx.INFO, "未找到：%q", title)
			return rec, domain.LookupNotFound, item
		}
		fillProviderError(&item, err)
		log.Emit(logx.WARNING, "查找失败：%q：%s", title, item.ErrorMsg)
		return rec, domain.LookupFailed, item
	}

	rec, defaulted := r.norm.Normalize(title, &res.Raw)
	item.Title = rec.Title
	item.Status = domain.StatusFound
	item.ProviderUsed = res.ProviderUsed
	item.Website = res.Website
	for _, f := range defaulted {
		item.Defaulted = append(item.Defaulted, string(f))
	}

	item.MatchScore = r.score(title, rec.Title)
	if item.MatchScore < r.eff.MatchWarnBelow {
		log.Emit(logx.WARNING, "%q 匹配到 %q，相似度 %.2f 低于 %.2f，请人工确认", title, rec.Title, item.MatchScore, r.eff.MatchWarnBelow)
	}
	return rec, domain.LookupFound, item
}

// score 是查询与命中标题的相似度（0..1，保留三位小数）；只做提示，不参与选择。
func (r *runner) score(query, title string) float64 {
	s := strutil.Similarity(strings.TrimSpace(query), strings.TrimSpace(title), r.metric)
	return math.Round(s*1000) / 1000
}

// writeOutputs 写出导出物与页面，并把页面结果合并进 report。
func writeOutputs(ctx context.Context, eff config.EffectiveConfig, runID string, rs domain.ResultSet, rr *domain.RunReport, obs Observer) {
	exportStarted := time.Now()
	w, err := export.WriteAll(ctx, eff.OutDir, runID, rs, export.Options{LinkTitles: eff.LinkTitles})
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, err.Error()))
		log.Emit(logx.ERROR, "导出失败：%v", err)
	}
	if obs != nil {
		obs.OnPhaseDone("export", map[string]any{
			"snapshot": w.Snapshot,
			"csv":      w.CSV,
			"summary":  w.Summary,
			"ok":       err == nil,
		}, time.Since(exportStarted))
	}

	if !eff.Pages {
		return
	}

	pagesStarted := time.Now()
	dir := filepath.Join(eff.OutDir, page.DirName)
	results, err := page.WriteAll(dir, rs.Records)
	var written, kept, failed int
	for i := range rs.Records {
		it := itemByIndex(rr.Items, i+1)
		if it == nil {
			continue
		}
		if err != nil {
			failPage(it, "", fmt.Sprintf("页面目录不可用：%v", err))
			failed++
			continue
		}
		pr := results[i]
		it.Page = filepath.ToSlash(filepath.Join(page.DirName, pr.Name))
		it.PageStatus = pr.Status
		switch pr.Status {
		case domain.PageStatusWritten:
			written++
		case domain.PageStatusKept:
			kept++
		default:
			failPage(it, it.Page, fmt.Sprintf("写入页面失败：%v", pr.Err))
			failed++
		}
	}
	if obs != nil {
		obs.OnPhaseDone("pages", map[string]any{
			"written": written,
			"kept":    kept,
			"failed":  failed,
		}, time.Since(pagesStarted))
	}
}

func itemByIndex(items []domain.ItemResult, idx int) *domain.ItemResult {
	for i := range items {
		if items[i].Index == idx {
			return &items[i]
		}
	}
	return nil
}

// failPage 标记页面失败；已有的查找错误优先保留。
func failPage(it *domain.ItemResult, pagePath, msg string) {
	it.Page = pagePath
	it.PageStatus = domain.PageStatusFailed
	if it.ErrorCode == "" {
		it.ErrorCode = domain.ErrCodePageFailed
		it.ErrorMsg = msg
	}
}

func syntheticFailed(code, msg string) domain.ItemResult {
	return domain.ItemResult{
		Index:     0,
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
		Defaulted: []string{},
		Attempts:  []domain.ProviderAttempt{},
	}
}

func fillProviderError(item *domain.ItemResult, err error) {
	item.Status = domain.StatusFailed

	var pe *provider.Error
	if errors.As(err, &pe) {
		switch pe.Stage {
		case provider.StageParse:
			item.ErrorCode = domain.ErrCodeParseFailed
			item.ErrorMsg = humanizeParseError(pe.Provider, pe.Err)
		default:
			item.ErrorCode = domain.ErrCodeProviderUnavailable
			item.ErrorMsg = humanizeFetchError(pe.Provider, pe.Err)
		}
		return
	}

	item.ErrorCode = domain.ErrCodeProviderUnavailable
	item.ErrorMsg = err.Error()
}

func humanizeFetchError(providerName string, err error) string {
	if err == nil {
		return providerName + " 请求失败"
	}

	var be *provider.BlockedError
	if errors.As(err, &be) {
		return fmt.Sprintf("%s 被站点拦截（%s）。当前不支持绕过；建议配置 proxy.url、稍后重试，或改用另一 provider。", providerName, be.Reason)
	}

	// HTTP 非 2xx：尽量给出可操作提示（限流/鉴权是最常见问题）。
	var hs *provider.HTTPStatusError
	if errors.As(err, &hs) {
		switch hs.StatusCode {
		case 401:
			return fmt.Sprintf("%s 返回 HTTP 401（API key 无效或已过期）。请检查 omdb_api_key / OMDB_API_KEY。", providerName)
		case 403, 429:
			return fmt.Sprintf("%s 返回 HTTP %d（可能触发反爬/限流）。建议稍后重试或配置 proxy.url。", providerName, hs.StatusCode)
		case 404:
			return fmt.Sprintf("%s 返回 HTTP 404（条目不存在或已下架）。", providerName)
		default:
			if loc := strings.TrimSpace(hs.Location); loc != "" {
				return fmt.Sprintf("%s 返回 HTTP %d（重定向）：%s", providerName, hs.StatusCode, loc)
			}
			return fmt.Sprintf("%s 返回 HTTP %d。", providerName, hs.StatusCode)
		}
	}

	low := strings.ToLower(err.Error())
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(low, "timeout") {
		return fmt.Sprintf("%s 请求超时。建议检查网络/代理，或调大 http_timeout 后重试。", providerName)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Sprintf("%s 请求已取消。", providerName)
	}
	if strings.Contains(low, "tls") || strings.Contains(low, "handshake") || strings.Contains(low, "ssl") {
		return fmt.Sprintf("%s 连接失败（TLS/SSL）。建议配置 proxy.url 或稍后重试。", providerName)
	}

	return fmt.Sprintf("%s 请求失败：%v", providerName, err)
}

func humanizeParseError(providerName string, err error) string {
	if err == nil {
		return providerName + " 解析失败"
	}
	// 通常意味着站点结构漂移或返回了非预期页面。
	return fmt.Sprintf("%s 解析失败（站点结构可能变化或返回了非详情页内容）：%v", providerName, err)
}
