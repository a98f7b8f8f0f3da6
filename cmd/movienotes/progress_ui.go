package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/John-Robertt/movienotes/internal/app/run"
	"github.com/John-Robertt/movienotes/internal/config"
	"github.com/John-Robertt/movienotes/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端的进度输出。
//
// 设计目标：
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - keepalive：单个标题查找很久时也会定期输出一行
type progressUI struct {
	w         io.Writer
	providers []string

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	total    int
	done     int
	found    int
	notFound int
	failed   int
	current  string

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer, providers []string) *progressUI {
	return &progressUI{
		w:                  w,
		providers:          providers,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

var (
	colorFound    = color.New(color.FgHiGreen)
	colorNotFound = color.New(color.FgYellow)
	colorFailed   = color.New(color.FgHiRed, color.Bold)
	colorDim      = color.New(color.FgWhite, color.Faint)
)

func (p *progressUI) OnStart(eff config.EffectiveConfig, total int) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}
	p.total = total

	mode := "dry-run"
	modeHint := " (只查找，不写入)"
	if eff.Apply {
		mode = "apply"
		modeHint = ""
	}

	fmt.Fprintf(p.w, "[%s] movienotes run (%s)\n", now.Format("15:04:05"), mode)
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  input: %s (%d 个片名)\n", eff.Input, total)
	if eff.ConfigFile != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigFile)
	}
	fmt.Fprintf(p.w, "  mode: %s%s\n", mode, modeHint)
	fmt.Fprintf(p.w, "  provider: %s\n", providerChain(eff.Provider, p.providers))
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	fmt.Fprintf(p.w, "  http_timeout: %s retry_max: %d\n", eff.HTTPTimeout, eff.RetryMax)

	fmt.Fprintln(p.w, "输出:")
	fmt.Fprintf(p.w, "  out: %s\n", eff.OutDir)
	fmt.Fprintf(p.w, "  pages: %s link_titles: %s\n", onOff(eff.Pages), onOff(eff.LinkTitles))
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
	if total > 0 && !p.tickerStarted {
		p.startTickerLocked()
	}
}

func (p *progressUI) OnItemStart(idx, total int, query string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = query
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "lookup":
		fmt.Fprintf(p.w, "\n查找: total=%d found=%d not_found=%d failed=%d (%s)\n",
			intField(fields, "total"), intField(fields, "found"), intField(fields, "not_found"), intField(fields, "failed"),
			formatShortDuration(dur),
		)
	case "export":
		if ok, _ := fields["ok"].(bool); ok {
			fmt.Fprintf(p.w, "导出: %s, %s, %s (%s)\n",
				stringField(fields, "snapshot"), stringField(fields, "csv"), stringField(fields, "summary"), formatShortDuration(dur),
			)
		} else {
			fmt.Fprintf(p.w, "导出: %s (%s)\n", colorFailed.Sprint("失败"), formatShortDuration(dur))
		}
	case "pages":
		fmt.Fprintf(p.w, "页面: written=%d kept=%d failed=%d (%s)\n",
			intField(fields, "written"), intField(fields, "kept"), intField(fields, "failed"), formatShortDuration(dur),
		)
	default:
		// 兜底：未知阶段也不要静默（便于调试/演进）。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// idx/total 由 run 层给出；这里同时维护自己的计数，供 keepalive 使用。
	p.done = idx
	p.total = total
	p.current = ""

	switch res.Status {
	case domain.StatusFound:
		p.found++
		note := ""
		if res.MatchScore < 1 {
			note = fmt.Sprintf(" score=%.2f", res.MatchScore)
		}
		fmt.Fprintf(p.w, "[%d/%d] %s %s -> %q provider=%s%s%s (%s)\n",
			idx, total, colorFound.Sprint("FOUND"), truncate(res.Query, 60), res.Title, res.ProviderUsed,
			note, formatFallbackNote(res), formatShortDuration(dur),
		)
	case domain.StatusNotFound:
		p.notFound++
		fmt.Fprintf(p.w, "[%d/%d] %s %s (%s)\n",
			idx, total, colorNotFound.Sprint("NOT_FOUND"), truncate(res.Query, 60), formatShortDuration(dur),
		)
	default:
		p.failed++
		chain := formatAttemptChain(res.Attempts, -1)
		if chain != "" {
			chain = colorDim.Sprint(" attempts=" + chain)
		}
		fmt.Fprintf(p.w, "[%d/%d] %s %s %s: %s%s (%s)\n",
			idx, total, colorFailed.Sprint("FAIL"), truncate(res.Query, 60), res.ErrorCode, truncate(res.ErrorMsg, 160),
			chain, formatShortDuration(dur),
		)
	}

	p.lastPrinted = time.Now()

	// 最后一条完成：停止 ticker，避免在结束打印后又冒出 keepalive。
	if p.tickerStarted && p.done >= p.total {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) OnProgress(done, total, found, notFound, failed int, current string, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printProgressLocked(done, total, found, notFound, failed, current, elapsed)
}

func (p *progressUI) printProgressLocked(done, total, found, notFound, failed int, current string, elapsed time.Duration) {
	line := fmt.Sprintf("进度: done=%d/%d found=%d not_found=%d failed=%d elapsed=%s",
		done, total, found, notFound, failed, formatElapsed(elapsed),
	)
	if current != "" {
		line += fmt.Sprintf(" current=%q", truncate(current, 60))
	}
	fmt.Fprintln(p.w, line)
	p.lastPrinted = time.Now()
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true
	stopCh := p.stopCh

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				// 已完成：安全退出（OnItemDone 会 close stopCh，但这里也做兜底）。
				if p.total > 0 && p.done >= p.total {
					p.mu.Unlock()
					return
				}
				if time.Since(p.lastPrinted) > threshold {
					p.printProgressLocked(p.done, p.total, p.found, p.notFound, p.failed, p.current, time.Since(p.startedAt))
				}
				p.mu.Unlock()
			case <-stopCh:
				return
			}
		}
	}()
}

// stop 在 run 提前结束（例如被取消）时停止 ticker。
func (p *progressUI) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tickerStarted {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// providerChain 展示回退顺序：requested 在前，其余按注册顺序。
func providerChain(requested string, registered []string) string {
	requested = strings.ToLower(strings.TrimSpace(requested))
	chain := []string{requested}
	for _, n := range registered {
		if n != requested {
			chain = append(chain, n)
		}
	}
	return strings.Join(chain, " -> ")
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if max <= 0 || len(rs) <= max {
		return s
	}
	if max <= 3 {
		return string(rs[:max])
	}
	return string(rs[:max-3]) + "..."
}

func formatFallbackNote(res domain.ItemResult) string {
	req := strings.ToLower(strings.TrimSpace(res.ProviderRequested))
	used := strings.ToLower(strings.TrimSpace(res.ProviderUsed))
	if req == "" || used == "" || req == used {
		return ""
	}
	// 只展示“requested provider”为何失败（否则会变成噪音）。
	for _, a := range res.Attempts {
		if strings.ToLower(strings.TrimSpace(a.Provider)) != req {
			continue
		}
		msg := strings.TrimSpace(a.Error)
		if msg == "" {
			return " fallback(" + req + " " + a.Stage + ": 无结果)"
		}
		return " fallback(" + req + " " + a.Stage + ": " + truncate(msg, 90) + ")"
	}
	return " fallback(" + req + ")"
}

func formatAttemptChain(attempts []domain.ProviderAttempt, max int) string {
	if len(attempts) == 0 || max == 0 {
		return ""
	}
	if max < 0 {
		max = len(attempts)
	}
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		s := strings.TrimSpace(a.Provider) + ":" + strings.TrimSpace(a.Stage)
		if em := strings.TrimSpace(a.Error); em != "" {
			s += ":" + truncate(em, 80)
		}
		parts = append(parts, s)
		if len(parts) >= max {
			break
		}
	}
	return strings.Join(parts, ";")
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}

func stringField(fields map[string]any, key string) string {
	if fields == nil {
		return ""
	}
	s, _ := fields[key].(string)
	return s
}
