package imdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/movienotes/internal/domain"
	providerx "github.com/John-Robertt/movienotes/internal/provider"
)

const auxPlotSummary = "plotsummary"

// Provider 实现 IMDb 的搜索、页面抓取与解析。
//
// 约束：
// - 先搜索（find 页）再进入详情页；只取第一个候选由上层决定
// - 详情页优先读 JSON-LD（结构稳定），其余字段用 data-testid 选择器补齐
// - 剧情页（plotsummary）是 best-effort：抓取失败不影响主记录
type Provider struct {
	// BaseURL 允许指向镜像/测试服务器。为空时使用 https://www.imdb.com。
	BaseURL string
}

func (Provider) Name() string { return "imdb" }

func (p Provider) baseURL() string {
	u := strings.TrimSpace(p.BaseURL)
	if u == "" {
		return "https://www.imdb.com"
	}
	return strings.TrimRight(u, "/")
}

// IMDb 按 Accept-Language 决定展示标题的语言；固定英文，保证结果可复现。
var requestHeader = http.Header{
	"Accept-Language": []string{"en-US,en;q=0.9"},
}

var titleIDRe = regexp.MustCompile(`/title/(tt\d+)`)

// Search 使用 find 页的标题搜索：/find/?q=<title>&s=tt
func (p Provider) Search(ctx context.Context, title string, c *http.Client) ([]string, error) {
	if c == nil {
		return nil, errors.New("http client 不能为空")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("title 不能为空")
	}

	u := p.baseURL() + "/find/?q=" + url.QueryEscape(title) + "&s=tt"
	b, err := providerx.GetBody(ctx, c, u, requestHeader)
	if err != nil {
		return nil, err
	}
	if reason := blockedReason(b); reason != "" {
		return nil, &providerx.BlockedError{URL: u, Reason: reason}
	}
	return parseSearch(b)
}

func parseSearch(b []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	ids := make([]string, 0, 8)
	doc.Find("a[href*='/title/tt']").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		m := titleIDRe.FindStringSubmatch(href)
		if m == nil {
			return
		}
		if _, ok := seen[m[1]]; ok {
			return
		}
		seen[m[1]] = struct{}{}
		ids = append(ids, m[1])
	})
	return ids, nil
}

// Fetch 抓取详情页与剧情页：/title/<id>/ 与 /title/<id>/plotsummary/
func (p Provider) Fetch(ctx context.Context, id string, c *http.Client) (providerx.Page, error) {
	if c == nil {
		return providerx.Page{}, errors.New("http client 不能为空")
	}
	if !strings.HasPrefix(id, "tt") {
		return providerx.Page{}, fmt.Errorf("非法 IMDb ID：%q", id)
	}

	pageURL := p.baseURL() + "/title/" + id + "/"
	b, err := providerx.GetBody(ctx, c, pageURL, requestHeader)
	if err != nil {
		return providerx.Page{}, err
	}
	if reason := blockedReason(b); reason != "" {
		return providerx.Page{}, &providerx.BlockedError{URL: pageURL, Reason: reason}
	}

	pg := providerx.Page{URL: pageURL, Body: b, Aux: map[string][]byte{}}
	if ps, err := providerx.GetBody(ctx, c, pageURL+"plotsummary/", requestHeader); err == nil {
		pg.Aux[auxPlotSummary] = ps
	}
	return pg, nil
}

// Parse 把详情页（+ 剧情页）解析为 RawRecord。
func (Provider) Parse(id string, pg providerx.Page) (domain.RawRecord, error) {
	if len(pg.Body) == 0 {
		return domain.RawRecord{}, errors.New("html 为空")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(pg.Body))
	if err != nil {
		return domain.RawRecord{}, err
	}

	var ld ldTitle
	found := false
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var cand ldTitle
		if json.Unmarshal([]byte(s.Text()), &cand) != nil {
			return true
		}
		if cand.Name == "" {
			return true
		}
		ld, found = cand, true
		return false
	})

	heroTitle := normSpace(doc.Find(`h1[data-testid="hero__pageTitle"]`).First().Text())
	if !found && heroTitle == "" {
		return domain.RawRecord{}, errors.New("未找到 JSON-LD 或标题（疑似验证页/非详情页内容）")
	}

	var raw domain.RawRecord

	// 页面标题受 Accept-Language 控制（英文）；JSON-LD name 可能是原语言标题。
	if t := heroTitle; t != "" {
		raw.Title = domain.StringPtr(t)
	} else if t := unescape(ld.Name); t != "" {
		raw.Title = domain.StringPtr(t)
	}

	if y := yearOf(ld.DatePublished); y != "" {
		raw.Year = domain.StringPtr(y)
	}
	if ld.AggregateRating != nil {
		if v := strings.TrimSpace(ld.AggregateRating.RatingValue.String()); v != "" {
			raw.Rating = domain.StringPtr(v)
		}
	}
	if k := kindOf(ld.Type); k != "" {
		raw.Kind = domain.StringPtr(k)
	}
	if img := strings.TrimSpace(ld.Image); img != "" {
		raw.CoverURL = domain.StringPtr(img)
	}

	outline := normSpace(doc.Find(`span[data-testid="plot-xl"]`).First().Text())
	if outline == "" {
		outline = unescape(ld.Description)
	}
	if outline != "" {
		raw.PlotOutline = domain.StringPtr(outline)
	}

	if len(ld.Genre) > 0 {
		raw.Genres = normList(ld.Genre)
	}
	for _, d := range ld.Director {
		if n := unescape(d.Name); n != "" {
			raw.Directors = append(raw.Directors, domain.Person{Name: n})
		}
	}
	for _, a := range ld.Actor {
		if n := unescape(a.Name); n != "" {
			raw.Cast = append(raw.Cast, domain.Person{Name: n})
		}
	}

	var countries []string
	doc.Find(`li[data-testid="title-details-origin"] a`).Each(func(_ int, s *goquery.Selection) {
		countries = append(countries, s.Text())
	})
	if countries = normList(countries); len(countries) > 0 {
		raw.Countries = countries
	}

	if ps := pg.Aux[auxPlotSummary]; len(ps) > 0 {
		plots, synopsis := parsePlotSummary(ps)
		if len(plots) > 0 {
			raw.Plot = plots
		}
		if len(synopsis) > 0 {
			raw.Synopsis = synopsis
		}
	}
	return raw, nil
}

func parsePlotSummary(b []byte) (plots []string, synopsis []string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	if err != nil {
		return nil, nil
	}
	doc.Find(`div[data-testid="sub-section-summaries"] li`).Each(func(_ int, s *goquery.Selection) {
		if t := summaryText(s.Find(".ipc-html-content-inner-div").First()); t != "" {
			plots = append(plots, t)
		}
	})
	doc.Find(`div[data-testid="sub-section-synopsis"] li`).Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Find(".ipc-html-content-inner-div").First().Text()); t != "" {
			synopsis = append(synopsis, t)
		}
	})
	return plots, synopsis
}

// summaryText 去掉作者署名（"—Author"）后取正文。
func summaryText(s *goquery.Selection) string {
	c := s.Clone()
	c.Find("span").FilterFunction(func(_ int, sp *goquery.Selection) bool {
		return strings.HasPrefix(strings.TrimSpace(sp.Text()), "—")
	}).Remove()
	return normSpace(c.Text())
}

// blockedReason 识别 WAF challenge 页面（200 响应但没有业务内容）。
func blockedReason(b []byte) string {
	if bytes.Contains(b, []byte("awsWafCookieDomainList")) || bytes.Contains(b, []byte("challenge-container")) {
		return "waf-challenge"
	}
	return ""
}

func kindOf(ldType string) string {
	switch strings.TrimSpace(ldType) {
	case "":
		return ""
	case "Movie":
		return "movie"
	case "TVSeries":
		return "tv series"
	case "TVEpisode":
		return "episode"
	case "TVMiniSeries":
		return "tv mini series"
	case "VideoGame":
		return "video game"
	case "TVMovie":
		return "tv movie"
	default:
		return strings.ToLower(ldType)
	}
}

func yearOf(date string) string {
	date = strings.TrimSpace(date)
	if len(date) < 4 {
		return ""
	}
	for _, r := range date[:4] {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return date[:4]
}

func unescape(s string) string { return normSpace(html.UnescapeString(s)) }

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }

func normList(in []string) []string {
	m := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = unescape(s)
		if s == "" {
			continue
		}
		if _, ok := m[s]; ok {
			continue
		}
		m[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
