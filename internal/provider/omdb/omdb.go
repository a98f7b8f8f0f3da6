package omdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/John-Robertt/movienotes/internal/domain"
	providerx "github.com/John-Robertt/movienotes/internal/provider"
)

const auxFullPlot = "full"

// Provider 通过 OMDb HTTP API（https://www.omdbapi.com/）查询。
// 需要 API key；未配置 key 时上层不应注册该 provider。
type Provider struct {
	APIKey  string
	BaseURL string
}

func (Provider) Name() string { return "omdb" }

func (p Provider) baseURL() string {
	u := strings.TrimSpace(p.BaseURL)
	if u == "" {
		return "https://www.omdbapi.com"
	}
	return strings.TrimRight(u, "/")
}

func (p Provider) endpoint(q url.Values) string {
	q.Set("apikey", p.APIKey)
	return p.baseURL() + "/?" + q.Encode()
}

// Search 使用 s= 搜索；OMDb 的 "Movie not found!" 视为无结果而不是错误。
func (p Provider) Search(ctx context.Context, title string, c *http.Client) ([]string, error) {
	if c == nil {
		return nil, errors.New("http client 不能为空")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, errors.New("omdb_api_key 未配置")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("title 不能为空")
	}

	b, err := providerx.GetBody(ctx, c, p.endpoint(url.Values{"s": {title}}), nil)
	if err != nil {
		return nil, err
	}

	var res searchResponse
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, fmt.Errorf("搜索响应不是合法 JSON：%w", err)
	}
	if !res.Response {
		if isNotFound(res.Error) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("omdb 返回错误：%s", res.Error)
	}

	ids := make([]string, 0, len(res.Search))
	for _, it := range res.Search {
		if id := strings.TrimSpace(it.ImdbID); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Fetch 用 i= 取详情（短剧情）；完整剧情作为 synopsis 附带抓取（best-effort）。
func (p Provider) Fetch(ctx context.Context, id string, c *http.Client) (providerx.Page, error) {
	if c == nil {
		return providerx.Page{}, errors.New("http client 不能为空")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return providerx.Page{}, errors.New("id 不能为空")
	}

	b, err := providerx.GetBody(ctx, c, p.endpoint(url.Values{"i": {id}, "plot": {"short"}}), nil)
	if err != nil {
		return providerx.Page{}, err
	}
	pg := providerx.Page{
		// 不把 apikey 写进 report：对外只暴露 IMDb 详情页作为来源。
		URL:  "https://www.imdb.com/title/" + id + "/",
		Body: b,
		Aux:  map[string][]byte{},
	}
	if full, err := providerx.GetBody(ctx, c, p.endpoint(url.Values{"i": {id}, "plot": {"full"}}), nil); err == nil {
		pg.Aux[auxFullPlot] = full
	}
	return pg, nil
}

func (Provider) Parse(id string, pg providerx.Page) (domain.RawRecord, error) {
	if len(pg.Body) == 0 {
		return domain.RawRecord{}, errors.New("响应为空")
	}

	var t titleResponse
	if err := json.Unmarshal(pg.Body, &t); err != nil {
		return domain.RawRecord{}, fmt.Errorf("详情响应不是合法 JSON：%w", err)
	}
	if !t.Response {
		return domain.RawRecord{}, fmt.Errorf("omdb 返回错误：%s", t.Error)
	}

	var raw domain.RawRecord
	raw.Title = opt(t.Title)
	raw.Year = opt(yearOf(t.Year))
	raw.Rating = opt(t.ImdbRating)
	raw.Kind = opt(kindOf(t.Type))
	raw.CoverURL = opt(t.Poster)
	raw.PlotOutline = opt(t.Plot)
	if s := opt(t.Plot); s != nil {
		raw.Plot = []string{*s}
	}
	raw.Genres = list(t.Genre)
	raw.Countries = list(t.Country)
	for _, n := range list(t.Director) {
		raw.Directors = append(raw.Directors, domain.Person{Name: n})
	}
	for _, n := range list(t.Actors) {
		raw.Cast = append(raw.Cast, domain.Person{Name: n})
	}

	if b := pg.Aux[auxFullPlot]; len(b) > 0 {
		var full titleResponse
		if json.Unmarshal(b, &full) == nil && full.Response {
			if s := opt(full.Plot); s != nil && *s != strings.TrimSpace(t.Plot) {
				raw.Synopsis = []string{*s}
			}
		}
	}
	return raw, nil
}

type responseFlag bool

// OMDb 的 Response 字段是字符串 "True"/"False"。
func (f *responseFlag) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var v bool
		if e := json.Unmarshal(b, &v); e != nil {
			return err
		}
		*f = responseFlag(v)
		return nil
	}
	*f = responseFlag(strings.EqualFold(strings.TrimSpace(s), "true"))
	return nil
}

type searchResponse struct {
	Search []struct {
		Title  string `json:"Title"`
		Year   string `json:"Year"`
		ImdbID string `json:"imdbID"`
		Type   string `json:"Type"`
	} `json:"Search"`
	Response responseFlag `json:"Response"`
	Error    string       `json:"Error"`
}

type titleResponse struct {
	Title      string       `json:"Title"`
	Year       string       `json:"Year"`
	Genre      string       `json:"Genre"`
	Director   string       `json:"Director"`
	Actors     string       `json:"Actors"`
	Plot       string       `json:"Plot"`
	Country    string       `json:"Country"`
	Poster     string       `json:"Poster"`
	ImdbRating string       `json:"imdbRating"`
	ImdbID     string       `json:"imdbID"`
	Type       string       `json:"Type"`
	Response   responseFlag `json:"Response"`
	Error      string       `json:"Error"`
}

func isNotFound(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "not found")
}

// opt 把 OMDb 的 "N/A"/空串视为缺失。
func opt(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return nil
	}
	return &s
}

// list 拆分 "A, B, C"；"N/A" 视为缺失（返回 nil）。
func list(s string) []string {
	if opt(s) == nil {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" && p != "N/A" {
			out = append(out, p)
		}
	}
	return out
}

// "2010"、"2008–2013"（剧集）都取前四位。
func yearOf(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 4 {
		return ""
	}
	return s[:4]
}

func kindOf(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "":
		return ""
	case "series":
		return "tv series"
	default:
		return strings.ToLower(strings.TrimSpace(t))
	}
}
