package normalize

import (
	"strings"

	"github.com/John-Robertt/movienotes/internal/domain"
	"github.com/John-Robertt/movienotes/internal/infra/logx"
)

// MaxCast 是写入记录的演员数量上限（按 provider 给出的番位顺序）。
const MaxCast = 5

// Normalizer 把 provider 的 RawRecord 转成字段齐全的 MovieRecord。
type Normalizer struct {
	Defaults Defaults
	Log      logx.Logger
}

// New 使用内置默认值构造 Normalizer。
func New(log logx.Logger) Normalizer {
	return Normalizer{Defaults: BuiltinDefaults(), Log: log}
}

type rule struct {
	field   domain.Field
	extract func(r *domain.RawRecord) (string, bool)
}

// rules 与 domain.Fields 一一对应；顺序即填充顺序。
var rules = []rule{
	{domain.FieldTitle, func(r *domain.RawRecord) (string, bool) { return str(r.Title) }},
	{domain.FieldYear, func(r *domain.RawRecord) (string, bool) { return str(r.Year) }},
	{domain.FieldRating, func(r *domain.RawRecord) (string, bool) { return str(r.Rating) }},
	{domain.FieldGenre, func(r *domain.RawRecord) (string, bool) { return join(r.Genres) }},
	{domain.FieldCountry, func(r *domain.RawRecord) (string, bool) { return join(r.Countries) }},
	{domain.FieldDirector, func(r *domain.RawRecord) (string, bool) { return joinPeople(r.Directors, 0) }},
	{domain.FieldCast, func(r *domain.RawRecord) (string, bool) { return joinPeople(r.Cast, MaxCast) }},
	{domain.FieldKind, func(r *domain.RawRecord) (string, bool) { return str(r.Kind) }},
	{domain.FieldCoverURL, func(r *domain.RawRecord) (string, bool) { return str(r.CoverURL) }},
	{domain.FieldPlot, plotOf},
	{domain.FieldSynopsis, func(r *domain.RawRecord) (string, bool) { return first(r.Synopsis) }},
}

// Normalize 构造 query 对应的记录，并返回使用了默认值的字段列表。
//
// raw==nil 表示没有找到匹配：整条记录取 NotFound 默认值，title 取 query。
// 不会因为任何缺失而失败。
func (n Normalizer) Normalize(query string, raw *domain.RawRecord) (domain.MovieRecord, []domain.Field) {
	var rec domain.MovieRecord

	if raw == nil {
		for _, f := range domain.Fields {
			rec.Set(f, n.Defaults.NotFound[f])
		}
		rec.Title = query
		n.emit(logx.INFO, "%q 未找到匹配结果，使用 not-found 默认值", query)
		return rec, append([]domain.Field(nil), domain.Fields...)
	}

	var missed []domain.Field
	for _, r := range rules {
		v, ok := r.extract(raw)
		if !ok {
			if r.field == domain.FieldTitle {
				v = query
			} else {
				v = n.Defaults.FieldMissing[r.field]
			}
			missed = append(missed, r.field)
			n.emit(logx.INFO, "%q 缺少字段 %s，使用默认值 %q", query, r.field, v)
		}
		rec.Set(r.field, v)
	}
	return rec, missed
}

func (n Normalizer) emit(level logx.Level, msg string, args ...any) {
	if n.Log == nil {
		return
	}
	n.Log.Emit(level, msg, args...)
}

func str(p *string) (string, bool) {
	if p == nil {
		return "", false
	}
	s := strings.TrimSpace(*p)
	return s, s != ""
}

// join 以 "," 连接（无空格）；空条目跳过，全部为空视为缺失。
func join(items []string) (string, bool) {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := strings.TrimSpace(it); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return "", false
	}
	return strings.Join(out, ","), true
}

// joinPeople 取前 limit 个有名字的人（limit<=0 不限制）。
func joinPeople(ps []domain.Person, limit int) (string, bool) {
	names := make([]string, 0, len(ps))
	for _, p := range ps {
		n := strings.TrimSpace(p.Name)
		if n == "" {
			continue
		}
		names = append(names, n)
		if limit > 0 && len(names) == limit {
			break
		}
	}
	return join(names)
}

func first(items []string) (string, bool) {
	for _, it := range items {
		if s := strings.TrimSpace(it); s != "" {
			return s, true
		}
	}
	return "", false
}

// plotOf：优先简介（plot outline），其次剧情列表的第一条。
func plotOf(r *domain.RawRecord) (string, bool) {
	if s, ok := str(r.PlotOutline); ok {
		return s, true
	}
	return first(r.Plot)
}
