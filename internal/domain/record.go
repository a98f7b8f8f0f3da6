package domain

import "strings"

// Field 是 MovieRecord 的字段键。
// 同一个键同时用作 CSV 列名、snapshot 列名与 defaults 配置键。
type Field string

const (
	FieldTitle    Field = "title"
	FieldYear     Field = "year"
	FieldRating   Field = "rating"
	FieldGenre    Field = "genre"
	FieldCountry  Field = "country"
	FieldDirector Field = "director"
	FieldCast     Field = "cast"
	FieldKind     Field = "kind"
	FieldCoverURL Field = "cover_url"
	FieldPlot     Field = "plot"
	FieldSynopsis Field = "synopsis"
)

// Fields 是完整字段集的规范顺序（与 MovieRecord 的结构体字段顺序一致）。
var Fields = []Field{
	FieldTitle,
	FieldYear,
	FieldRating,
	FieldGenre,
	FieldCountry,
	FieldDirector,
	FieldCast,
	FieldKind,
	FieldCoverURL,
	FieldPlot,
	FieldSynopsis,
}

// SummaryFields 是精简表使用的七个字段（顺序即列顺序）。
var SummaryFields = []Field{
	FieldTitle,
	FieldYear,
	FieldRating,
	FieldGenre,
	FieldCountry,
	FieldDirector,
	FieldCast,
}

// ParseField 把配置里的键解析为 Field（大小写/首尾空白不敏感）。
func ParseField(s string) (Field, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, f := range Fields {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// MovieRecord 是归一化后的电影记录：字段集固定，且所有字段都已填充（可能是默认值）。
//
// 约束：
// - 由 normalize 包构造，构造完成后视为不可变
// - Genre/Country/Director/Cast 为 "," 连接的列表（无空格）
type MovieRecord struct {
	Title    string `json:"title" csv:"title"`
	Year     string `json:"year" csv:"year"`
	Rating   string `json:"rating" csv:"rating"`
	Genre    string `json:"genre" csv:"genre"`
	Country  string `json:"country" csv:"country"`
	Director string `json:"director" csv:"director"`
	Cast     string `json:"cast" csv:"cast"`
	Kind     string `json:"kind" csv:"kind"`
	CoverURL string `json:"cover_url" csv:"cover_url"`
	Plot     string `json:"plot" csv:"plot"`
	Synopsis string `json:"synopsis" csv:"synopsis"`
}

// Get 按字段键取值；未知键返回 ""。
func (r MovieRecord) Get(f Field) string {
	switch f {
	case FieldTitle:
		return r.Title
	case FieldYear:
		return r.Year
	case FieldRating:
		return r.Rating
	case FieldGenre:
		return r.Genre
	case FieldCountry:
		return r.Country
	case FieldDirector:
		return r.Director
	case FieldCast:
		return r.Cast
	case FieldKind:
		return r.Kind
	case FieldCoverURL:
		return r.CoverURL
	case FieldPlot:
		return r.Plot
	case FieldSynopsis:
		return r.Synopsis
	default:
		return ""
	}
}

// Set 按字段键赋值；未知键返回 false。只应在构造阶段使用。
func (r *MovieRecord) Set(f Field, v string) bool {
	switch f {
	case FieldTitle:
		r.Title = v
	case FieldYear:
		r.Year = v
	case FieldRating:
		r.Rating = v
	case FieldGenre:
		r.Genre = v
	case FieldCountry:
		r.Country = v
	case FieldDirector:
		r.Director = v
	case FieldCast:
		r.Cast = v
	case FieldKind:
		r.Kind = v
	case FieldCoverURL:
		r.CoverURL = v
	case FieldPlot:
		r.Plot = v
	case FieldSynopsis:
		r.Synopsis = v
	default:
		return false
	}
	return true
}

// Values 按规范列顺序（Fields）返回全部字段值。
func (r MovieRecord) Values() []string { return r.ValuesOf(Fields) }

// ValuesOf 按 fields 的顺序返回字段值。
func (r MovieRecord) ValuesOf(fields []Field) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, r.Get(f))
	}
	return out
}
