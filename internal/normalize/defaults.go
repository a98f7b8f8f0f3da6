package normalize

import "github.com/John-Robertt/movienotes/internal/domain"

// Defaults 是两类缺失场景的兜底值（按字段）。
//
// - NotFound：provider 没有找到任何匹配时，整条记录使用的值
// - FieldMissing：找到了记录但某个字段缺失时使用的值
//
// title 不在这里配置：找不到或缺失时恒为原始查询。
type Defaults struct {
	NotFound     map[domain.Field]string
	FieldMissing map[domain.Field]string
}

// BuiltinDefaults 返回内置默认值：除 FieldMissing[rating]="N/A" 外全部为空串。
//
// rating 的两种缺失故意不同：没找到电影时评分为空，
// 找到了但没有评分时写 "N/A"，便于在表格里区分“未评分”与“未匹配”。
func BuiltinDefaults() Defaults {
	nf := make(map[domain.Field]string, len(domain.Fields))
	fm := make(map[domain.Field]string, len(domain.Fields))
	for _, f := range domain.Fields {
		nf[f] = ""
		fm[f] = ""
	}
	fm[domain.FieldRating] = "N/A"
	return Defaults{NotFound: nf, FieldMissing: fm}
}

// With 返回覆盖后的副本；只覆盖 override 中出现的键。
func (d Defaults) With(notFound, fieldMissing map[domain.Field]string) Defaults {
	out := Defaults{
		NotFound:     make(map[domain.Field]string, len(d.NotFound)+len(notFound)),
		FieldMissing: make(map[domain.Field]string, len(d.FieldMissing)+len(fieldMissing)),
	}
	for k, v := range d.NotFound {
		out.NotFound[k] = v
	}
	for k, v := range d.FieldMissing {
		out.FieldMissing[k] = v
	}
	for k, v := range notFound {
		out.NotFound[k] = v
	}
	for k, v := range fieldMissing {
		out.FieldMissing[k] = v
	}
	return out
}
