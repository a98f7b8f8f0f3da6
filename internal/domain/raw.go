package domain

// Person 是 provider 返回的人员条目（导演/演员）。
type Person struct {
	Name string
}

// RawRecord 是 provider 解析得到的原始记录。
//
// 约束：
// - 指针/切片为 nil 表示“provider 未提供该字段”，与空字符串区分开
// - 列表保持 provider 给出的顺序（cast 通常按番位排序）
// - 不做任何默认值填充；缺失值的处理统一由 normalize 包负责
type RawRecord struct {
	Title       *string
	PlotOutline *string
	Rating      *string
	Year        *string
	Kind        *string
	CoverURL    *string

	Plot      []string
	Genres    []string
	Countries []string
	Synopsis  []string

	Directors []Person
	Cast      []Person
}

// StringPtr 是构造 RawRecord 的小工具。
func StringPtr(s string) *string { return &s }
