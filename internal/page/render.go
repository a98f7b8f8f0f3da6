package page

import (
	"bytes"
	"strings"

	"github.com/John-Robertt/movienotes/internal/domain"
)

// TypeReview 是生成页面元数据块里固定的 Type 值；也用来识别"本工具生成的页面"。
const TypeReview = "Review"

var metaFields = []struct {
	label string
	field domain.Field
}{
	{"Year", domain.FieldYear},
	{"Rating", domain.FieldRating},
	{"Genre", domain.FieldGenre},
	{"Country", domain.FieldCountry},
	{"Director", domain.FieldDirector},
	{"Cast", domain.FieldCast},
}

// Render 把一条记录渲染为笔记页面（固定结构，不折行）。
// 不会失败：MovieRecord 的每个字段都已有值（可能为空串）。
func Render(rec domain.MovieRecord) []byte {
	var b bytes.Buffer

	b.WriteString("---\n")
	for _, m := range metaFields {
		b.WriteString(m.label)
		b.WriteString(": ")
		b.WriteString(oneLine(rec.Get(m.field)))
		b.WriteByte('\n')
	}
	b.WriteString("Type: " + TypeReview + "\n")
	b.WriteString("\n---\n\n")

	title := oneLine(rec.Title)
	b.WriteString("# " + title + "\n\n")
	b.WriteString("![" + title + "](" + oneLine(rec.CoverURL) + ")\n\n")

	b.WriteString("# Plot\n\n")
	b.WriteString(CleanPlot(rec.Plot))
	b.WriteString("\n\n")

	b.WriteString("# My own thoughts\n\n")
	return b.Bytes()
}

// CleanPlot 把空白折叠为单个空格，并去掉残留的 `\ ` 转义。
func CleanPlot(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, `\ `, "")
}

// oneLine 保证值落在同一行内；其余字符原样保留。
func oneLine(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(s)
}
