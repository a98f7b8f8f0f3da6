package export

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/olekukonko/tablewriter"

	"github.com/John-Robertt/movienotes/internal/domain"
	"github.com/John-Robertt/movienotes/internal/infra/fsx"
	"github.com/John-Robertt/movienotes/internal/infra/logx"
	"github.com/John-Robertt/movienotes/internal/infra/snapshot"
)

const (
	CSVFileName     = "results.csv"
	SummaryFileName = "movie_main.txt"
)

type Options struct {
	// LinkTitles 为 true 时，精简表的 title 列写成 [[title]]。
	LinkTitles bool
}

// Written 记录本次导出实际写出的文件路径。
type Written struct {
	Snapshot string
	RunID    string
	CSV      string
	Summary  string
}

// Error 是导出阶段的失败；Target 指出哪一个产物没写成。
type Error struct {
	Target string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s：写入 %s 失败：%v", domain.ErrCodeIOFailed, e.Target, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var log = logx.Get("export")

// WriteAll 依次写出 snapshot、results.csv、movie_main.txt。
// 任一步失败立即返回（已写出的文件保留）。
func WriteAll(ctx context.Context, outDir, runID string, rs domain.ResultSet, opt Options) (Written, error) {
	var w Written
	if err := fsx.EnsureDir(outDir); err != nil {
		return w, &Error{Target: outDir, Err: err}
	}

	st, err := snapshot.Open(outDir)
	if err != nil {
		return w, &Error{Target: snapshot.FileName, Err: err}
	}
	defer st.Close()
	if err := st.Save(ctx, runID, time.Now(), rs); err != nil {
		return w, &Error{Target: snapshot.FileName, Err: err}
	}
	w.Snapshot = st.Path()
	w.RunID = runID
	log.Emit(logx.DEBUG, "snapshot 已保存：run_id=%s 共 %d 条", runID, rs.Len())

	b, err := CSV(rs)
	if err != nil {
		return w, &Error{Target: CSVFileName, Err: err}
	}
	if err := fsx.WriteFileAtomicReplace(outDir, CSVFileName, b); err != nil {
		return w, &Error{Target: CSVFileName, Err: err}
	}
	w.CSV = filepath.Join(outDir, CSVFileName)

	if err := fsx.WriteFileAtomicReplace(outDir, SummaryFileName, SummaryTable(rs, opt.LinkTitles)); err != nil {
		return w, &Error{Target: SummaryFileName, Err: err}
	}
	w.Summary = filepath.Join(outDir, SummaryFileName)

	log.Emit(logx.SUCCESS, "已导出 %s、%s", CSVFileName, SummaryFileName)
	return w, nil
}

// CSV 把完整结果集渲染为带表头的 CSV（列为全部 11 个字段键）。
func CSV(rs domain.ResultSet) ([]byte, error) {
	records := rs.Records
	if records == nil {
		records = []domain.MovieRecord{}
	}
	var buf bytes.Buffer
	if err := gocsv.Marshal(records, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LinkTitle 把标题包装成笔记库的交叉引用。
func LinkTitle(title string) string { return "[[" + title + "]]" }

// SummaryTable 渲染七个摘要字段的 markdown 表格。
// 只读 rs：链接包装作用在副本上。
func SummaryTable(rs domain.ResultSet, linkTitles bool) []byte {
	header := make([]string, 0, len(domain.SummaryFields))
	for _, f := range domain.SummaryFields {
		header = append(header, string(f))
	}

	rows := make([][]string, 0, rs.Len())
	for _, rec := range rs.Records {
		if linkTitles {
			rec.Title = LinkTitle(rec.Title)
		}
		row := rec.ValuesOf(domain.SummaryFields)
		for i := range row {
			row[i] = cell(row[i])
		}
		rows = append(rows, row)
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk(rows)
	table.Render()
	return buf.Bytes()
}

// cell 让单元格保持在一行内，并转义表格分隔符。
func cell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
