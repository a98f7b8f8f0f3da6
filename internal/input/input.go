package input

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/John-Robertt/movienotes/internal/domain"
)

// DefaultColumn 是标题列的默认列名。
const DefaultColumn = "Movies"

// Error 是输入文件的可追溯错误；上层统一映射为 input_invalid 并在任何 provider 调用之前退出。
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", domain.ErrCodeInputInvalid, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", domain.ErrCodeInputInvalid, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ReadTitles 读取标题列表（保持文件中的顺序；空白标题跳过）。
//
// 支持两种格式：
// - .txt：每行一个标题，"#" 开头的行是注释
// - 其它（.csv）：带表头的 CSV，取 column 列（为空时使用 DefaultColumn）
func ReadTitles(path, column string) ([]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, &Error{Err: errors.New("未指定输入文件")}
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	b = bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))

	var titles []string
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		titles = readLines(b)
	} else {
		titles, err = readCSVColumn(b, column)
		if err != nil {
			return nil, &Error{Path: path, Err: err}
		}
	}
	if len(titles) == 0 {
		return nil, &Error{Path: path, Err: errors.New("没有任何标题")}
	}
	return titles, nil
}

func readLines(b []byte) []string {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(b))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func readCSVColumn(b []byte, column string) ([]string, error) {
	column = strings.TrimSpace(column)
	if column == "" {
		column = DefaultColumn
	}

	rows, err := gocsv.CSVToMaps(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("CSV 解析失败：%w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("CSV 没有数据行")
	}

	key, ok := resolveColumn(rows[0], column)
	if !ok {
		return nil, fmt.Errorf("CSV 缺少标题列 %q（现有列：%s）", column, strings.Join(columns(rows[0]), ", "))
	}

	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if t := strings.TrimSpace(r[key]); t != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

// resolveColumn：先精确匹配，再做大小写/空白不敏感匹配。
func resolveColumn(row map[string]string, column string) (string, bool) {
	if _, ok := row[column]; ok {
		return column, true
	}
	for k := range row {
		if strings.EqualFold(strings.TrimSpace(k), column) {
			return k, true
		}
	}
	return "", false
}

func columns(row map[string]string) []string {
	out := make([]string, 0, len(row))
	for k := range row {
		out = append(out, fmt.Sprintf("%q", k))
	}
	sort.Strings(out)
	return out
}
