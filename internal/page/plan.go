package page

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/frontmatter"

	"github.com/John-Robertt/movienotes/internal/domain"
)

// Existing 是页面目录里已有的一个 .md 文件。
type Existing struct {
	Name string
	// Generated 表示文件带有本工具写出的元数据块（Type: Review）。
	Generated bool
	Year      string
}

// Assignment 是一条记录的落盘计划。
type Assignment struct {
	Name string
	// Keep 为 true 表示同名页面已存在且是同一部电影：不写入，保留用户笔记。
	Keep bool
}

type pageMeta struct {
	Year string `yaml:"Year"`
	Type string `yaml:"Type"`
}

// ReadExisting 读取 dir 下已有的 .md 页面（按小写文件名索引）。
// dir 不存在时返回空表且不报错。
func ReadExisting(dir string) (map[string]Existing, error) {
	out := map[string]Existing{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, err
	}

	for _, e := range entries {
		name := e.Name()
		ex := Existing{Name: name}
		if !e.IsDir() && strings.EqualFold(filepath.Ext(name), Ext) {
			if b, err := os.ReadFile(filepath.Join(dir, name)); err == nil {
				ex.Generated, ex.Year = inspect(b)
			}
		}
		// 目录或其它文件也占用名字
		out[nameKey(name)] = ex
	}
	return out, nil
}

// inspect 解析页面的元数据块。
// 元数据值原样写入（演员名里可能有引号或冒号），不一定是合法 YAML：解析失败时按行读取。
func inspect(b []byte) (generated bool, year string) {
	var meta pageMeta
	if _, err := frontmatter.Parse(bytes.NewReader(b), &meta); err != nil {
		meta = scanMeta(b)
	}
	return meta.Type == TypeReview, meta.Year
}

// scanMeta 逐行读取首个 --- 块里的 "Label: value"。
func scanMeta(b []byte) pageMeta {
	var meta pageMeta
	sc := bufio.NewScanner(bytes.NewReader(b))
	if !sc.Scan() || strings.TrimSpace(sc.Text()) != "---" {
		return meta
	}
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "---" {
			return meta
		}
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(label) {
		case "Year":
			meta.Year = strings.TrimSpace(value)
		case "Type":
			meta.Type = strings.TrimSpace(value)
		}
	}
	// 没有闭合的 --- 不算元数据块
	return pageMeta{}
}

// Plan 按输入顺序为每条记录分配页面文件名（确定性、批内唯一、大小写不敏感）。
//
// 候选顺序：<title>.md → <title> (<year>).md → <title> (2).md、(3)...
// 候选名已被磁盘占用时：若是同一部电影（生成页且 Year 相同）则 Keep，否则继续尝试下一个候选。
func Plan(recs []domain.MovieRecord, existing map[string]Existing) []Assignment {
	used := make(map[string]struct{}, len(recs))
	out := make([]Assignment, 0, len(recs))

	for _, rec := range recs {
		a := allocName(rec, used, existing)
		used[nameKey(a.Name)] = struct{}{}
		out = append(out, a)
	}
	return out
}

func allocName(rec domain.MovieRecord, used map[string]struct{}, existing map[string]Existing) Assignment {
	base := BaseName(rec.Title)
	year := strings.TrimSpace(rec.Year)

	try := func(stem string) (Assignment, bool) {
		name := stem + Ext
		key := nameKey(name)
		if _, ok := used[key]; ok {
			return Assignment{}, false
		}
		ex, ok := existing[key]
		if !ok {
			return Assignment{Name: name}, true
		}
		if ex.Generated && ex.Year == rec.Year {
			return Assignment{Name: ex.Name, Keep: true}, true
		}
		return Assignment{}, false
	}

	if a, ok := try(base); ok {
		return a
	}
	if year != "" {
		if a, ok := try(fmt.Sprintf("%s (%s)", base, BaseName(year))); ok {
			return a
		}
	}
	for n := 2; ; n++ {
		if a, ok := try(fmt.Sprintf("%s (%d)", base, n)); ok {
			return a
		}
	}
}
