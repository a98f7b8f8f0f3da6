package page

import (
	"path/filepath"

	"github.com/John-Robertt/movienotes/internal/domain"
	"github.com/John-Robertt/movienotes/internal/infra/fsx"
	"github.com/John-Robertt/movienotes/internal/infra/logx"
)

// DirName 是页面在输出目录下的子目录名。
const DirName = "pages"

// Result 是单条记录的页面写入结果（与输入记录一一对应）。
type Result struct {
	Name   string
	Path   string
	Status string // domain.PageStatus*
	Err    error
}

var log = logx.Get("page")

// WriteAll 为每条记录写一个页面。
//
// 约束：
// - 从不覆盖已有文件（同一部电影的已有页面保留，不同电影另起名字）
// - 单页失败只影响该条（Status=failed），其它页面照常写入
// - 只有目录本身不可用时才返回 error
func WriteAll(dir string, recs []domain.MovieRecord) ([]Result, error) {
	if err := fsx.EnsureDir(dir); err != nil {
		return nil, err
	}
	existing, err := ReadExisting(dir)
	if err != nil {
		return nil, err
	}

	plan := Plan(recs, existing)
	out := make([]Result, len(recs))
	var written, kept, failed int

	for i, a := range plan {
		r := Result{Name: a.Name, Path: filepath.Join(dir, a.Name)}
		switch {
		case a.Keep:
			r.Status = domain.PageStatusKept
			kept++
			log.Emit(logx.DEBUG, "页面已存在，保留：%s", a.Name)
		default:
			if err := fsx.WriteFileAtomicNoOverwrite(dir, a.Name, Render(recs[i])); err != nil {
				r.Status = domain.PageStatusFailed
				r.Err = err
				failed++
				log.Emit(logx.WARNING, "写入页面失败：%s：%v", a.Name, err)
			} else {
				r.Status = domain.PageStatusWritten
				written++
			}
		}
		out[i] = r
	}

	log.Emit(logx.INFO, "页面：写入 %d，保留 %d，失败 %d", written, kept, failed)
	return out, nil
}
