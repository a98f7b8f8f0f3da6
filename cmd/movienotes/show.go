package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/movienotes/internal/domain"
	"github.com/John-Robertt/movienotes/internal/export"
	"github.com/John-Robertt/movienotes/internal/infra/snapshot"
)

// defaultShowDir 是 show 未指定目录时读取的输出目录（相对 cwd）。
const defaultShowDir = "out"

type showArgs struct {
	Dir        string
	RunID      string
	CSV        bool
	LinkTitles bool
}

// showCmd 从输出目录的 snapshot.db 读回一次运行（默认最近一次），
// 以 movie_main.txt 的表格格式（或 --csv）打印到 stdout。
func showCmd(ctx context.Context, args []string, std stdio) int {
	for _, a := range args {
		if isHelp(a) {
			printShowUsage(std.out)
			return 0
		}
	}

	sa, err := parseShowArgs(args)
	if err != nil {
		fmt.Fprintf(std.err, "参数错误：%v\n\n", err)
		printShowUsage(std.err)
		return 2
	}

	// Open 会创建目录与空库；show 只读已有的 snapshot。
	dbPath := filepath.Join(sa.Dir, snapshot.FileName)
	if fi, err := os.Stat(dbPath); err != nil || fi.IsDir() {
		fmt.Fprintf(std.err, "没有找到 snapshot：%s（先运行 movienotes run --apply）\n", dbPath)
		return 1
	}

	st, err := snapshot.Open(sa.Dir)
	if err != nil {
		fmt.Fprintf(std.err, "打开 snapshot 失败：%v\n", err)
		return 1
	}
	defer st.Close()

	runID, rs, err := loadRun(ctx, st, sa.RunID)
	if err != nil {
		if errors.Is(err, snapshot.ErrRunNotFound) {
			fmt.Fprintf(std.err, "snapshot 中没有对应的运行：%s\n", describeRun(sa.RunID))
		} else {
			fmt.Fprintf(std.err, "读取 snapshot 失败：%v\n", err)
		}
		return 1
	}

	if sa.CSV {
		b, err := export.CSV(rs)
		if err != nil {
			fmt.Fprintf(std.err, "导出 CSV 失败：%v\n", err)
			return 1
		}
		_, _ = std.out.Write(b)
	} else {
		_, _ = std.out.Write(export.SummaryTable(rs, sa.LinkTitles))
	}
	fmt.Fprintf(std.err, "run=%s total=%d found=%d\n", runID, rs.Len(), countFound(rs))
	return 0
}

func loadRun(ctx context.Context, st *snapshot.Store, runID string) (string, domain.ResultSet, error) {
	if runID == "" {
		return st.LoadLatest(ctx)
	}
	rs, err := st.Load(ctx, runID)
	return runID, rs, err
}

func describeRun(runID string) string {
	if runID == "" {
		return "<latest>"
	}
	return runID
}

func countFound(rs domain.ResultSet) int {
	n := 0
	for _, s := range rs.Status {
		if s == domain.LookupFound {
			n++
		}
	}
	return n
}

func parseShowArgs(args []string) (showArgs, error) {
	sa := showArgs{}
	dirSet := false

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--run":
			if i+1 >= len(args) {
				return showArgs{}, fmt.Errorf("%s 需要一个值", a)
			}
			i++
			sa.RunID = strings.TrimSpace(args[i])
			if sa.RunID == "" {
				return showArgs{}, errors.New("--run 不能为空")
			}
		case strings.HasPrefix(a, "--run="):
			sa.RunID = strings.TrimSpace(strings.TrimPrefix(a, "--run="))
			if sa.RunID == "" {
				return showArgs{}, errors.New("--run 不能为空")
			}
		case a == "--csv" || strings.HasPrefix(a, "--csv="):
			v, err := boolFlag(a, "--csv")
			if err != nil {
				return showArgs{}, err
			}
			sa.CSV = v
		case a == "--link-titles" || strings.HasPrefix(a, "--link-titles="):
			v, err := boolFlag(a, "--link-titles")
			if err != nil {
				return showArgs{}, err
			}
			sa.LinkTitles = v
		case strings.HasPrefix(a, "-"):
			return showArgs{}, fmt.Errorf("未知参数：%s", a)
		default:
			if dirSet {
				return showArgs{}, fmt.Errorf("只能指定一个输出目录，多余参数：%s", a)
			}
			sa.Dir = a
			dirSet = true
		}
	}
	if strings.TrimSpace(sa.Dir) == "" {
		sa.Dir = defaultShowDir
	}
	return sa, nil
}

func printShowUsage(w io.Writer) {
	fmt.Fprint(w, `用法：
  movienotes show [DIR] [--run ID] [--csv[=true|false]] [--link-titles[=true|false]]

参数：
  DIR            run --apply 的输出目录（默认 ./out）
  --run          指定 run_id（默认最近一次运行）
  --csv          以 results.csv 的格式输出（默认输出 movie_main.txt 的表格）
  --link-titles  表格的 title 列写成 [[title]]
  -h, --help     显示帮助
`)
}
