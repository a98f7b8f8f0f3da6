package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/John-Robertt/movienotes/internal/app/run"
	"github.com/John-Robertt/movienotes/internal/config"
	"github.com/John-Robertt/movienotes/internal/domain"
	"github.com/John-Robertt/movienotes/internal/infra/fsx"
	"github.com/John-Robertt/movienotes/internal/infra/logx"
	"github.com/John-Robertt/movienotes/internal/input"
	"github.com/John-Robertt/movienotes/internal/provider"
	"github.com/John-Robertt/movienotes/internal/provider/imdb"
	"github.com/John-Robertt/movienotes/internal/provider/omdb"
)

// ReportFileName 是 apply 时写入输出目录的报告文件名。
const ReportFileName = "report.json"

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage(os.Stdout)
		return
	}

	// .env 只是便利：不存在时静默忽略。
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "读取 .env 失败：%v\n", err)
	}

	switch args[0] {
	case "run":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		code := runCmd(ctx, args[1:], stdio{out: os.Stdout, err: os.Stderr})
		stop()
		if code != 0 {
			os.Exit(code)
		}
	case "show":
		if code := showCmd(context.Background(), args[1:], stdio{out: os.Stdout, err: os.Stderr}); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage(os.Stderr)
		os.Exit(2)
	}
}

// stdio 让 runCmd 可以在测试里接管输出。
type stdio struct {
	out io.Writer
	err io.Writer
}

func runCmd(ctx context.Context, args []string, std stdio) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage(std.out)
			return 0
		}
	}

	ra, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(std.err, "参数错误：%v\n\n", err)
		printRunUsage(std.err)
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(std.err, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, ra.CLIArgs)
	if err != nil {
		emitReport(std, reportForEarlyError(ra.Input, ra.ApplySet && ra.Apply, config.Code(err), err))
		return 1
	}
	logx.SetMinLevel(eff.LogLevel)

	// 输入不合法：在任何 provider 请求之前失败。
	titles, err := input.ReadTitles(eff.Input, eff.TitleColumn)
	if err != nil {
		emitReport(std, reportForEarlyError(eff.Input, eff.Apply, domain.ErrCodeInputInvalid, err))
		return 1
	}

	reg, err := buildRegistry(eff)
	if err != nil {
		fmt.Fprintf(std.err, "初始化 provider registry 失败：%v\n", err)
		return 1
	}

	progressW, interactive := pickProgressWriter(std)
	var (
		obs run.Observer
		ui  *progressUI
	)
	if interactive {
		ui = newProgressUI(progressW, reg.Names())
		obs = ui
	}

	_, rr := run.ExecuteWithObserver(ctx, eff, reg, titles, obs)
	if ui != nil {
		ui.stop()
	}

	// apply：写入 <out>/report.json；dry-run 禁止落盘。
	if eff.Apply {
		if err := writeReportFile(eff.OutDir, rr); err != nil {
			fmt.Fprintf(std.err, "写入 %s 失败：%v\n", ReportFileName, err)
			emitReport(std, rr)
			return 1
		}
	}

	emitReport(std, rr)
	if interactive {
		emitLocations(progressW, eff)
	}
	return exitCode(rr)
}

func exitCode(rr domain.RunReport) int {
	s := rr.Summary
	if s.NotFound == 0 && s.Failed == 0 && s.PagesFailed == 0 {
		return 0
	}
	return 1
}

// buildRegistry：imdb 总是可用；omdb 只在配置了 API key 时注册（排在 imdb 之后作为回退）。
func buildRegistry(eff config.EffectiveConfig) (provider.Registry, error) {
	ps := []provider.Provider{imdb.Provider{BaseURL: eff.IMDbBaseURL}}
	if strings.TrimSpace(eff.OMDbAPIKey) != "" {
		ps = append(ps, omdb.Provider{APIKey: eff.OMDbAPIKey, BaseURL: eff.OMDbBaseURL})
	}
	return provider.NewRegistry(ps...)
}

type runArgs struct {
	config.CLIArgs
}

func parseRunArgs(args []string) (runArgs, error) {
	ra := runArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--provider" || a == "--out":
			if i+1 >= len(args) {
				return runArgs{}, fmt.Errorf("%s 需要一个值", a)
			}
			i++
			if a == "--provider" {
				ra.Provider, ra.ProviderSet = args[i], true
			} else {
				ra.Out, ra.OutSet = args[i], true
			}
		case strings.HasPrefix(a, "--provider="):
			ra.Provider = strings.TrimPrefix(a, "--provider=")
			ra.ProviderSet = true
		case strings.HasPrefix(a, "--out="):
			ra.Out = strings.TrimPrefix(a, "--out=")
			ra.OutSet = true
		case a == "--apply" || strings.HasPrefix(a, "--apply="):
			v, err := boolFlag(a, "--apply")
			if err != nil {
				return runArgs{}, err
			}
			ra.Apply, ra.ApplySet = v, true
		case a == "--pages" || strings.HasPrefix(a, "--pages="):
			v, err := boolFlag(a, "--pages")
			if err != nil {
				return runArgs{}, err
			}
			ra.Pages, ra.PagesSet = v, true
		case a == "--link-titles" || strings.HasPrefix(a, "--link-titles="):
			v, err := boolFlag(a, "--link-titles")
			if err != nil {
				return runArgs{}, err
			}
			ra.LinkTitles, ra.LinkTitlesSet = v, true
		case strings.HasPrefix(a, "-"):
			return runArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			if ra.Input != "" {
				return runArgs{}, fmt.Errorf("重复的 input：%q 与 %q", ra.Input, a)
			}
			ra.Input = a
		}
	}

	if ra.ProviderSet {
		switch ra.Provider {
		case "imdb", "omdb":
			// ok
		case "":
			return runArgs{}, fmt.Errorf("--provider 不能为空")
		default:
			return runArgs{}, fmt.Errorf("--provider 只能是 imdb 或 omdb，实际是 %q", ra.Provider)
		}
	}
	if ra.OutSet && strings.TrimSpace(ra.Out) == "" {
		return runArgs{}, fmt.Errorf("--out 不能为空")
	}

	return ra, nil
}

// boolFlag 解析 --x 与 --x=true|false 两种形式。
func boolFlag(arg, name string) (bool, error) {
	if arg == name {
		return true, nil
	}
	switch v := strings.TrimPrefix(arg, name+"="); v {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("%s 只能是 true 或 false，实际是 %q", name, v)
	}
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `用法：
  movienotes run [input] [--provider imdb|omdb] [--out DIR] [--apply[=true|false]]
                 [--pages[=true|false]] [--link-titles[=true|false]]
  movienotes show [DIR] [--run ID] [--csv] [--link-titles]

命令：
  run    查找片名并生成导出物与笔记页面（默认 dry-run）
  show   从 snapshot.db 读回某次运行的结果（默认最近一次）

使用 "movienotes <命令> --help" 查看详细说明。
`)
}

func printRunUsage(w io.Writer) {
	fmt.Fprint(w, `用法：
  movienotes run [input] [--provider imdb|omdb] [--out DIR] [--apply[=true|false]]
                 [--pages[=true|false]] [--link-titles[=true|false]]

参数：
  input          片名列表：CSV（默认列 Movies）或 .txt（每行一个）；未指定则读 ./movienotes.yaml 的 input
  --provider     首选 provider：imdb|omdb（omdb 需要 OMDB_API_KEY；最终默认 imdb）
  --out          输出目录（默认 <input 所在目录>/out）
  --apply        写入 snapshot.db、results.csv、movie_main.txt、pages/ 与 report.json（默认 dry-run）
  --pages        apply 时是否生成笔记页面（默认 true）
  --link-titles  movie_main.txt 的 title 列写成 [[title]]
  -h, --help     显示帮助
`)
}

func summaryLine(rr domain.RunReport) string {
	return fmt.Sprintf("完成：total=%d found=%d not_found=%d failed=%d pages_failed=%d",
		rr.Summary.Total, rr.Summary.Found, rr.Summary.NotFound, rr.Summary.Failed, rr.Summary.PagesFailed,
	)
}

func emitReport(std stdio, rr domain.RunReport) {
	if isTTY(std.out) {
		fmt.Fprintln(std.out, summaryLine(rr))
		for _, it := range rr.Items {
			if it.ErrorCode == "" {
				continue
			}
			key := it.Query
			if key == "" {
				// 配置/导出等合成条目
				key = "<run>"
			}
			fmt.Fprintf(std.err, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(std.out)
	_ = enc.Encode(rr)
	fmt.Fprintln(std.err, summaryLine(rr))
}

func reportForEarlyError(inputPath string, apply bool, code string, err error) domain.RunReport {
	if code == "" {
		code = domain.ErrCodeConfigInvalid
	}
	now := time.Now().UTC()
	rr := domain.RunReport{
		Input:      inputPath,
		DryRun:     !apply,
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.ItemResult{{
			Status:    domain.StatusFailed,
			ErrorCode: code,
			ErrorMsg:  err.Error(),
			Defaulted: []string{},
			Attempts:  []domain.ProviderAttempt{},
		}},
	}
	rr.Finalize()
	return rr
}

func writeReportFile(outDir string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if err := fsx.EnsureDir(outDir); err != nil {
		return err
	}
	return fsx.WriteFileAtomicReplace(outDir, ReportFileName, b)
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter(std stdio) (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(std.err) {
		return std.err, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(std.out) {
		return std.out, true
	}
	return nil, false
}

func emitLocations(w io.Writer, eff config.EffectiveConfig) {
	if w == nil {
		return
	}
	if eff.Apply {
		fmt.Fprintf(w, "report: %s\n", filepath.Join(eff.OutDir, ReportFileName))
	}
	fmt.Fprintf(w, "out: %s\n", eff.OutDir)
}
