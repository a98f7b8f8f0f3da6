package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/John-Robertt/movienotes/internal/domain"
	"github.com/John-Robertt/movienotes/internal/export"
)

func TestParseRunArgs(t *testing.T) {
	ra, err := parseRunArgs([]string{"movies.csv", "--provider", "omdb", "--out=notes", "--apply", "--pages=false", "--link-titles=true"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if ra.Input != "movies.csv" || ra.Provider != "omdb" || !ra.ProviderSet {
		t.Fatalf("input/provider 解析错误：%+v", ra)
	}
	if ra.Out != "notes" || !ra.OutSet {
		t.Fatalf("out 解析错误：%+v", ra)
	}
	if !ra.Apply || !ra.ApplySet || ra.Pages || !ra.PagesSet || !ra.LinkTitles || !ra.LinkTitlesSet {
		t.Fatalf("布尔参数解析错误：%+v", ra)
	}

	bad := [][]string{
		{"--provider"},
		{"--provider=tmdb"},
		{"--apply=yes"},
		{"--out="},
		{"a.csv", "b.csv"},
		{"--unknown"},
	}
	for _, args := range bad {
		if _, err := parseRunArgs(args); err == nil {
			t.Fatalf("期望参数错误：%v", args)
		}
	}
}

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("..", "..", "internal", "provider", "imdb", "testdata", name))
	if err != nil {
		t.Fatalf("读取 fixture 失败：%v", err)
	}
	return b
}

// newIMDbServer 只认识 Inception；其它片名都返回空搜索结果。
func newIMDbServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/find/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "Inception" {
			_, _ = w.Write(fixture(t, "find.html"))
			return
		}
		_, _ = w.Write(fixture(t, "find_empty.html"))
	})
	mux.HandleFunc("/title/tt1375666/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(fixture(t, "tt1375666.html"))
	})
	mux.HandleFunc("/title/tt1375666/plotsummary/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(fixture(t, "tt1375666_plotsummary.html"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func setupEnv(t *testing.T, srv *httptest.Server) {
	t.Helper()
	t.Setenv("MOVIENOTES_IMDB_BASE_URL", srv.URL)
	t.Setenv("OMDB_API_KEY", "")
	t.Setenv("MOVIENOTES_PROVIDER", "")
	t.Setenv("MOVIENOTES_OUT", "")
	t.Setenv("MOVIENOTES_LOG_LEVEL", "error")
}

func writeInput(t *testing.T, titles ...string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "movies_to_search.csv")
	body := "Movies,Notes\n"
	for _, title := range titles {
		body += title + ",\n"
	}
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("写入输入失败：%v", err)
	}
	return p
}

func decodeSingleReport(t *testing.T, stdout *bytes.Buffer) domain.RunReport {
	t.Helper()
	raw := stdout.String()
	var rr domain.RunReport
	dec := json.NewDecoder(stdout)
	if err := dec.Decode(&rr); err != nil {
		t.Fatalf("stdout 不是合法的 RunReport JSON：%v\n%q", err, raw)
	}
	if dec.More() {
		t.Fatalf("stdout 只能有一个 JSON：%q", raw)
	}
	return rr
}

func TestCLI_NoTTY_StdoutOnlyRunReportJSON(t *testing.T) {
	// 锁定对外契约：stdout 非 TTY 时只能输出一个 RunReport JSON（进度/摘要走 stderr）。
	setupEnv(t, newIMDbServer(t))
	in := writeInput(t, "Inception", "zzqx")

	var stdout, stderr bytes.Buffer
	code := runCmd(context.Background(), []string{in}, stdio{out: &stdout, err: &stderr})
	if code != 1 {
		t.Fatalf("存在未找到的片名时退出码应为 1，实际 %d", code)
	}

	rr := decodeSingleReport(t, &stdout)
	if !rr.DryRun {
		t.Fatalf("未指定 --apply 时应为 dry-run")
	}
	if want := (domain.ReportSummary{Total: 2, Found: 1, NotFound: 1}); rr.Summary != want {
		t.Fatalf("summary：期望 %+v，实际 %+v", want, rr.Summary)
	}
	if len(rr.Items) != 2 {
		t.Fatalf("期望 2 个条目，实际 %d", len(rr.Items))
	}
	if rr.Items[0].Title != "Inception" || rr.Items[0].ProviderUsed != "imdb" {
		t.Fatalf("第一个条目不符合预期：%+v", rr.Items[0])
	}
	if rr.Items[1].Title != "zzqx" {
		t.Fatalf("未找到的条目应以查询词为标题：%+v", rr.Items[1])
	}
	if !strings.Contains(stderr.String(), "完成：total=2") {
		t.Fatalf("stderr 应包含摘要行：%q", stderr.String())
	}

	if _, err := os.Stat(filepath.Join(filepath.Dir(in), "out")); !os.IsNotExist(err) {
		t.Fatalf("dry-run 不应创建 out/：err=%v", err)
	}
}

func TestCLI_Apply_WritesEverything(t *testing.T) {
	setupEnv(t, newIMDbServer(t))
	in := writeInput(t, "Inception")
	out := filepath.Join(filepath.Dir(in), "notes")

	var stdout, stderr bytes.Buffer
	code := runCmd(context.Background(), []string{in, "--apply", "--out", out, "--link-titles"}, stdio{out: &stdout, err: &stderr})
	if code != 0 {
		t.Fatalf("期望退出码 0，实际 %d；stderr=%s", code, stderr.String())
	}

	for _, name := range []string{ReportFileName, export.CSVFileName, export.SummaryFileName, "snapshot.db", filepath.Join("pages", "Inception.md")} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Fatalf("缺少输出 %s：%v", name, err)
		}
	}

	pg, err := os.ReadFile(filepath.Join(out, "pages", "Inception.md"))
	if err != nil {
		t.Fatalf("读取页面失败：%v", err)
	}
	for _, want := range []string{"Year: 2010\n", "Director: Christopher Nolan\n", "# Inception\n"} {
		if !strings.Contains(string(pg), want) {
			t.Fatalf("页面缺少 %q：\n%s", want, pg)
		}
	}

	table, err := os.ReadFile(filepath.Join(out, export.SummaryFileName))
	if err != nil {
		t.Fatalf("读取 %s 失败：%v", export.SummaryFileName, err)
	}
	if !strings.Contains(string(table), "[[Inception]]") {
		t.Fatalf("--link-titles 时 title 应写成 [[...]]：\n%s", table)
	}

	b, err := os.ReadFile(filepath.Join(out, ReportFileName))
	if err != nil {
		t.Fatalf("读取 report.json 失败：%v", err)
	}
	var fromFile domain.RunReport
	if err := json.Unmarshal(b, &fromFile); err != nil {
		t.Fatalf("report.json 不是合法 JSON：%v", err)
	}
	if fromFile.DryRun {
		t.Fatalf("--apply 时 report.dry_run 应为 false")
	}
	if len(fromFile.Items) != 1 || fromFile.Items[0].Page != "pages/Inception.md" {
		t.Fatalf("page 路径不符合预期：%+v", fromFile.Items)
	}
}

func TestCLI_InvalidInputFailsFast(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ }))
	t.Cleanup(srv.Close)
	setupEnv(t, srv)

	dir := t.TempDir()
	in := filepath.Join(dir, "movies.csv")
	if err := os.WriteFile(in, []byte("Name\nInception\n"), 0o644); err != nil {
		t.Fatalf("写入输入失败：%v", err)
	}

	cases := []struct {
		name       string
		args       []string
		wantDryRun bool
	}{
		{"dry-run", []string{in}, true},
		{"apply", []string{in, "--apply"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := runCmd(context.Background(), tc.args, stdio{out: &stdout, err: &stderr}); code != 1 {
				t.Fatalf("期望退出码 1，实际 %d", code)
			}

			rr := decodeSingleReport(t, &stdout)
			if rr.DryRun != tc.wantDryRun {
				t.Fatalf("dry_run：期望 %v，实际 %v", tc.wantDryRun, rr.DryRun)
			}
			if len(rr.Items) != 1 {
				t.Fatalf("期望 1 个合成条目，实际 %d", len(rr.Items))
			}
			if rr.Items[0].ErrorCode != domain.ErrCodeInputInvalid {
				t.Fatalf("error_code：期望 %s，实际 %s", domain.ErrCodeInputInvalid, rr.Items[0].ErrorCode)
			}
			if !strings.Contains(rr.Items[0].ErrorMsg, "Movies") {
				t.Fatalf("错误信息应指出缺少的列：%q", rr.Items[0].ErrorMsg)
			}
		})
	}
	if hits != 0 {
		t.Fatalf("输入不合法时不应发出任何请求，实际 %d 次", hits)
	}
	if _, err := os.Stat(filepath.Join(dir, "out")); !os.IsNotExist(err) {
		t.Fatalf("输入不合法时不应创建输出目录：err=%v", err)
	}
}

func TestCLI_UsageErrorExitCode2(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := runCmd(context.Background(), []string{"--provider=tmdb"}, stdio{out: &stdout, err: &stderr}); code != 2 {
		t.Fatalf("期望退出码 2，实际 %d", code)
	}
	if !strings.Contains(stderr.String(), "参数错误") {
		t.Fatalf("stderr 应提示参数错误：%q", stderr.String())
	}
	if stdout.Len() != 0 {
		t.Fatalf("参数错误时 stdout 应为空：%q", stdout.String())
	}
}
