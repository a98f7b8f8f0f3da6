package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/John-Robertt/movienotes/internal/domain"
	"github.com/John-Robertt/movienotes/internal/infra/snapshot"
)

func TestParseShowArgs(t *testing.T) {
	sa, err := parseShowArgs(nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if sa.Dir != defaultShowDir || sa.RunID != "" || sa.CSV || sa.LinkTitles {
		t.Fatalf("默认值不符合预期：%+v", sa)
	}

	sa, err = parseShowArgs([]string{"notes", "--run=abc", "--csv", "--link-titles=true"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if sa.Dir != "notes" || sa.RunID != "abc" || !sa.CSV || !sa.LinkTitles {
		t.Fatalf("解析结果不符合预期：%+v", sa)
	}

	for _, args := range [][]string{
		{"--run"},
		{"--run="},
		{"--csv=maybe"},
		{"a", "b"},
		{"--apply"},
	} {
		if _, err := parseShowArgs(args); err == nil {
			t.Fatalf("期望参数错误：%v", args)
		}
	}
}

func seedSnapshot(t *testing.T, dir string) {
	t.Helper()
	st, err := snapshot.Open(dir)
	if err != nil {
		t.Fatalf("打开 snapshot 失败：%v", err)
	}
	defer st.Close()

	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var first domain.ResultSet
	first.Append("heat", domain.MovieRecord{Title: "Heat", Year: "1995"}, domain.LookupFound)
	if err := st.Save(ctx, "run-old", t0, first); err != nil {
		t.Fatalf("Save 失败：%v", err)
	}

	var second domain.ResultSet
	second.Append("alien", domain.MovieRecord{Title: "Alien", Year: "1979", Rating: "8.5"}, domain.LookupFound)
	second.Append("zzqx", domain.MovieRecord{Title: "zzqx"}, domain.LookupNotFound)
	if err := st.Save(ctx, "run-new", t0.Add(time.Minute), second); err != nil {
		t.Fatalf("Save 失败：%v", err)
	}
}

func TestShow_LatestRunAsTable(t *testing.T) {
	dir := t.TempDir()
	seedSnapshot(t, dir)

	var stdout, stderr bytes.Buffer
	if code := showCmd(context.Background(), []string{dir, "--link-titles"}, stdio{out: &stdout, err: &stderr}); code != 0 {
		t.Fatalf("期望退出码 0，实际 %d；stderr=%s", code, stderr.String())
	}
	out := stdout.String()
	if !strings.Contains(out, "[[Alien]]") || !strings.Contains(out, "zzqx") {
		t.Fatalf("应输出最近一次运行的表格：\n%s", out)
	}
	if strings.Contains(out, "Heat") {
		t.Fatalf("不应包含较早的运行：\n%s", out)
	}
	if !strings.Contains(stderr.String(), "run=run-new total=2 found=1") {
		t.Fatalf("stderr 摘要不符合预期：%q", stderr.String())
	}
}

func TestShow_SpecificRunAsCSV(t *testing.T) {
	dir := t.TempDir()
	seedSnapshot(t, dir)

	var stdout, stderr bytes.Buffer
	if code := showCmd(context.Background(), []string{dir, "--run", "run-old", "--csv"}, stdio{out: &stdout, err: &stderr}); code != 0 {
		t.Fatalf("期望退出码 0，实际 %d；stderr=%s", code, stderr.String())
	}
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("期望表头 + 1 行，实际：\n%s", stdout.String())
	}
	if !strings.HasPrefix(lines[1], "Heat,1995,") {
		t.Fatalf("CSV 数据行不符合预期：%q", lines[1])
	}
}

func TestShow_Errors(t *testing.T) {
	var stdout, stderr bytes.Buffer

	// 没有 snapshot：不应顺手创建空库
	empty := filepath.Join(t.TempDir(), "nothing")
	if code := showCmd(context.Background(), []string{empty}, stdio{out: &stdout, err: &stderr}); code != 1 {
		t.Fatalf("没有 snapshot 时期望退出码 1，实际 %d", code)
	}
	if !strings.Contains(stderr.String(), "没有找到 snapshot") {
		t.Fatalf("stderr 应提示缺少 snapshot：%q", stderr.String())
	}

	dir := t.TempDir()
	seedSnapshot(t, dir)
	stderr.Reset()
	if code := showCmd(context.Background(), []string{dir, "--run=missing"}, stdio{out: &stdout, err: &stderr}); code != 1 {
		t.Fatalf("run 不存在时期望退出码 1，实际 %d", code)
	}
	if !strings.Contains(stderr.String(), "missing") {
		t.Fatalf("stderr 应指出缺失的 run：%q", stderr.String())
	}

	if code := showCmd(context.Background(), []string{"--bogus"}, stdio{out: &stdout, err: &stderr}); code != 2 {
		t.Fatalf("参数错误时期望退出码 2，实际 %d", code)
	}
	if stdout.Len() != 0 {
		t.Fatalf("出错时 stdout 应为空：%q", stdout.String())
	}
}
