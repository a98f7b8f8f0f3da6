package logx

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestManager_FiltersBelowMinLevel(t *testing.T) {
	old := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = old }()

	var buf bytes.Buffer
	m := NewManager(&buf, WARNING)
	l := m.Get("normalize")

	l.Emit(INFO, "不应输出 %d", 1)
	l.Emit(WARNING, "字段 %s 缺失", "rating")

	out := buf.String()
	if strings.Contains(out, "不应输出") {
		t.Fatalf("低于最低级别的日志不应输出：%q", out)
	}
	if out != "[normalize] (!) 字段 rating 缺失\n" {
		t.Fatalf("输出格式不符合预期：%q", out)
	}
}

func TestManager_PadsNamesToLongest(t *testing.T) {
	old := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = old }()

	var buf bytes.Buffer
	m := NewManager(&buf, VERBOSE)
	m.Get("provider").Emit(INFO, "a")
	m.Get("run").Emit(INFO, "b")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("期望 2 行，实际 %d：%q", len(lines), buf.String())
	}
	if lines[1] != "[run]      (I) b" {
		t.Fatalf("名称对齐不符合预期：%q", lines[1])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{"": INFO, "debug": DEBUG, " WARN ": WARNING, "error": ERROR}
	for in, want := range cases {
		got, ok := ParseLevel(in)
		if !ok || got != want {
			t.Fatalf("ParseLevel(%q) 期望 %v，实际 %v ok=%v", in, want, got, ok)
		}
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Fatalf("未知级别不应解析成功")
	}
}
