package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/John-Robertt/movienotes/internal/config"
	"github.com/John-Robertt/movienotes/internal/domain"
)

func TestFormatFallbackNote(t *testing.T) {
	res := domain.ItemResult{
		ProviderRequested: "imdb",
		ProviderUsed:      "omdb",
		Status:            domain.StatusFound,
		Attempts: []domain.ProviderAttempt{
			{Provider: "imdb", Stage: "fetch", Error: "blocked: waf-challenge"},
			{Provider: "omdb", Stage: "ok"},
		},
	}
	got := formatFallbackNote(res)
	if !strings.Contains(got, "imdb fetch") || !strings.Contains(got, "waf-challenge") {
		t.Fatalf("fallback note 不符合预期：%q", got)
	}

	res.ProviderUsed = "imdb"
	if got := formatFallbackNote(res); got != "" {
		t.Fatalf("未回退时不应输出 note：%q", got)
	}
}

func TestFormatAttemptChain(t *testing.T) {
	attempts := []domain.ProviderAttempt{
		{Provider: "imdb", Stage: "search", Error: "HTTP 503"},
		{Provider: "omdb", Stage: "search"},
	}
	got := formatAttemptChain(attempts, -1)
	if got != "imdb:search:HTTP 503;omdb:search" {
		t.Fatalf("attempt chain 不符合预期：%q", got)
	}
	if got := formatAttemptChain(attempts, 1); got != "imdb:search:HTTP 503" {
		t.Fatalf("max=1 时只输出第一段：%q", got)
	}
}

func TestProviderChain(t *testing.T) {
	if got := providerChain("omdb", []string{"imdb", "omdb"}); got != "omdb -> imdb" {
		t.Fatalf("回退顺序不符合预期：%q", got)
	}
}

func TestProgressUI_OneLinePerItem(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	ui := newProgressUI(&buf, []string{"imdb"})

	ui.OnStart(config.EffectiveConfig{Input: "/m/movies.csv", OutDir: "/m/out", Provider: "imdb"}, 2)
	ui.OnItemStart(1, 2, "inception")
	ui.OnItemDone(1, 2, domain.ItemResult{Query: "inception", Title: "Inception", Status: domain.StatusFound, ProviderUsed: "imdb", MatchScore: 1}, time.Second)
	ui.OnItemStart(2, 2, "zzqx")
	ui.OnItemDone(2, 2, domain.ItemResult{Query: "zzqx", Status: domain.StatusNotFound}, time.Second)
	ui.stop()

	out := buf.String()
	for _, want := range []string{"dry-run", "[1/2] FOUND inception", "[2/2] NOT_FOUND zzqx"} {
		if !strings.Contains(out, want) {
			t.Fatalf("输出缺少 %q：\n%s", want, out)
		}
	}
	if ui.tickerStarted {
		t.Fatalf("最后一条完成后 ticker 应已停止")
	}
}
