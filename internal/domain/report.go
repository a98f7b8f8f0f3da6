package domain

import (
	"sort"
	"time"
)

const (
	StatusFound    = "found"
	StatusNotFound = "not_found"
	StatusFailed   = "failed"
)

const (
	PageStatusWritten = "written"
	PageStatusKept    = "kept"
	PageStatusFailed  = "failed"
)

const (
	ErrCodeLookupFailed        = "lookup_failed"
	ErrCodeProviderUnavailable = "provider_unavailable"
	ErrCodeParseFailed         = "parse_failed"
	ErrCodePageFailed          = "page_failed"
	ErrCodeIOFailed            = "io_failed"
	ErrCodeInputInvalid        = "input_invalid"
	ErrCodeConfigNotFound      = "config_not_found"
	ErrCodeConfigInvalid       = "config_invalid"
	ErrCodeConfigMissingInput  = "config_missing_input"
)

// RunReport 是对外稳定输出（report.json / stdout JSON）的结构。
type RunReport struct {
	RunID  string `json:"run_id"`
	Input  string `json:"input"`
	DryRun bool   `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Total       int `json:"total"`
	Found       int `json:"found"`
	NotFound    int `json:"not_found"`
	Failed      int `json:"failed"`
	PagesFailed int `json:"pages_failed"`
}

// ItemResult 是单个输入标题的处理结果（Index 从 1 开始，与输入顺序一致）。
// Index==0 表示与具体标题无关的合成项（配置/导出失败等）。
type ItemResult struct {
	Index             int    `json:"index"`
	Query             string `json:"query"`
	Title             string `json:"title"`
	ProviderRequested string `json:"provider_requested"`
	ProviderUsed      string `json:"provider_used"`
	Website           string `json:"website"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	MatchScore float64  `json:"match_score"`
	Defaulted  []string `json:"defaulted"`

	Attempts []ProviderAttempt `json:"attempts"`

	Page       string `json:"page"`
	PageStatus string `json:"page_status"`
}

// ProviderAttempt 是 provider 回退链路中的一次尝试。
type ProviderAttempt struct {
	Provider string `json:"provider"`
	Stage    string `json:"stage"` // "search" / "fetch" / "parse" / "ok"
	Error    string `json:"error,omitempty"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按 index 升序；index==0 的合成项排在最后
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a := r.Items[i].Index
		b := r.Items[j].Index
		if a == 0 {
			return false
		}
		if b == 0 {
			return true
		}
		return a < b
	})

	var s ReportSummary
	for _, it := range r.Items {
		if it.Index > 0 {
			s.Total++
		}
		switch it.Status {
		case StatusFound:
			s.Found++
		case StatusNotFound:
			s.NotFound++
		case StatusFailed:
			s.Failed++
		}
		if it.PageStatus == PageStatusFailed {
			s.PagesFailed++
		}
	}
	r.Summary = s
}
