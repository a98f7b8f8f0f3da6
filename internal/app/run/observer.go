package run

import (
	"time"

	"github.com/John-Robertt/movienotes/internal/config"
	"github.com/John-Robertt/movienotes/internal/domain"
)

// Observer 用于把“运行进度/阶段/条目结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：CLI 的 keepalive ticker 会在另一个 goroutine 里调用 OnProgress。
// - 事件只用于观察，不影响控制流。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用（应尽量早，保证用户 1 秒内看到输出）。
	OnStart(eff config.EffectiveConfig, total int)
	// OnItemStart 在开始查找某个标题时调用。
	OnItemStart(idx, total int, query string)
	// OnItemDone 在某个标题处理完成时调用；每个标题恰好一次（进度单位）。
	OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration)
	// OnPhaseDone 在阶段结束时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnProgress 用于 keepalive（通常由 CLI 自己 ticker 触发；run 层不强制调用）。
	OnProgress(done, total, found, notFound, failed int, current string, elapsed time.Duration)
}
