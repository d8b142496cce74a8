package orchestrator

import (
	"fmt"

	"mindgate/internal/core"
)

// Caller-facing texts of each step
const (
	SubmittedText  = "🚀 任务已提交，正在处理..."
	QueuedText     = "⏳ 排队中..."
	FinalizingText = "⏳ 进度: 99%，收尾处理中，请稍候..."
)

// finalizingThreshold is where the provider parks while post-processing.
// Empirical, not a documented contract; the deadline still applies.
const finalizingThreshold = 99

// ProgressText renders a progress line
func ProgressText(percent int) string {
	return fmt.Sprintf("⏳ 进度: %d%%", percent)
}

// CompletedText embeds the media reference as markdown
func CompletedText(url string) string {
	return fmt.Sprintf("\n\n![Generated Content](%s)", url)
}

// ErrorText renders a terminal failure
func ErrorText(msg string) string {
	return fmt.Sprintf("\n\n❌ 错误: %s", msg)
}

// progressTracker labels snapshots and remembers how long progress has been parked at the threshold
type progressTracker struct {
	parked int
}

func (t *progressTracker) observe(snap core.TaskSnapshot) string {
	if snap.Progress >= finalizingThreshold {
		t.parked++
	} else {
		t.parked = 0
	}
	return Label(snap)
}

// Label renders a non-terminal snapshot: queued, in-flight percent, or finalizing
func Label(snap core.TaskSnapshot) string {
	switch {
	case snap.Status == core.StatusPending && snap.Progress == 0:
		return QueuedText
	case snap.Progress >= finalizingThreshold:
		return FinalizingText
	default:
		return ProgressText(snap.Progress)
	}
}
