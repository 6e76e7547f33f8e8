package tracker

import (
	"context"
	"strings"
	"time"

	"github.com/mesh-intelligence/duet/pkg/types"
)

// Section headings of the exported documents. ParseMarkdown reads them back.
const (
	scheduledHeading  = "# Scheduled - 期限付きタスク"
	completedHeading  = "# Completed - 完了タスク"
	inProgressHeading = "## 作業中 (In Progress)"
	waitingRayHeading = "## Ray確認待ち"
	todoHeading       = "## Todo"
	doneHeading       = "## 完了済み"

	emptyBucket  = "- （なし）"
	sectionBreak = "\n\n---\n\n"
)

// Stats counts tasks per status in an export.
type Stats struct {
	Todo       int `json:"todo"`
	InProgress int `json:"inProgress"`
	WaitingRay int `json:"waitingRay"`
	Done       int `json:"done"`
	Total      int `json:"total"`
}

// Export holds the two rendered markdown documents and their counts.
type Export struct {
	Scheduled string `json:"scheduled"`
	Completed string `json:"completed"`
	Stats     Stats  `json:"stats"`
}

// ExportToMarkdown renders every task into the scheduled and completed
// documents, stamped with the engine clock.
func (e *Engine) ExportToMarkdown(ctx context.Context) (out Export, err error) {
	ctx, done := e.ops.Start(ctx, "export")
	defer func() { done(err) }()

	tasks, err := e.ListTasks(ctx)
	if err != nil {
		return Export{}, err
	}
	out = RenderMarkdown(tasks, e.clock())
	e.logger.Debug("exported tasks", "total", out.Stats.Total)
	return out, nil
}

// RenderMarkdown partitions tasks by status, keeping their order, and
// renders both documents. The timestamp is formatted in at's location.
func RenderMarkdown(tasks []*types.Task, at time.Time) Export {
	buckets := make(map[types.Status][]*types.Task, len(types.Statuses))
	for _, t := range tasks {
		buckets[t.Status] = append(buckets[t.Status], t)
	}
	stamp := "> 最終エクスポート: " + at.Format("2006-01-02 15:04:05")

	scheduled := strings.Join([]string{
		scheduledHeading + "\n\n" + stamp,
		inProgressHeading + "\n\n" + renderBucket(buckets[types.StatusInProgress], openLine),
		waitingRayHeading + "\n\n" + renderBucket(buckets[types.StatusWaitingRay], openLine),
		todoHeading + "\n\n" + renderBucket(buckets[types.StatusTodo], openLine),
	}, sectionBreak) + "\n"

	completed := strings.Join([]string{
		completedHeading + "\n\n" + stamp,
		doneHeading + "\n\n" + renderBucket(buckets[types.StatusDone], doneLine),
	}, sectionBreak) + "\n"

	return Export{
		Scheduled: scheduled,
		Completed: completed,
		Stats: Stats{
			Todo:       len(buckets[types.StatusTodo]),
			InProgress: len(buckets[types.StatusInProgress]),
			WaitingRay: len(buckets[types.StatusWaitingRay]),
			Done:       len(buckets[types.StatusDone]),
			Total:      len(tasks),
		},
	}
}

func renderBucket(tasks []*types.Task, line func(*types.Task) string) string {
	if len(tasks) == 0 {
		return emptyBucket
	}
	lines := make([]string, len(tasks))
	for i, t := range tasks {
		lines[i] = line(t)
	}
	return strings.Join(lines, "\n")
}

func openLine(t *types.Task) string {
	var b strings.Builder
	b.WriteString("- [ ] ")
	b.WriteString(t.Title)
	b.WriteString(tagSuffix(t.Tag))
	b.WriteString(" ")
	b.WriteString(t.Assignee.Marker())
	if m := t.Priority.Marker(); m != "" {
		b.WriteString(" ")
		b.WriteString(m)
	}
	return b.String()
}

func doneLine(t *types.Task) string {
	return "- [x] " + t.Title + tagSuffix(t.Tag)
}

func tagSuffix(tag string) string {
	if tag == "" {
		return ""
	}
	return " #" + tag
}
