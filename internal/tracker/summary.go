package tracker

import (
	"context"

	"github.com/mesh-intelligence/duet/pkg/types"
)

// Summary counts open work per assignee.
type Summary struct {
	Claude     int `json:"claude"`
	Ray        int `json:"ray"`
	Both       int `json:"both"`
	WaitingRay int `json:"waitingRay"`
	Total      int `json:"total"`
}

// GetSummary counts the open tasks in the store.
func (e *Engine) GetSummary(ctx context.Context) (Summary, error) {
	tasks, err := e.ListTasks(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(tasks), nil
}

// Summarize counts tasks that are not done. WaitingRay counts the subset
// waiting on Ray.
func Summarize(tasks []*types.Task) Summary {
	var s Summary
	for _, t := range tasks {
		if !t.IsOpen() {
			continue
		}
		s.Total++
		switch t.Assignee {
		case types.AssigneeClaude:
			s.Claude++
		case types.AssigneeRay:
			s.Ray++
		case types.AssigneeBoth:
			s.Both++
		}
		if t.Status == types.StatusWaitingRay {
			s.WaitingRay++
		}
	}
	return s
}
