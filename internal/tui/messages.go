package tui

import (
	"fmt"

	"github.com/gtfsrt-io/rtfetch/internal/fetcher"
	"github.com/gtfsrt-io/rtfetch/internal/orchestrator"
	"github.com/gtfsrt-io/rtfetch/internal/planner"
)

// TargetStartedMsg marks the start of one target's fetch.
type TargetStartedMsg struct {
	Index  int
	Total  int
	Target planner.Target
}

// TargetFinishedMsg carries one target's outcome.
type TargetFinishedMsg struct {
	Index   int
	Total   int
	Outcome fetcher.Outcome
}

// RunFinishedMsg carries the final summary once the pass is over.
type RunFinishedMsg struct {
	Summary *orchestrator.Summary
	Err     error
}

func (m TargetStartedMsg) String() string {
	return fmt.Sprintf("Started %d/%d: %s", m.Index+1, m.Total, m.Target.FeedKey())
}

func (m TargetFinishedMsg) String() string {
	return fmt.Sprintf("Finished %d/%d: %s", m.Index+1, m.Total, m.Outcome.Status)
}
