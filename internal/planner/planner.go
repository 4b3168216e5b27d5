// Package planner resolves a download request into the ordered list of
// per-day targets, with advisory size estimates. It performs no I/O
// beyond consulting the inventory index it is handed.
package planner

import (
	"path"
	"path/filepath"
	"time"

	"github.com/gtfsrt-io/rtfetch/internal/dates"
	"github.com/gtfsrt-io/rtfetch/internal/feed"
	"github.com/gtfsrt-io/rtfetch/internal/inventory"
)

// DataFileName is the object name inside each partition directory.
const DataFileName = "data.parquet"

// tokenSegment is the hive partition key for the encoded feed URL.
const tokenSegment = "base64url="

// Target is one unit of download work: one feed, one calendar day.
type Target struct {
	Type     feed.Type
	Token    string
	Day      time.Time
	DestRoot string
}

// RelSegments returns the partition path segments shared by the local
// cache and the remote locator.
func (t Target) RelSegments() []string {
	return []string{
		string(t.Type),
		"date=" + t.Day.Format(dates.Layout),
		tokenSegment + t.Token,
		DataFileName,
	}
}

// LocalPath is the deterministic cache location for this target. Its
// existence is the sole idempotency signal.
func (t Target) LocalPath() string {
	return filepath.Join(append([]string{t.DestRoot}, t.RelSegments()...)...)
}

// LocalDir is the partition directory containing LocalPath.
func (t Target) LocalDir() string {
	return filepath.Dir(t.LocalPath())
}

// RemoteURL is the source locator under the given base URL.
func (t Target) RemoteURL(baseURL string) string {
	return baseURL + "/" + path.Join(t.RelSegments()...)
}

// FeedKey identifies the feed a target belongs to, for grouping
// outcomes in the run summary.
func (t Target) FeedKey() string {
	return string(t.Type) + "/" + t.Token
}

// FeedPlan is the planned work for a single feed: its targets plus the
// advisory size estimate for the requested window.
type FeedPlan struct {
	Record feed.Record
	// EstimatedBytes assumes the feed's historical volume is spread
	// uniformly over its covered days. An estimate only, never a
	// contract.
	EstimatedBytes int64
	Targets        []Target
}

// Plan is an ordered batch of download targets. Targets are grouped by
// feed in Feeds order; within a feed, days ascend.
type Plan struct {
	Feeds          []FeedPlan
	Targets        []Target
	EstimatedBytes int64
	// OutsideAvailable is set when the requested window extends beyond
	// the inventory's date bounds for the resolved scope. Advisory: the
	// plan still covers the full request and missing days simply fail
	// or skip per target.
	OutsideAvailable bool
	Range            dates.Range
}

// PlanExplicit plans one target per day for a directly supplied feed
// descriptor, trusting the caller's token and consulting no inventory.
func PlanExplicit(ft feed.Type, token string, r dates.Range, destRoot string) Plan {
	targets := make([]Target, 0, r.DayCount())
	for day := range r.Days() {
		targets = append(targets, Target{Type: ft, Token: token, Day: day, DestRoot: destRoot})
	}
	return Plan{Targets: targets, Range: r}
}

// PlanForAgency resolves agencyID (and optionally systemID) against the
// index and expands every feed in scope over the requested range.
// UnknownAgency and UnknownSystem propagate unchanged.
func PlanForAgency(ix *inventory.Index, agencyID, systemID string, r dates.Range, destRoot string) (Plan, error) {
	scope, err := ix.Resolve(agencyID, systemID)
	if err != nil {
		return Plan{}, err
	}
	return planScope(scope, r, destRoot), nil
}

// AllDatesRange is the full available window for an agency or system,
// derived from the inventory's aggregate bounds.
func AllDatesRange(ix *inventory.Index, agencyID, systemID string) (dates.Range, error) {
	scope, err := ix.Resolve(agencyID, systemID)
	if err != nil {
		return dates.Range{}, err
	}
	return dates.NewRange(scope.DateMin, scope.DateMax)
}

func planScope(scope inventory.Scope, r dates.Range, destRoot string) Plan {
	plan := Plan{
		Range:            r,
		OutsideAvailable: r.OutsideAvailable(scope.DateMin, scope.DateMax),
	}
	for _, rec := range scope.Feeds {
		fp := FeedPlan{
			Record:         rec,
			EstimatedBytes: EstimateBytes(rec, r),
			Targets:        make([]Target, 0, r.DayCount()),
		}
		for day := range r.Days() {
			fp.Targets = append(fp.Targets, Target{
				Type:     rec.Type,
				Token:    rec.Token,
				Day:      day,
				DestRoot: destRoot,
			})
		}
		plan.Feeds = append(plan.Feeds, fp)
		plan.Targets = append(plan.Targets, fp.Targets...)
		plan.EstimatedBytes += fp.EstimatedBytes
	}
	return plan
}

// EstimateBytes predicts the download volume for one feed over the
// requested window, assuming uniform daily volume across the feed's
// covered range.
func EstimateBytes(rec feed.Record, r dates.Range) int64 {
	covered, err := dates.NewRange(rec.DateMin, rec.DateMax)
	if err != nil {
		return 0
	}
	days := int64(covered.DayCount())
	if days < 1 {
		days = 1
	}
	return rec.TotalBytes / days * int64(r.DayCount())
}
