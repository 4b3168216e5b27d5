// Package inventory builds the agency → system → feed index from the
// flat feed catalog and answers resolution and listing queries over it.
package inventory

import (
	"fmt"
	"sort"
	"time"

	"github.com/gtfsrt-io/rtfetch/internal/feed"
)

// UnknownAgencyError reports a lookup for an agency the catalog does
// not contain.
type UnknownAgencyError struct {
	AgencyID string
}

func (e *UnknownAgencyError) Error() string {
	return fmt.Sprintf("unknown agency %q", e.AgencyID)
}

// UnknownSystemError reports a lookup for a system the agency does not
// contain. NoNamedSystems distinguishes the case where the agency has
// no named systems at all, for a clearer diagnostic.
type UnknownSystemError struct {
	AgencyID       string
	SystemID       string
	NoNamedSystems bool
}

func (e *UnknownSystemError) Error() string {
	if e.NoNamedSystems {
		return fmt.Sprintf("unknown system %q: agency %q has no named systems", e.SystemID, e.AgencyID)
	}
	return fmt.Sprintf("unknown system %q for agency %q", e.SystemID, e.AgencyID)
}

// System groups the feeds of one agency sub-system. The unnamed system
// (records with no system_id) is held separately on Agency rather than
// under a sentinel map key.
type System struct {
	ID      string
	Name    string
	Feeds   map[feed.Type]feed.Record
	DateMin time.Time
	DateMax time.Time
}

func newSystem(id, name string) *System {
	return &System{ID: id, Name: name, Feeds: make(map[feed.Type]feed.Record)}
}

func (s *System) add(rec feed.Record) {
	s.Feeds[rec.Type] = rec
	if s.DateMin.IsZero() || rec.DateMin.Before(s.DateMin) {
		s.DateMin = rec.DateMin
	}
	if rec.DateMax.After(s.DateMax) {
		s.DateMax = rec.DateMax
	}
}

// recompute rebuilds the aggregate date bounds after last-write-wins
// replacements may have narrowed them.
func (s *System) recompute() {
	s.DateMin, s.DateMax = time.Time{}, time.Time{}
	for _, rec := range s.Feeds {
		if s.DateMin.IsZero() || rec.DateMin.Before(s.DateMin) {
			s.DateMin = rec.DateMin
		}
		if rec.DateMax.After(s.DateMax) {
			s.DateMax = rec.DateMax
		}
	}
}

// Agency holds one agency's systems. Unnamed is nil unless the agency
// has system-less feeds.
type Agency struct {
	ID      string
	Name    string
	Unnamed *System
	Named   map[string]*System
	DateMin time.Time
	DateMax time.Time
}

// systems returns the agency's systems with the unnamed one first and
// the named ones sorted by ID.
func (a *Agency) systems() []*System {
	out := make([]*System, 0, len(a.Named)+1)
	if a.Unnamed != nil {
		out = append(out, a.Unnamed)
	}
	ids := make([]string, 0, len(a.Named))
	for id := range a.Named {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		out = append(out, a.Named[id])
	}
	return out
}

// FeedCount is the number of feed records across all systems.
func (a *Agency) FeedCount() int {
	n := 0
	for _, sys := range a.systems() {
		n += len(sys.Feeds)
	}
	return n
}

// Index is the resolved two-level catalog grouping. Rebuilt from the
// flat record list on every resolution; never mutated afterwards.
type Index struct {
	agencies map[string]*Agency
}

// Build groups records by agency, then system, then feed type. Total:
// an empty input yields an empty index, and duplicate (agency, system,
// feed type) triples are last-write-wins in input order.
func Build(records []feed.Record) *Index {
	ix := &Index{agencies: make(map[string]*Agency)}
	for _, rec := range records {
		ag, ok := ix.agencies[rec.AgencyID]
		if !ok {
			ag = &Agency{ID: rec.AgencyID, Name: rec.AgencyName, Named: make(map[string]*System)}
			ix.agencies[rec.AgencyID] = ag
		}
		if ag.Name == "" {
			ag.Name = rec.AgencyName
		}

		var sys *System
		if rec.SystemID == "" {
			if ag.Unnamed == nil {
				ag.Unnamed = newSystem("", "")
			}
			sys = ag.Unnamed
		} else {
			sys, ok = ag.Named[rec.SystemID]
			if !ok {
				sys = newSystem(rec.SystemID, rec.SystemName)
				ag.Named[rec.SystemID] = sys
			}
		}
		sys.add(rec)
	}

	for _, ag := range ix.agencies {
		ag.DateMin, ag.DateMax = time.Time{}, time.Time{}
		for _, sys := range ag.systems() {
			sys.recompute()
			if ag.DateMin.IsZero() || sys.DateMin.Before(ag.DateMin) {
				ag.DateMin = sys.DateMin
			}
			if sys.DateMax.After(ag.DateMax) {
				ag.DateMax = sys.DateMax
			}
		}
	}
	return ix
}

// Scope is the set of feeds a request resolves to: a whole agency, or
// one of its systems. Feeds are ordered by feed type (canonical order)
// then system ID, with the unnamed system first.
type Scope struct {
	Agency  *Agency
	System  *System // nil when the scope is the whole agency
	Feeds   []feed.Record
	DateMin time.Time
	DateMax time.Time
}

// Resolve looks up an agency and, when systemID is non-empty, one of
// its named systems.
func (ix *Index) Resolve(agencyID, systemID string) (Scope, error) {
	ag, ok := ix.agencies[agencyID]
	if !ok {
		return Scope{}, &UnknownAgencyError{AgencyID: agencyID}
	}

	systems := ag.systems()
	scope := Scope{Agency: ag, DateMin: ag.DateMin, DateMax: ag.DateMax}
	if systemID != "" {
		sys, ok := ag.Named[systemID]
		if !ok {
			return Scope{}, &UnknownSystemError{
				AgencyID:       agencyID,
				SystemID:       systemID,
				NoNamedSystems: len(ag.Named) == 0,
			}
		}
		systems = []*System{sys}
		scope.System = sys
		scope.DateMin, scope.DateMax = sys.DateMin, sys.DateMax
	}

	for _, ft := range feed.Types() {
		for _, sys := range systems {
			if rec, ok := sys.Feeds[ft]; ok {
				scope.Feeds = append(scope.Feeds, rec)
			}
		}
	}
	return scope, nil
}

// SystemSummary describes one system in an agency listing.
type SystemSummary struct {
	ID        string
	Name      string
	Unnamed   bool
	FeedCount int
	DateMin   time.Time
	DateMax   time.Time
}

// AgencySummary describes one agency in a listing. Systems is empty
// when the agency's only system is the unnamed one.
type AgencySummary struct {
	ID        string
	Name      string
	FeedCount int
	DateMin   time.Time
	DateMax   time.Time
	Systems   []SystemSummary
}

// Agencies lists all agencies sorted by ID, each with its system
// breakdown (unnamed first, named sorted by ID).
func (ix *Index) Agencies() []AgencySummary {
	ids := make([]string, 0, len(ix.agencies))
	for id := range ix.agencies {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]AgencySummary, 0, len(ids))
	for _, id := range ids {
		ag := ix.agencies[id]
		sum := AgencySummary{
			ID:        ag.ID,
			Name:      ag.Name,
			FeedCount: ag.FeedCount(),
			DateMin:   ag.DateMin,
			DateMax:   ag.DateMax,
		}
		systems := ag.systems()
		if !(len(systems) == 1 && ag.Unnamed != nil) {
			for _, sys := range systems {
				sum.Systems = append(sum.Systems, SystemSummary{
					ID:        sys.ID,
					Name:      sys.Name,
					Unnamed:   sys.ID == "",
					FeedCount: len(sys.Feeds),
					DateMin:   sys.DateMin,
					DateMax:   sys.DateMax,
				})
			}
		}
		out = append(out, sum)
	}
	return out
}

// Empty reports whether the index contains no agencies.
func (ix *Index) Empty() bool {
	return len(ix.agencies) == 0
}
