package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtfsrt-io/rtfetch/internal/dates"
	"github.com/gtfsrt-io/rtfetch/internal/feed"
)

func mustDay(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := dates.ParseDay(s)
	require.NoError(t, err)
	return d
}

func rec(t *testing.T, agency, system string, ft feed.Type, dateMin, dateMax string, size int64) feed.Record {
	t.Helper()
	return feed.Record{
		AgencyID:   agency,
		AgencyName: agency + " name",
		SystemID:   system,
		SystemName: system,
		Type:       ft,
		Token:      feed.EncodeURL("https://" + agency + ".example.com/" + system + "/" + string(ft)),
		DateMin:    mustDay(t, dateMin),
		DateMax:    mustDay(t, dateMax),
		TotalBytes: size,
	}
}

func TestBuildEmpty(t *testing.T) {
	ix := Build(nil)
	assert.True(t, ix.Empty())
	assert.Empty(t, ix.Agencies())

	_, err := ix.Resolve("anything", "")
	var unknown *UnknownAgencyError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "anything", unknown.AgencyID)
}

func TestBuildGroupsAndAggregates(t *testing.T) {
	records := []feed.Record{
		rec(t, "septa", "bus", feed.TypeVehiclePositions, "2026-01-01", "2026-01-31", 1000),
		rec(t, "septa", "bus", feed.TypeTripUpdates, "2026-01-05", "2026-02-10", 2000),
		rec(t, "septa", "rail", feed.TypeVehiclePositions, "2025-12-01", "2026-01-15", 3000),
		rec(t, "actransit", "", feed.TypeVehiclePositions, "2026-01-01", "2026-01-31", 3100),
	}
	ix := Build(records)

	scope, err := ix.Resolve("septa", "")
	require.NoError(t, err)
	assert.Len(t, scope.Feeds, 3)
	assert.Equal(t, mustDay(t, "2025-12-01"), scope.DateMin)
	assert.Equal(t, mustDay(t, "2026-02-10"), scope.DateMax)

	scope, err = ix.Resolve("septa", "bus")
	require.NoError(t, err)
	assert.Len(t, scope.Feeds, 2)
	assert.Equal(t, mustDay(t, "2026-01-01"), scope.DateMin)
	assert.Equal(t, mustDay(t, "2026-02-10"), scope.DateMax)
}

func TestResolveOrderingByTypeThenSystem(t *testing.T) {
	records := []feed.Record{
		rec(t, "septa", "rail", feed.TypeTripUpdates, "2026-01-01", "2026-01-31", 1),
		rec(t, "septa", "bus", feed.TypeTripUpdates, "2026-01-01", "2026-01-31", 1),
		rec(t, "septa", "rail", feed.TypeVehiclePositions, "2026-01-01", "2026-01-31", 1),
		rec(t, "septa", "", feed.TypeVehiclePositions, "2026-01-01", "2026-01-31", 1),
	}
	ix := Build(records)

	scope, err := ix.Resolve("septa", "")
	require.NoError(t, err)

	type key struct {
		ft  feed.Type
		sys string
	}
	var got []key
	for _, f := range scope.Feeds {
		got = append(got, key{f.Type, f.SystemID})
	}
	want := []key{
		{feed.TypeVehiclePositions, ""}, // unnamed system first
		{feed.TypeVehiclePositions, "rail"},
		{feed.TypeTripUpdates, "bus"},
		{feed.TypeTripUpdates, "rail"},
	}
	assert.Equal(t, want, got)
}

func TestBuildOrderIndependent(t *testing.T) {
	a := rec(t, "septa", "bus", feed.TypeVehiclePositions, "2026-01-01", "2026-01-31", 1000)
	b := rec(t, "septa", "rail", feed.TypeTripUpdates, "2026-01-05", "2026-02-10", 2000)
	c := rec(t, "actransit", "", feed.TypeServiceAlerts, "2026-01-01", "2026-01-31", 500)

	forward := Build([]feed.Record{a, b, c})
	backward := Build([]feed.Record{c, b, a})

	assert.Equal(t, forward.Agencies(), backward.Agencies())

	fwdScope, err := forward.Resolve("septa", "")
	require.NoError(t, err)
	bwdScope, err := backward.Resolve("septa", "")
	require.NoError(t, err)
	assert.Equal(t, fwdScope.Feeds, bwdScope.Feeds)
}

func TestBuildLastWriteWins(t *testing.T) {
	earlier := rec(t, "septa", "bus", feed.TypeVehiclePositions, "2026-01-01", "2026-01-31", 1000)
	later := rec(t, "septa", "bus", feed.TypeVehiclePositions, "2026-02-01", "2026-02-28", 9000)

	ix := Build([]feed.Record{earlier, later})
	scope, err := ix.Resolve("septa", "bus")
	require.NoError(t, err)
	require.Len(t, scope.Feeds, 1)
	assert.Equal(t, int64(9000), scope.Feeds[0].TotalBytes)
	// Aggregates reflect the surviving record, not the overwritten one.
	assert.Equal(t, mustDay(t, "2026-02-01"), scope.DateMin)
	assert.Equal(t, mustDay(t, "2026-02-28"), scope.DateMax)
}

func TestResolveUnknownSystem(t *testing.T) {
	ix := Build([]feed.Record{
		rec(t, "septa", "bus", feed.TypeVehiclePositions, "2026-01-01", "2026-01-31", 1000),
		rec(t, "actransit", "", feed.TypeVehiclePositions, "2026-01-01", "2026-01-31", 3100),
	})

	_, err := ix.Resolve("septa", "ferry")
	var unknownSys *UnknownSystemError
	require.ErrorAs(t, err, &unknownSys)
	assert.False(t, unknownSys.NoNamedSystems)

	_, err = ix.Resolve("actransit", "bus")
	require.ErrorAs(t, err, &unknownSys)
	assert.True(t, unknownSys.NoNamedSystems)
}

func TestAgenciesListing(t *testing.T) {
	ix := Build([]feed.Record{
		rec(t, "septa", "rail", feed.TypeVehiclePositions, "2026-01-01", "2026-01-31", 1),
		rec(t, "septa", "bus", feed.TypeVehiclePositions, "2026-01-01", "2026-01-31", 1),
		rec(t, "septa", "", feed.TypeServiceAlerts, "2026-01-01", "2026-01-31", 1),
		rec(t, "actransit", "", feed.TypeVehiclePositions, "2026-01-01", "2026-01-31", 1),
	})

	agencies := ix.Agencies()
	require.Len(t, agencies, 2)
	assert.Equal(t, "actransit", agencies[0].ID)
	assert.Equal(t, "septa", agencies[1].ID)

	// Single unnamed system: breakdown suppressed.
	assert.Empty(t, agencies[0].Systems)
	assert.Equal(t, 1, agencies[0].FeedCount)

	// Mixed systems: unnamed first, then named sorted by ID.
	septa := agencies[1]
	require.Len(t, septa.Systems, 3)
	assert.True(t, septa.Systems[0].Unnamed)
	assert.Equal(t, "bus", septa.Systems[1].ID)
	assert.Equal(t, "rail", septa.Systems[2].ID)
	assert.Equal(t, 3, septa.FeedCount)
}
