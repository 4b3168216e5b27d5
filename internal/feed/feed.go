// Package feed defines the GTFS-RT feed catalog types shared across the
// planner, inventory and download layers, plus the base64url identifier
// codec used for partition keys.
package feed

import (
	"fmt"
	"time"
)

// Type identifies one of the archived GTFS-RT feed kinds. The string
// value doubles as the top-level partition directory name.
type Type string

const (
	TypeVehiclePositions Type = "vehicle_positions"
	TypeTripUpdates      Type = "trip_updates"
	TypeServiceAlerts    Type = "service_alerts"
)

// Types returns all known feed types in their canonical order.
func Types() []Type {
	return []Type{TypeVehiclePositions, TypeTripUpdates, TypeServiceAlerts}
}

// ParseType validates a user-supplied feed type string.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeVehiclePositions, TypeTripUpdates, TypeServiceAlerts:
		return Type(s), nil
	}
	return "", fmt.Errorf("unknown feed type %q (expected one of vehicle_positions, trip_updates, service_alerts)", s)
}

// Record describes one archived feed: who owns it, what kind it is, its
// partition token, and how much data exists for it. One record exists
// per (agency, system, feed type) triple. An empty SystemID means the
// agency's single unnamed system.
type Record struct {
	AgencyID   string
	AgencyName string
	SystemID   string
	SystemName string
	Type       Type
	Token      string
	DateMin    time.Time
	DateMax    time.Time
	TotalBytes int64
}

// Valid reports whether the record satisfies the catalog invariants:
// a known feed type, a non-empty token, an ordered date range and a
// non-negative size.
func (r Record) Valid() error {
	if _, err := ParseType(string(r.Type)); err != nil {
		return err
	}
	if r.Token == "" {
		return fmt.Errorf("feed %s/%s: empty partition token", r.AgencyID, r.Type)
	}
	if r.DateMax.Before(r.DateMin) {
		return fmt.Errorf("feed %s/%s: date_min %s after date_max %s",
			r.AgencyID, r.Type, r.DateMin.Format("2006-01-02"), r.DateMax.Format("2006-01-02"))
	}
	if r.TotalBytes < 0 {
		return fmt.Errorf("feed %s/%s: negative total_bytes %d", r.AgencyID, r.Type, r.TotalBytes)
	}
	return nil
}
