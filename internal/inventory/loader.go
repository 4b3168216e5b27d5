package inventory

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/gtfsrt-io/rtfetch/internal/dates"
	"github.com/gtfsrt-io/rtfetch/internal/feed"
)

// Loader reads the feed catalog CSV. A missing or unreadable catalog
// degrades to the injected fallback records so resolution never
// crashes; with an empty fallback every agency lookup reports
// UnknownAgency.
type Loader struct {
	Fs       afero.Fs
	Path     string
	Fallback []feed.Record
	Logger   *slog.Logger
}

// Load returns the catalog records. It never fails: provider problems
// are logged and replaced by the fallback, and individually malformed
// rows are skipped.
func (l *Loader) Load() []feed.Record {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	f, err := l.Fs.Open(l.Path)
	if err != nil {
		logger.Warn("Catalog unavailable, using fallback feeds.",
			slog.String("path", l.Path), slog.Int("fallback_feeds", len(l.Fallback)), "error", err)
		return l.Fallback
	}
	defer f.Close()

	records, err := parseCatalog(f, logger)
	if err != nil {
		logger.Warn("Catalog unreadable, using fallback feeds.",
			slog.String("path", l.Path), "error", err)
		return l.Fallback
	}
	logger.Debug("Catalog loaded.", slog.String("path", l.Path), slog.Int("feeds", len(records)))
	return records
}

// Catalog columns, matched by header name so column order is free.
const (
	colAgencyID   = "agency_id"
	colAgencyName = "agency_name"
	colSystemID   = "system_id"
	colSystemName = "system_name"
	colFeedType   = "feed_type"
	colToken      = "base64url"
	colDateMin    = "date_min"
	colDateMax    = "date_max"
	colTotalBytes = "total_bytes"
)

func parseCatalog(r io.Reader, logger *slog.Logger) ([]feed.Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read catalog header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{colAgencyID, colFeedType, colToken, colDateMin, colDateMax, colTotalBytes} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("catalog missing column %q", required)
		}
	}
	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []feed.Record
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			logger.Warn("Skipping malformed catalog row.", slog.Int("line", line), "error", err)
			continue
		}

		rec, err := rowToRecord(row, field)
		if err != nil {
			logger.Warn("Skipping invalid catalog row.", slog.Int("line", line), "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func rowToRecord(row []string, field func([]string, string) string) (feed.Record, error) {
	ft, err := feed.ParseType(field(row, colFeedType))
	if err != nil {
		return feed.Record{}, err
	}
	dateMin, err := dates.ParseDay(field(row, colDateMin))
	if err != nil {
		return feed.Record{}, err
	}
	dateMax, err := dates.ParseDay(field(row, colDateMax))
	if err != nil {
		return feed.Record{}, err
	}
	totalBytes, err := strconv.ParseInt(field(row, colTotalBytes), 10, 64)
	if err != nil {
		return feed.Record{}, fmt.Errorf("parse total_bytes: %w", err)
	}

	rec := feed.Record{
		AgencyID:   field(row, colAgencyID),
		AgencyName: field(row, colAgencyName),
		SystemID:   field(row, colSystemID),
		SystemName: field(row, colSystemName),
		Type:       ft,
		Token:      field(row, colToken),
		DateMin:    dateMin,
		DateMax:    dateMax,
		TotalBytes: totalBytes,
	}
	if rec.AgencyID == "" {
		return feed.Record{}, fmt.Errorf("empty agency_id")
	}
	if err := rec.Valid(); err != nil {
		return feed.Record{}, err
	}
	return rec, nil
}
