// Package inspector summarizes the local parquet cache: per feed type
// via DuckDB over the hive-partitioned layout, and per file via the
// parquet footers.
package inspector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/gtfsrt-io/rtfetch/internal/feed"
	"github.com/gtfsrt-io/rtfetch/internal/planner"
)

// TypeSummary aggregates one feed type's cache contents.
type TypeSummary struct {
	Type      feed.Type
	FileCount int
	FeedCount int64
	RowCount  int64
	MinDate   string
	MaxDate   string
}

// globPattern matches every cache entry of one feed type.
func globPattern(root string, ft feed.Type) string {
	return filepath.Join(root, string(ft), "date=*", "base64url=*", planner.DataFileName)
}

// Summarize runs DuckDB aggregate queries over each feed type's cache
// partitions. Feed types with no cached files are skipped.
func Summarize(ctx context.Context, root string, logger *slog.Logger) ([]TypeSummary, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("get duckdb connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `INSTALL parquet; LOAD parquet;`); err != nil {
		logger.Warn("Failed install/load parquet extension.", "error", err)
	}

	var summaries []TypeSummary
	var queryErrs error
	for _, ft := range feed.Types() {
		pattern := globPattern(root, ft)
		files, err := filepath.Glob(pattern)
		if err != nil {
			queryErrs = errors.Join(queryErrs, fmt.Errorf("glob %s: %w", pattern, err))
			continue
		}
		if len(files) == 0 {
			logger.Debug("No cached files for feed type.", slog.String("feed_type", string(ft)))
			continue
		}

		query := `
			SELECT count(*), count(DISTINCT base64url), min(date), max(date)
			FROM read_parquet(?, hive_partitioning=1)`
		var rows, feeds int64
		var minDate, maxDate sql.NullString
		if err := conn.QueryRowContext(ctx, query, pattern).Scan(&rows, &feeds, &minDate, &maxDate); err != nil {
			queryErrs = errors.Join(queryErrs, fmt.Errorf("summarize %s: %w", ft, err))
			logger.Warn("Summary query failed.", slog.String("feed_type", string(ft)), "error", err)
			continue
		}
		summaries = append(summaries, TypeSummary{
			Type:      ft,
			FileCount: len(files),
			FeedCount: feeds,
			RowCount:  rows,
			MinDate:   minDate.String,
			MaxDate:   maxDate.String,
		})
	}
	return summaries, queryErrs
}

// FileStat is one cache entry's footer metadata.
type FileStat struct {
	Path    string
	NumRows int64
}

// FooterStats reads row counts straight from each cached file's
// parquet footer, without SQL. Unreadable files are reported and
// skipped.
func FooterStats(root string, logger *slog.Logger) ([]FileStat, error) {
	var stats []FileStat
	var readErrs error
	for _, ft := range feed.Types() {
		files, err := filepath.Glob(globPattern(root, ft))
		if err != nil {
			readErrs = errors.Join(readErrs, err)
			continue
		}
		for _, path := range files {
			numRows, err := footerRowCount(path)
			if err != nil {
				readErrs = errors.Join(readErrs, fmt.Errorf("read footer %s: %w", path, err))
				logger.Warn("Unreadable parquet footer.", slog.String("file", path), "error", err)
				continue
			}
			stats = append(stats, FileStat{Path: path, NumRows: numRows})
		}
	}
	return stats, readErrs
}

func footerRowCount(path string) (int64, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return 0, err
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, nil, 1)
	if err != nil {
		return 0, err
	}
	defer pr.ReadStop()

	return pr.GetNumRows(), nil
}
