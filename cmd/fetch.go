package cmd

import (
	"context"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/gtfsrt-io/rtfetch/internal/dates"
	"github.com/gtfsrt-io/rtfetch/internal/feed"
	"github.com/gtfsrt-io/rtfetch/internal/fetcher"
	"github.com/gtfsrt-io/rtfetch/internal/inventory"
	"github.com/gtfsrt-io/rtfetch/internal/orchestrator"
	"github.com/gtfsrt-io/rtfetch/internal/planner"
	"github.com/gtfsrt-io/rtfetch/internal/transport"
	"github.com/gtfsrt-io/rtfetch/internal/tui"
)

// Flags for the fetch command
var (
	fetchAgency   string
	fetchSystem   string
	fetchDate     string
	fetchStart    string
	fetchEnd      string
	fetchAllDates bool
	fetchDefaults bool
	fetchFeedType string
	fetchFeedB64  string
	fetchFeedURL  string
	fetchDryRun   bool
	fetchTUI      bool
)

// fetchCmd represents the download command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download parquet files for an agency, a system, or an explicit feed",
	Long: `Resolves a download request into one target per feed and day, then fetches
each target sequentially. Files already present in the cache are skipped, and a
failed file is recorded and cleaned up without stopping the rest of the batch.
Re-running the same fetch resumes at the first unfinished target.

Three request forms:
  rtfetch fetch --defaults [--date 2026-01-20]
  rtfetch fetch --agency actransit [--system bus] (--date D | --start-date D --end-date D | --all-dates)
  rtfetch fetch --feed-type vehicle_positions (--feed-base64 TOKEN | --feed-url URL) (--date D | --start-date D --end-date D)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		cfg := getConfig()

		plan, err := buildPlan(cfg.OutputDir, logger)
		if err != nil {
			return err
		}

		if plan.OutsideAvailable {
			logger.Warn("Requested dates extend beyond the catalog's coverage; missing days will simply be absent upstream.",
				slog.String("range", plan.Range.String()))
		}

		fmt.Printf("Planned %d file(s) over %s", len(plan.Targets), plan.Range)
		if plan.EstimatedBytes > 0 {
			fmt.Printf(", estimated %s", humanBytes(plan.EstimatedBytes))
		}
		fmt.Println()

		if fetchDryRun {
			printPlan(plan)
			return nil
		}

		exec := fetcher.New(afero.NewOsFs(), transport.New(), cfg.BaseURL, logger)

		var summary *orchestrator.Summary
		var runErr error
		if fetchTUI {
			summary, runErr = runWithTUI(cmd.Context(), exec, logger, plan.Targets)
		} else {
			summary, runErr = orchestrator.New(exec, logger, nil).Run(cmd.Context(), plan.Targets)
		}
		if runErr != nil {
			return fmt.Errorf("fetch aborted: %w", runErr)
		}

		printSummary(summary)
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchAgency, "agency", "", "Agency ID from the catalog")
	fetchCmd.Flags().StringVar(&fetchSystem, "system", "", "System ID within the agency")
	fetchCmd.Flags().StringVar(&fetchDate, "date", "", "Single date (YYYY-MM-DD)")
	fetchCmd.Flags().StringVar(&fetchStart, "start-date", "", "Start date (YYYY-MM-DD)")
	fetchCmd.Flags().StringVar(&fetchEnd, "end-date", "", "End date (YYYY-MM-DD)")
	fetchCmd.Flags().BoolVar(&fetchAllDates, "all-dates", false, "Use the full available date range from the catalog")
	fetchCmd.Flags().BoolVar(&fetchDefaults, "defaults", false, "Download the built-in sample feeds (AC Transit, all feed types)")
	fetchCmd.Flags().StringVar(&fetchFeedType, "feed-type", "", "Feed type for an explicit feed (vehicle_positions, trip_updates, service_alerts)")
	fetchCmd.Flags().StringVar(&fetchFeedB64, "feed-base64", "", "Base64url-encoded feed URL")
	fetchCmd.Flags().StringVar(&fetchFeedURL, "feed-url", "", "Plain feed URL (will be base64url-encoded)")
	fetchCmd.Flags().BoolVar(&fetchDryRun, "dry-run", false, "Print the plan without downloading")
	fetchCmd.Flags().BoolVar(&fetchTUI, "tui", false, "Show interactive progress UI")

	fetchCmd.MarkFlagsMutuallyExclusive("defaults", "agency", "feed-type")
	fetchCmd.MarkFlagsMutuallyExclusive("feed-base64", "feed-url")
	fetchCmd.MarkFlagsMutuallyExclusive("date", "start-date")
	fetchCmd.MarkFlagsMutuallyExclusive("date", "all-dates")
	fetchCmd.MarkFlagsMutuallyExclusive("all-dates", "start-date")
}

// buildPlan turns the flag set into a concrete plan, in one of the
// three request forms.
func buildPlan(destRoot string, logger *slog.Logger) (planner.Plan, error) {
	cfg := getConfig()

	switch {
	case fetchDefaults:
		return planDefaults(destRoot)

	case fetchFeedType != "":
		return planExplicitFeed(destRoot)

	case fetchAgency != "":
		loader := &inventory.Loader{
			Fs:       afero.NewOsFs(),
			Path:     cfg.CatalogPath,
			Fallback: cfg.FallbackRecords(),
			Logger:   logger,
		}
		ix := inventory.Build(loader.Load())

		var r dates.Range
		var err error
		if fetchAllDates {
			r, err = planner.AllDatesRange(ix, fetchAgency, fetchSystem)
		} else {
			r, err = requestedRange(cfg.DefaultDate, false)
		}
		if err != nil {
			return planner.Plan{}, err
		}
		return planner.PlanForAgency(ix, fetchAgency, fetchSystem, r, destRoot)

	default:
		return planner.Plan{}, fmt.Errorf("one of --defaults, --agency or --feed-type is required")
	}
}

func planDefaults(destRoot string) (planner.Plan, error) {
	cfg := getConfig()
	records := cfg.FallbackRecords()
	if len(records) == 0 {
		return planner.Plan{}, fmt.Errorf("no default feeds configured")
	}

	r, err := requestedRange(cfg.DefaultDate, true)
	if err != nil {
		return planner.Plan{}, err
	}

	plan := planner.Plan{Range: r}
	for _, rec := range records {
		fp := planner.FeedPlan{
			Record:         rec,
			EstimatedBytes: planner.EstimateBytes(rec, r),
		}
		fp.Targets = planner.PlanExplicit(rec.Type, rec.Token, r, destRoot).Targets
		plan.Feeds = append(plan.Feeds, fp)
		plan.Targets = append(plan.Targets, fp.Targets...)
		plan.EstimatedBytes += fp.EstimatedBytes
	}
	return plan, nil
}

func planExplicitFeed(destRoot string) (planner.Plan, error) {
	ft, err := feed.ParseType(fetchFeedType)
	if err != nil {
		return planner.Plan{}, err
	}

	var token string
	switch {
	case fetchFeedURL != "":
		token = feed.EncodeURL(fetchFeedURL)
		fmt.Printf("Encoded feed URL: %s\n", token)
	case fetchFeedB64 != "":
		// Reject malformed tokens before any network activity.
		if _, err := feed.DecodeToken(fetchFeedB64); err != nil {
			return planner.Plan{}, err
		}
		token = fetchFeedB64
	default:
		return planner.Plan{}, fmt.Errorf("--feed-base64 or --feed-url is required with --feed-type")
	}

	r, err := requestedRange("", false)
	if err != nil {
		return planner.Plan{}, err
	}
	return planner.PlanExplicit(ft, token, r, destRoot), nil
}

// requestedRange builds the date window from --date or
// --start-date/--end-date. In defaults mode a missing --date falls back
// to the configured sample date.
func requestedRange(defaultDate string, useDefault bool) (dates.Range, error) {
	switch {
	case fetchDate != "":
		d, err := dates.ParseDay(fetchDate)
		if err != nil {
			return dates.Range{}, err
		}
		return dates.SingleDay(d), nil
	case fetchStart != "" || fetchEnd != "":
		if fetchStart == "" || fetchEnd == "" {
			return dates.Range{}, fmt.Errorf("--start-date and --end-date must be given together")
		}
		return parseRange(fetchStart, fetchEnd)
	case useDefault:
		d, err := dates.ParseDay(defaultDate)
		if err != nil {
			return dates.Range{}, err
		}
		return dates.SingleDay(d), nil
	}
	return dates.Range{}, fmt.Errorf("a date is required: --date, --start-date/--end-date or --all-dates")
}

func parseRange(start, end string) (dates.Range, error) {
	s, err := dates.ParseDay(start)
	if err != nil {
		return dates.Range{}, err
	}
	e, err := dates.ParseDay(end)
	if err != nil {
		return dates.Range{}, err
	}
	return dates.NewRange(s, e)
}

func runWithTUI(ctx context.Context, exec orchestrator.Executor, logger *slog.Logger, targets []planner.Target) (*orchestrator.Summary, error) {
	program := tea.NewProgram(tui.NewModel(len(targets)))
	return runProgram(ctx, program, exec, logger, targets)
}

// runProgram drives the download pass alongside a running tea program.
// Quitting the UI early (ctrl+c) cancels the pass; the download
// goroutine is always waited for before its results are read.
func runProgram(ctx context.Context, program *tea.Program, exec orchestrator.Executor, logger *slog.Logger, targets []planner.Target) (*orchestrator.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	relay := tui.NewRelay(program)

	var summary *orchestrator.Summary
	var runErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		summary, runErr = orchestrator.New(exec, logger, relay).Run(ctx, targets)
		relay.Finished(summary, runErr)
	}()

	_, uiErr := program.Run()
	cancel()
	<-done

	if uiErr != nil {
		return summary, fmt.Errorf("progress UI failed: %w", uiErr)
	}
	return summary, runErr
}

func printPlan(plan planner.Plan) {
	for _, fp := range plan.Feeds {
		fmt.Printf("  %s", fp.Record.Type)
		if fp.Record.SystemID != "" {
			fmt.Printf(" (%s)", fp.Record.SystemID)
		}
		fmt.Printf(": %d day(s), estimated %s\n", len(fp.Targets), humanBytes(fp.EstimatedBytes))
	}
	if len(plan.Feeds) == 0 {
		for _, target := range plan.Targets {
			fmt.Printf("  %s %s\n", target.FeedKey(), target.Day.Format(dates.Layout))
		}
	}
}

func printSummary(summary *orchestrator.Summary) {
	if summary == nil {
		return
	}
	fmt.Println()
	fmt.Println("Summary:")
	for _, key := range summary.FeedOrder {
		c := summary.Counts[key]
		status := "✓"
		if c.Downloaded == 0 && c.Skipped == 0 {
			status = "✗"
		}
		fmt.Printf("  %s %s: %d downloaded, %d skipped", status, key, c.Downloaded, c.Skipped)
		if c.Failed > 0 {
			fmt.Printf(", %d failed", c.Failed)
		}
		fmt.Println()
	}
	fmt.Printf("\nTotal: %d downloaded, %d skipped (%s)\n",
		summary.TotalDownloaded(), summary.TotalSkipped(), humanBytes(summary.BytesDownloaded))
	for _, failure := range summary.Failures {
		fmt.Printf("  failed %s %s: %v\n",
			failure.Target.FeedKey(), failure.Target.Day.Format(dates.Layout), failure.Err)
	}
	if summary.TotalDownloaded() > 0 {
		fmt.Printf("\nData saved to: %s/\n", getConfig().OutputDir)
	}
}
