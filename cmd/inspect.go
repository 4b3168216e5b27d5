package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gtfsrt-io/rtfetch/internal/inspector"
)

var inspectFooters bool

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Summarize the local parquet cache",
	Long: `Runs aggregate queries over the downloaded cache, grouped by feed type:
file count, distinct feeds, total rows and covered dates. With --footers each
file's row count is read straight from its parquet footer instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		cfg := getConfig()

		if inspectFooters {
			stats, err := inspector.FooterStats(cfg.OutputDir, logger)
			if len(stats) == 0 && err == nil {
				fmt.Println("No cached files found.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FILE\tROWS")
			for _, st := range stats {
				fmt.Fprintf(w, "%s\t%d\n", st.Path, st.NumRows)
			}
			if flushErr := w.Flush(); flushErr != nil {
				return flushErr
			}
			return err
		}

		summaries, err := inspector.Summarize(cmd.Context(), cfg.OutputDir, logger)
		if len(summaries) == 0 && err == nil {
			fmt.Println("No cached files found.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FEED TYPE\tFILES\tFEEDS\tROWS\tDATES")
		for _, s := range summaries {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s to %s\n",
				s.Type, s.FileCount, s.FeedCount, s.RowCount, s.MinDate, s.MaxDate)
		}
		if flushErr := w.Flush(); flushErr != nil {
			return flushErr
		}
		return err
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectFooters, "footers", false, "Read row counts from parquet footers instead of querying DuckDB")
}
