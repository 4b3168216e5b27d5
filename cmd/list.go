package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/gtfsrt-io/rtfetch/internal/dates"
	"github.com/gtfsrt-io/rtfetch/internal/inventory"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the agencies and systems available in the feed catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		cfg := getConfig()

		loader := &inventory.Loader{
			Fs:       afero.NewOsFs(),
			Path:     cfg.CatalogPath,
			Fallback: cfg.FallbackRecords(),
			Logger:   logger,
		}
		ix := inventory.Build(loader.Load())
		if ix.Empty() {
			fmt.Println("No feeds in catalog.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "AGENCY\tNAME\tFEEDS\tDATES")
		for _, a := range ix.Agencies() {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s to %s\n",
				a.ID, a.Name, a.FeedCount,
				a.DateMin.Format(dates.Layout), a.DateMax.Format(dates.Layout))
			for _, sys := range a.Systems {
				fmt.Fprintf(w, "  %s\t%s\t%d\t%s to %s\n",
					sys.ID, sys.Name, sys.FeedCount,
					sys.DateMin.Format(dates.Layout), sys.DateMax.Format(dates.Layout))
			}
		}
		return w.Flush()
	},
}
