package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/gtfsrt-io/rtfetch/internal/discover"
)

var discoverOut string

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Crawl the parquet mirror for available feeds and write a seed CSV",
	Long: `Lists one date partition per feed type on the remote mirror and collects
the distinct feed tokens found there. The result is a seed CSV
(feed_type, feed_url, base64url), a starting point for the feed catalog.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		cfg := getConfig()

		crawler := discover.New(cfg.BaseURL, logger)
		feeds, err := crawler.Feeds(cmd.Context())
		if err != nil {
			return fmt.Errorf("discovery failed: %w", err)
		}
		if len(feeds) == 0 {
			fmt.Println("No feeds found on the mirror.")
			return nil
		}

		for _, f := range feeds {
			fmt.Printf("  %s  %s\n", f.Type, f.URL)
		}

		if err := discover.WriteSeedCSV(afero.NewOsFs(), discoverOut, feeds); err != nil {
			return fmt.Errorf("writing seed file: %w", err)
		}
		fmt.Printf("\nWrote %d feed(s) to %s\n", len(feeds), discoverOut)
		return nil
	},
}

func init() {
	discoverCmd.Flags().StringVar(&discoverOut, "out", "seeds/discovered_feeds.csv", "Output path for the seed CSV")
}
