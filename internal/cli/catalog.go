package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/star/satexplorer/internal/catalog"
	"github.com/star/satexplorer/internal/config"
	"github.com/star/satexplorer/internal/filter"
)

var (
	catalogQuery      string
	catalogCategories []string
	catalogOrbits     []string
	catalogJSON       bool
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Fetch the catalog once and print facet counts",
	Long: `Fetch the catalog once through the cache (with retries) and print the
number of objects per object type and orbit code. Filter flags narrow the
match count the same way the explorer does.

Examples:
  satexplorer catalog
  satexplorer catalog --q iss
  satexplorer catalog --category DEBRIS --orbit LEO --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := stderrLogger()
		if err != nil {
			return err
		}
		cfg, err := config.Load(configPath, nil, logger)
		if err != nil {
			return err
		}
		cache, err := newCatalogCache(cfg, logger)
		if err != nil {
			return err
		}

		snap, err := cache.Snapshot(cmd.Context())
		if err != nil {
			return fmt.Errorf("fetching catalog: %w", err)
		}

		c := filter.ParseCriteria(url.Values{
			"q":        {catalogQuery},
			"category": catalogCategories,
			"orbit":    catalogOrbits,
		})
		summary := summarize(snap, c, time.Now())
		if catalogJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		}
		return printSummary(cmd.OutOrStdout(), summary)
	},
}

func init() {
	catalogCmd.Flags().StringVar(&catalogQuery, "q", "", "Search text (name or NORAD id)")
	catalogCmd.Flags().StringSliceVar(&catalogCategories, "category", nil, "Object types to include")
	catalogCmd.Flags().StringSliceVar(&catalogOrbits, "orbit", nil, "Orbit codes to include")
	catalogCmd.Flags().BoolVar(&catalogJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(catalogCmd)
}

type catalogSummary struct {
	Source    string        `json:"source"`
	FetchedAt time.Time     `json:"fetched_at"`
	Fetched   string        `json:"fetched"`
	Matches   int           `json:"matches"`
	Counts    filter.Counts `json:"counts"`
}

func summarize(snap *catalog.Snapshot, c filter.Criteria, now time.Time) catalogSummary {
	return catalogSummary{
		Source:    snap.Source,
		FetchedAt: snap.FetchedAt,
		Fetched:   humanize.RelTime(snap.FetchedAt, now, "ago", "from now"),
		Matches:   len(filter.Apply(snap.Entries, c)),
		Counts:    filter.CountFacets(snap.Entries),
	}
}

func printSummary(w io.Writer, s catalogSummary) error {
	fmt.Fprintf(w, "source:  %s\n", s.Source)
	fmt.Fprintf(w, "fetched: %s\n", s.Fetched)
	fmt.Fprintf(w, "objects: %s (matching: %s)\n\n", humanize.Comma(int64(s.Counts.All)), humanize.Comma(int64(s.Matches)))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tCOUNT")
	for _, f := range s.Counts.Categories {
		fmt.Fprintf(tw, "%s\t%s\n", f.Value, humanize.Comma(int64(f.Count)))
	}
	fmt.Fprintln(tw, "\t")
	fmt.Fprintln(tw, "ORBIT\tCOUNT")
	for _, f := range s.Counts.OrbitCodes {
		if f.Count == 0 {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\n", f.Value, humanize.Comma(int64(f.Count)))
	}
	return tw.Flush()
}
