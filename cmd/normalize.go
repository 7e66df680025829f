package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/flagged-dev/flagged/pkg/country"
	"github.com/flagged-dev/flagged/pkg/filter"
	"github.com/flagged-dev/flagged/pkg/flagged"
)

// normalizeCmd implements: flagged normalize [location...]
var normalizeCmd = &cobra.Command{
	Use:   "normalize [location...]",
	Short: "Show how locations are normalized and matched against your list",
	Long: `Prints the region code, continent symbol and flag for each location, and
whether it would be hidden under the configured list and filter mode.
Locations are read from stdin, one per line, when none are given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		locations := args
		if len(locations) == 0 {
			var err error
			if locations, err = readLines(os.Stdin); err != nil {
				return err
			}
		}

		settings, err := loadSettings()
		if err != nil {
			return err
		}
		if mode, _ := cmd.Flags().GetString("mode"); mode != "" {
			settings.FilterMode = filter.ParseMode(mode)
		}
		policy := filter.Compile(flagged.Clean(settings))

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "INPUT\tCODE\tCONTINENT\tFLAG\tMATCH\tHIDE\t")
		for _, raw := range locations {
			loc := country.Normalize(raw)
			d := policy.Decide(raw)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%t\t\n", raw, dash(loc.Code), dash(loc.Continent), loc.Flag, d.MatchesList, d.ShouldHide)
		}
		return w.Flush()
	},
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	rootCmd.AddCommand(normalizeCmd)
	normalizeCmd.Flags().String("mode", "", "Override settings.filter_mode (blocklist, allowlist, flag_only)")
}
