package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flagged-dev/flagged/internal/utils"
	"github.com/flagged-dev/flagged/pkg/filter"
	"github.com/flagged-dev/flagged/pkg/flagged"
)

// resolveCmd implements: flagged resolve [handle...]
// Handles are read from stdin, one per line, when none are given.
var resolveCmd = &cobra.Command{
	Use:   "resolve [handle...]",
	Short: "Look up accounts and print whether they would be hidden",
	RunE: func(cmd *cobra.Command, args []string) error {
		handles := args
		if len(handles) == 0 {
			var err error
			if handles, err = readLines(os.Stdin); err != nil {
				return err
			}
		}
		handles = filter.ParseHandles(handles)
		if len(handles) == 0 {
			return fmt.Errorf("no handles given. See 'flagged resolve --help'")
		}

		timeout, _ := cmd.Flags().GetDuration("timeout")
		refetch, _ := cmd.Flags().GetBool("refetch-unknown")
		asJSON, _ := cmd.Flags().GetBool("json")

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		svc, _, err := newService(ctx, cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		done := make(chan struct{})
		go func() {
			svc.Run(ctx)
			close(done)
		}()
		defer func() {
			cancel()
			<-done
		}()

		// Load what the store already knows and queue the rest.
		for _, h := range handles {
			svc.Check(ctx, h)
		}
		if refetch {
			queued := svc.Refetch(viper.GetDuration("queue.stale_after"))
			utils.Log.Infof("Re-queued %d unknown accounts", len(queued))
		}

		waitCtx, waitCancel := context.WithTimeout(ctx, timeout)
		defer waitCancel()
		verdicts := make([]filter.Verdict, 0, len(handles))
		var unresolved int
		for _, h := range handles {
			v, err := svc.Await(waitCtx, h)
			if errors.Is(err, flagged.ErrNotResolved) {
				unresolved++
			}
			verdicts = append(verdicts, v)
		}
		if unresolved > 0 {
			st := svc.Status()
			utils.Log.Warnf("%d accounts unresolved (queue %s, %d pending)", unresolved, st.Status, st.Pending)
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			for _, v := range verdicts {
				if err := enc.Encode(v); err != nil {
					return err
				}
			}
			return nil
		}
		printVerdicts(os.Stdout, verdicts)
		return nil
	},
}

func printVerdicts(out io.Writer, verdicts []filter.Verdict) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "HANDLE\tFLAG\tLOCATION\tACTION\t")
	for _, v := range verdicts {
		location := v.Country
		switch {
		case !v.Known:
			location = "(pending)"
		case location == "":
			location = "(none)"
		}
		flag := v.Flag
		if !v.ShowFlag {
			flag = "-"
		}
		action := "show"
		if v.Hide {
			action = v.HideMode + ": " + v.Label
		}
		fmt.Fprintf(w, "@%s\t%s\t%s\t%s\t\n", v.Handle, flag, location, action)
	}
	w.Flush()
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().Duration("timeout", 30*time.Second, "Give up waiting for lookups after this long")
	resolveCmd.Flags().Bool("refetch-unknown", false, "Look up again accounts stored without a location (older than queue.stale_after)")
	resolveCmd.Flags().Bool("json", false, "Print one JSON verdict per line")
	resolveCmd.Flags().String("dbpath", "", "Path to SQLite DB file (default: store.path from config)")
}
