package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flagged-dev/flagged/internal/utils"
	"github.com/flagged-dev/flagged/pkg/storage"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Maintain the local account store",
}

// withStore opens the configured store for one command. When exclusive is
// set the sqlite lock is held for the duration of fn.
func withStore(cmd *cobra.Command, exclusive bool, fn func(ctx context.Context, s storage.Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, lock, err := openStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if exclusive && lock != nil {
		if err := lock.Lock(ctx); err != nil {
			return err
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				utils.Log.Warnf("Could not release %s: %v", lock.Path(), err)
			}
		}()
	}
	return fn(ctx, store)
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of stored accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, false, func(ctx context.Context, s storage.Store) error {
			n, err := s.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Println(n)
			return nil
		})
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored account and the rate-limit cooldown",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, true, func(ctx context.Context, s storage.Store) error {
			n, err := s.Count(ctx)
			if err != nil {
				return err
			}
			if err := s.Clear(ctx); err != nil {
				return err
			}
			utils.Log.Infof("Removed %d accounts", n)
			return nil
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every stored account as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		return withStore(cmd, false, func(ctx context.Context, s storage.Store) error {
			var w io.Writer = os.Stdout
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			n, err := storage.Export(ctx, s, w)
			if err != nil {
				return err
			}
			utils.Log.Infof("Exported %d accounts", n)
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Merge an export file into the store",
	Long: `Merges an export file into the store. New accounts are added; stored ones are
replaced only when the file has a newer lastChecked. Use - to read stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}
		return withStore(cmd, true, func(ctx context.Context, s storage.Store) error {
			res, err := storage.Import(ctx, s, r, time.Now())
			if err != nil {
				return err
			}
			utils.Log.Infof("Imported: %d added, %d updated, %d skipped", res.Added, res.Updated, res.Skipped)
			return nil
		})
	},
}

// shellCmd represents the shell command
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive shell to the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		var name string
		var argv []string
		var schema []string

		if viper.GetString("store.driver") == "redis" {
			name = "redis-cli"
			argv = []string{"-u", "redis://" + viper.GetString("store.redis_addr")}
		} else {
			path, err := dbPathFromConfig(cmd)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); os.IsNotExist(err) {
				return fmt.Errorf("database file not found: %s", path)
			}
			name = "sqlite3"
			argv = []string{path}
			schema = []string{path, ".schema"}
		}

		bin, err := exec.LookPath(name)
		if err != nil {
			return fmt.Errorf("%s command not found in your PATH. Please install it to use the db shell", name)
		}

		if schema != nil {
			fmt.Println("--> Database schema:")
			schemaCmd := exec.Command(bin, schema...)
			schemaCmd.Stdout = os.Stdout
			schemaCmd.Stderr = os.Stderr
			if err := schemaCmd.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: couldn't retrieve schema: %v\n", err)
			}
		}
		fmt.Println("\n--> Starting interactive shell... (Ctrl+D to exit)")

		c := exec.Command(bin, argv...)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr

		return c.Run()
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(countCmd)
	dbCmd.AddCommand(clearCmd)
	dbCmd.AddCommand(exportCmd)
	dbCmd.AddCommand(importCmd)
	dbCmd.AddCommand(shellCmd)
	dbCmd.PersistentFlags().String("dbpath", "", "Path to SQLite DB file (default: store.path from config)")
	exportCmd.Flags().StringP("output", "o", "", "Write to this file instead of stdout")
}
