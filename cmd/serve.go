package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flagged-dev/flagged/internal/server"
	"github.com/flagged-dev/flagged/internal/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bridge server used by renderers",
	Long: `Starts an HTTP server exposing the account cache, verdicts, settings and
store maintenance as JSON, plus Prometheus metrics on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, lock, err := newService(ctx, cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		user, _ := cmd.Flags().GetString("username")
		pass, _ := cmd.Flags().GetString("password")
		addr, _ := cmd.Flags().GetString("bind")

		srv := server.New(svc, user, pass)
		if lock != nil {
			srv.Lock = lock
		}

		done := make(chan struct{})
		go func() {
			svc.Run(ctx)
			close(done)
		}()
		defer func() { <-done }()

		utils.Log.Infof("Queue status: %s", svc.Status().Status)
		err = srv.Start(ctx, addr)
		stop()
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("bind", "b", "127.0.0.1:9999", "Address to bind the server to")
	serveCmd.Flags().StringP("username", "u", "", "Username for basic auth (optional)")
	serveCmd.Flags().StringP("password", "p", "", "Password for basic auth (optional)")
	serveCmd.Flags().String("dbpath", "", "Path to SQLite DB file (default: store.path from config)")
}
