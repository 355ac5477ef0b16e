package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kfsoftware/agritrace/pkg/metrics"
	"github.com/kfsoftware/agritrace/pkg/monitor"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type monitorOptionsFlags struct {
	startHeight int64
	catchUp     bool
}

// NewMonitorCmd follows the ledger without serving the batch API, exporting
// relevant blocks to the configured sink.
func NewMonitorCmd() *cobra.Command {
	c := monitorOptionsFlags{}
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Follow the ledger and export contract blocks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("catch-up") {
				cfg.Monitor.CatchUp = c.catchUp
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			backend, err := openBackend(cfg.Storage)
			if err != nil {
				return err
			}
			defer backend.Close()
			client, err := dialLedger(ctx, cfg.Ledger)
			if err != nil {
				return err
			}
			defer client.Close()
			sink, err := openSink(cfg.Monitor.Sink)
			if err != nil {
				return err
			}
			if sink == nil {
				log.Warnf("No monitor sink configured, blocks are only cached locally")
			}
			mon, err := monitor.New(client, client.Contract(), backend, monitorOptions(cfg.Monitor, sink, c.startHeight)...)
			if err != nil {
				return err
			}

			group, ctx := errgroup.WithContext(ctx)
			group.Go(func() error {
				return mon.Run(ctx)
			})
			if cfg.Metrics.Address != "" {
				metricsServer := metrics.NewServer(cfg.Metrics.Address)
				group.Go(metricsServer.Start)
				group.Go(func() error {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
					defer cancel()
					return metricsServer.Stop(shutdownCtx)
				})
			}
			return group.Wait()
		},
	}

	persistentFlags := cmd.PersistentFlags()
	persistentFlags.Int64VarP(&c.startHeight, "block-number", "", -1, "Skip ahead to this height when it is past the stored cursor")
	persistentFlags.BoolVarP(&c.catchUp, "catch-up", "", false, "Process every height between the cursor and the tip")
	return cmd
}
