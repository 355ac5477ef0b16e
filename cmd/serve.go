package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kfsoftware/agritrace/pkg/api"
	"github.com/kfsoftware/agritrace/pkg/broadcast"
	"github.com/kfsoftware/agritrace/pkg/lifecycle"
	"github.com/kfsoftware/agritrace/pkg/metrics"
	"github.com/kfsoftware/agritrace/pkg/monitor"
	"github.com/kfsoftware/agritrace/pkg/store"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

type serveOptions struct {
	address     string
	startHeight int64
}

func NewServeCmd() *cobra.Command {
	c := serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the batch API and follow the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			err = cfg.RequireLedger()
			if err != nil {
				return err
			}
			if c.address != "" {
				cfg.Server.Address = c.address
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			backend, err := openBackend(cfg.Storage)
			if err != nil {
				return err
			}
			client, err := dialLedger(ctx, cfg.Ledger)
			if err != nil {
				backend.Close()
				return err
			}
			defer client.Close()
			submitter, err := newSubmitter(client, cfg.Ledger)
			if err != nil {
				backend.Close()
				return err
			}
			sink, err := openSink(cfg.Monitor.Sink)
			if err != nil {
				backend.Close()
				return err
			}

			hub := broadcast.NewHub(cfg.Server.SubscriberBuffer)
			options := append(monitorOptions(cfg.Monitor, sink, c.startHeight), monitor.WithPublisher(hub))
			mon, err := monitor.New(client, client.Contract(), backend, options...)
			if err != nil {
				backend.Close()
				return err
			}
			ctrl := lifecycle.NewController(store.NewBatchStore(backend), submitter)
			server := api.NewServer(ctrl, mon, hub)

			var metricsServer *metrics.Server
			if cfg.Metrics.Address != "" {
				metricsServer = metrics.NewServer(cfg.Metrics.Address)
			}

			group, ctx := errgroup.WithContext(ctx)
			group.Go(func() error {
				return server.Start(cfg.Server.Address)
			})
			group.Go(func() error {
				return mon.Run(ctx)
			})
			if metricsServer != nil {
				group.Go(metricsServer.Start)
			}
			group.Go(func() error {
				<-ctx.Done()
				log.Infof("Shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				closers := []closer{func() error { return server.Shutdown(shutdownCtx) }}
				if metricsServer != nil {
					closers = append(closers, func() error { return metricsServer.Stop(shutdownCtx) })
				}
				return closeAll(closers...)
			})
			err = group.Wait()
			return closeAll(func() error { return err }, backend.Close)
		},
	}

	persistentFlags := cmd.PersistentFlags()
	persistentFlags.StringVarP(&c.address, "address", "", "", "Listen address, overrides server.address")
	persistentFlags.Int64VarP(&c.startHeight, "block-number", "", -1, "Skip monitoring ahead to this height when it is past the stored cursor")
	return cmd
}
