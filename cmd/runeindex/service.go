package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/synnergy-labs/runeindex/internal/logging"
	"github.com/synnergy-labs/runeindex/internal/utils"
)

// serviceCmd implements `runeindex service start`: the long-running
// observer + engine process (spec §5, §6.3).
func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "service", Short: "run the indexer as a long-running service"}

	var configPath string
	var metricsAddr string
	var startHeight uint64

	start := &cobra.Command{
		Use:   "start",
		Short: "start the observer and block driver",
		RunE: func(cmd *cobra.Command, args []string) error {
			if utils.EnvOrDefaultBool("MAINTENANCE_MODE", false) {
				log := logging.New(false, false)
				log.Warn("service: MAINTENANCE_MODE set, sleeping instead of indexing")
				select {}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			log := logging.New(a.cfg.Logs.RunesInternals, a.cfg.Logs.ChainhookInternals)

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
			srv := &http.Server{Addr: metricsAddr, Handler: mux}
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.WithError(err).Warn("service: metrics server stopped")
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			errCh := make(chan error, 2)
			go func() { errCh <- a.engine.Run(ctx) }()

			go func() {
				errCh <- runObserver(ctx, log, a.client, a.engine.Events(), startHeight)
			}()

			select {
			case <-ctx.Done():
				return nil
			case err := <-errCh:
				if err != nil && err != context.Canceled {
					return fmt.Errorf("service: %w", err)
				}
				return nil
			}
		},
	}
	start.Flags().StringVar(&configPath, "config-path", "Config.toml", "path to the TOML config file")
	start.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address to serve /metrics on")
	start.Flags().Uint64Var(&startHeight, "start-height", 0, "height to begin observing from")

	cmd.AddCommand(start)
	return cmd
}
