package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-leadgen/adapters/gocommand"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(a *app) *cobra.Command {
	var withWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and webhook receiver",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := a.config(ctx)
			if err != nil {
				return err
			}
			if err := cfg.ValidateCredentials(); err != nil {
				return err
			}
			proc, err := a.openProcess(ctx, cfg)
			if err != nil {
				return err
			}
			defer proc.close()

			bus := gocommand.NewBus(nil)
			defer bus.Close()
			if err := proc.runtime.UseDispatcher(bus); err != nil {
				return err
			}

			logger := proc.runtime.Logger()
			server := &http.Server{
				Addr:              cfg.HTTP.Addr,
				Handler:           proc.runtime.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			group, groupCtx := errgroup.WithContext(ctx)
			group.Go(func() error {
				logger.Info("http server listening", "addr", cfg.HTTP.Addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			group.Go(func() error {
				<-groupCtx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				logger.Info("http server shutting down")
				return server.Shutdown(shutdownCtx)
			})
			if withWorker {
				group.Go(func() error {
					return proc.runtime.NewConsumer(proc.queue).Run(groupCtx)
				})
			}
			return group.Wait()
		},
	}
	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "also consume the lead queue in this process")
	return cmd
}
