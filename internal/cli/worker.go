package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newWorkerCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume the lead queue and mark handed off leads processed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := a.config(ctx)
			if err != nil {
				return err
			}
			proc, err := a.openProcess(ctx, cfg)
			if err != nil {
				return err
			}
			defer proc.close()

			return proc.runtime.NewConsumer(proc.queue).Run(ctx)
		},
	}
}
