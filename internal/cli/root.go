// Package cli implements the leadgen command line: the HTTP server, the
// queue worker and the migration runner.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	leadgen "github.com/goliatone/go-leadgen"
	"github.com/goliatone/go-leadgen/adapters/gologger"
)

// app carries state shared by every subcommand.
type app struct {
	viper      *viper.Viper
	configFile string
	logLevel   string
	logFormat  string
	logOutput  io.Writer
}

func (a *app) config(ctx context.Context) (leadgen.Config, error) {
	return loadConfig(ctx, a.viper, a.configFile)
}

func (a *app) logger() (*gologger.Logger, *gologger.Provider) {
	root := gologger.New(gologger.Options{
		Level:  a.logLevel,
		Format: a.logFormat,
		Output: a.logOutput,
	})
	return root, gologger.NewProvider(root)
}

// NewRootCommand builds the leadgen command tree.
func NewRootCommand() *cobra.Command {
	a := &app{
		viper:     newViper(),
		logOutput: os.Stderr,
	}

	rootCmd := &cobra.Command{
		Use:           "leadgen",
		Short:         "Lead ads webhook receiver and lead handoff service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "text", "log format (text or json)")

	rootCmd.AddCommand(newServeCommand(a))
	rootCmd.AddCommand(newWorkerCommand(a))
	rootCmd.AddCommand(newMigrateCommand(a))
	return rootCmd
}
