/*
 * gen-layout runs a force-simulation on the graph received on stdin in json
 * format and writes the graph including positions to stdout
 */
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/suxatcode/learngraph-forcelayout/internal/app"
	"github.com/suxatcode/learngraph-forcelayout/internal/controller"
	"github.com/suxatcode/learngraph-forcelayout/layout"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := rootCommand().ExecuteContext(ctx); err != nil {
		log.Error().Msgf("%v", err)
		cancel()
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var (
		configFile string
		pngFile    string
	)
	conf := app.GetEnvConfig()
	cmd := &cobra.Command{
		Use:   "gen-layout",
		Short: "Compute a force-directed layout for a graph read from stdin",
		Long: `Compute a force-directed layout for a graph read from stdin.

The input is a json object {"bodies": [{"id": ...}], "links": [{"source": ..., "target": ...}]}.
Bodies may carry an initial "pos". The simulation runs until it converged and
the graph including the final positions is written to stdout.

Simulation parameters are read from LAYOUT_* environment variables and can be
overridden by a yaml file passed with --config.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app.SetupLogging(conf)
			ctx := log.Logger.WithContext(cmd.Context())
			simulation, err := layout.GetEnvConfig()
			if err != nil {
				return err
			}
			if configFile != "" {
				if simulation, err = layout.LoadConfigFile(configFile, simulation); err != nil {
					return err
				}
			}
			var png io.Writer
			if pngFile != "" {
				f, err := os.Create(pngFile)
				if err != nil {
					return errors.Wrap(err, "failed to create png file")
				}
				defer f.Close()
				png = f
			}
			l := controller.NewForceSimulationLayouter(ctx, conf.WorkerConfig(simulation), nil)
			defer l.Close()
			return app.Run(ctx, conf, l, l.Metrics().Handler(), cmd.InOrStdin(), cmd.OutOrStdout(), png)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "yaml file with simulation parameters")
	cmd.Flags().StringVar(&pngFile, "png", "", "also draw the layout to this png file")
	cmd.Flags().DurationVar(&conf.Timeout, "timeout", conf.Timeout, "give up if the layout did not converge in time, 0 waits forever")
	cmd.Flags().StringVar(&conf.MetricsAddr, "metrics-addr", conf.MetricsAddr, "serve prometheus metrics on this address while running")
	return cmd
}
