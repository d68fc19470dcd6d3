package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mpm-tu-berlin/eflips-depot-sub000/app"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/config"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "depot-sim",
	Short: "Electric bus depot simulation",
	Long: `depot-sim runs a discrete-event simulation of one or more electric
bus depots: vehicles arrive from scheduled trips, pass through service,
charging and parking areas, and are dispatched onto the next departures.
The scenario file describes the fleet, the depot layout and the
timetable; results are logged at the end of the run and can be mirrored
to metrics sinks and MQTT while the simulation is running.`,
	RunE: run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "scenario.yaml", "path to the scenario file (YAML or JSON)")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("build simulation: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("closing sinks: %v", err)
		}
	}()
	return svc.Run(ctx)
}
