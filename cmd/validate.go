package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mpm-tu-berlin/eflips-depot-sub000/app"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/config"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/infra/logger"
)

var printScenario bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a scenario file without running it",
	RunE:  validate,
}

func init() {
	validateCmd.Flags().BoolVar(&printScenario, "print", false, "dump the effective scenario with defaults applied")
	rootCmd.AddCommand(validateCmd)
}

func validate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}
	// Building the object graph catches wiring problems the schema
	// validation cannot see, e.g. plans not ending at a sink.
	w, err := app.BuildWorld(cfg, logger.NopLogger{})
	if err != nil {
		return err
	}
	if printScenario {
		// Round-trip through JSON so the dump uses the same field names
		// as the input schema.
		raw, err := json.Marshal(cfg)
		if err != nil {
			return err
		}
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
	}
	fmt.Printf("scenario ok: %d depots, %d vehicle types, %d trips, horizon %d s\n",
		len(w.Depots), len(w.Types), len(w.Timetable.Trips), w.Horizon)
	return nil
}
