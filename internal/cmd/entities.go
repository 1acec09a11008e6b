package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veil-sh/veil/internal/config"
	"github.com/veil-sh/veil/internal/detect"
)

var entitiesFormat string

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "List the entity types the detector supports",
	RunE:  runEntities,
}

func init() {
	entitiesCmd.Flags().StringVar(&entitiesFormat, "format", "text", "Output format: text or json")
	rootCmd.AddCommand(entitiesCmd)
}

func runEntities(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	scanner, err := newScanner(cfg)
	if err != nil {
		return err
	}

	entities := scanner.SupportedEntities()
	out := cmd.OutOrStdout()

	if entitiesFormat == "json" {
		data, err := json.MarshalIndent(entities, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	for _, e := range entities {
		fmt.Fprintln(out, e)
	}
	return nil
}

// newScanner builds the configured detector shared by the CLI commands.
func newScanner(cfg *config.Config) (*detect.Scanner, error) {
	opts := []detect.ScannerOption{}
	if cfg.PatternFile != "" {
		opts = append(opts, detect.WithPatternFile(cfg.PatternFile))
	}
	if cfg.MinScore > 0 {
		opts = append(opts, detect.WithMinScore(cfg.MinScore))
	}
	scanner, err := detect.NewScanner(opts...)
	if err != nil {
		return nil, fmt.Errorf("building scanner: %w", err)
	}
	return scanner, nil
}
