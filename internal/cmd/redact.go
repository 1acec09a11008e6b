package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/veil-sh/veil/internal/batch"
	"github.com/veil-sh/veil/internal/config"
	"github.com/veil-sh/veil/internal/export"
	"github.com/veil-sh/veil/internal/extract"
	"github.com/veil-sh/veil/internal/preview"
)

var (
	redactText     string
	redactEntities []string
	redactFormat   string
	redactPreview  bool
	redactOut      string
)

var redactCmd = &cobra.Command{
	Use:   "redact [files...]",
	Short: "Redact PII from files or a literal text",
	Long: `Redact detects and masks PII in the given document files, or in a
literal text passed with --text. Results go to stdout, or to --out as a
text file (single input) or zip archive (multiple inputs).`,
	Args: cobra.ArbitraryArgs,
	RunE: runRedact,
}

func init() {
	redactCmd.Flags().StringVar(&redactText, "text", "", "Literal text to redact instead of files")
	redactCmd.Flags().StringSliceVar(&redactEntities, "entities", nil, "Entity types to redact (default: configured default_entities)")
	redactCmd.Flags().StringVar(&redactFormat, "format", "text", "Output format: text or json")
	redactCmd.Flags().BoolVar(&redactPreview, "preview", false, "Render redacted spans with bold markup")
	redactCmd.Flags().StringVar(&redactOut, "out", "", "Output path (text file for one input, zip for several)")
	rootCmd.AddCommand(redactCmd)
}

func runRedact(cmd *cobra.Command, args []string) error {
	if redactText == "" && len(args) == 0 {
		return fmt.Errorf("provide at least one file or --text")
	}
	if redactText != "" && len(args) > 0 {
		return fmt.Errorf("--text and file arguments are mutually exclusive")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	scanner, err := newScanner(cfg)
	if err != nil {
		return err
	}

	entities := redactEntities
	if !cmd.Flags().Changed("entities") {
		entities = cfg.DefaultEntities
	}

	entries, err := collectEntries(cmd, cfg, args)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no readable input files")
	}

	processor := batch.New(scanner,
		batch.WithWorkers(cfg.Workers),
		batch.WithProgress(func(done, total int) {
			log.Debug().Int("done", done).Int("total", total).Msg("progress")
		}),
	)

	result, err := processor.Process(cmd.Context(), entries, entities)
	if err != nil {
		return fmt.Errorf("processing batch: %w", err)
	}

	for _, id := range result.IDs {
		if fr := result.Files[id]; fr.Err != nil {
			log.Warn().Err(fr.Err).Str("file_id", id).Msg("entry failed")
		}
	}

	return writeRedactOutput(cmd, result)
}

func collectEntries(cmd *cobra.Command, cfg *config.Config, args []string) ([]batch.Entry, error) {
	if redactText != "" {
		return []batch.Entry{{ID: "raw_input", Text: redactText}}, nil
	}

	extractor := extract.NewExtractor(cfg.MaxFileMB)
	var entries []batch.Entry
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("skipping unreadable file")
			continue
		}
		text, err := extractor.Extract(cmd.Context(), filepath.Base(path), data)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("skipping file, extraction failed")
			continue
		}
		entries = append(entries, batch.Entry{ID: filepath.Base(path), Text: text})
	}
	return entries, nil
}

func writeRedactOutput(cmd *cobra.Command, result *batch.Result) error {
	out := cmd.OutOrStdout()

	if redactFormat == "json" {
		data, err := export.JSON(result)
		if err != nil {
			return fmt.Errorf("marshaling result: %w", err)
		}
		if redactOut != "" {
			return os.WriteFile(redactOut, data, 0o644)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if redactOut != "" {
		if len(result.IDs) == 1 {
			_, data := export.File(result.IDs[0], result.Files[result.IDs[0]])
			return os.WriteFile(redactOut, data, 0o644)
		}
		_, data, err := export.Archive(result)
		if err != nil {
			return fmt.Errorf("building archive: %w", err)
		}
		return os.WriteFile(redactOut, data, 0o644)
	}

	for _, id := range result.IDs {
		fr := result.Files[id]
		if fr.Err != nil {
			continue
		}
		text := fr.Text
		if redactPreview {
			text = preview.Render(fr.Text, preview.FromItems(fr.Items), preview.Bold)
		}
		if len(result.IDs) > 1 {
			fmt.Fprintf(out, "--- %s ---\n", id)
		}
		fmt.Fprintln(out, text)
	}

	log.Info().
		Int("total_items", result.Summary.TotalItems).
		Strs("entity_types", result.Summary.EntityTypes).
		Msg("redaction complete")
	return nil
}
