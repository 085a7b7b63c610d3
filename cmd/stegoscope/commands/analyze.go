package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stegoscope/pkg/models"
	"stegoscope/pkg/pipeline"
)

var (
	flagJSON        bool
	flagArtifactDir string
	flagFormatHint  string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image>",
	Short: "Analyze one carrier image and print the report",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&flagJSON, "json", false, "Emit the raw JSON report")
	analyzeCmd.Flags().StringVar(&flagArtifactDir, "artifacts", "", "Retain tool artifacts under this directory")
	analyzeCmd.Flags().StringVar(&flagFormatHint, "format", "", "Declared format hint (overridden by detection)")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read carrier: %w", err)
	}

	rep, err := pipeline.Analyze(context.Background(), data, pipeline.Options{
		Deep:           cfg.Deep,
		Password:       flagPassword,
		FormatHint:     models.Format(flagFormatHint),
		Filename:       args[0],
		Workers:        cfg.Workers,
		DefaultTimeout: cfg.GetDefaultTimeout(),
		ArtifactDir:    flagArtifactDir,
		Registry:       cfg.BuildRegistry(),
	})
	if err != nil {
		printError("%v", err)
		return err
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	renderReport(rep)
	return nil
}
