package commands

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"stegoscope/pkg/config"
)

var (
	flagConfig   string
	flagWorkers  int
	flagTimeout  string
	flagDeep     bool
	flagPassword string
	flagVerbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "stegoscope",
	Short: "Steganography analyzer for carrier images",
	Long: `Stegoscope inspects a carrier image for hidden data: it dispatches a
battery of detection tools appropriate to the image format, searches the
bit planes for embedded payloads, and aggregates everything into one
report.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagVerbose {
			log.SetLevel(log.DebugLevel)
		} else {
			log.SetLevel(log.WarnLevel)
		}
	},
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to YAML configuration file")
	rootCmd.PersistentFlags().IntVar(&flagWorkers, "workers", 0, "Concurrent analyzer invocations (default from config)")
	rootCmd.PersistentFlags().StringVar(&flagTimeout, "timeout", "", "Per-analyzer timeout, e.g. 30s")
	rootCmd.PersistentFlags().BoolVar(&flagDeep, "deep", false, "Enable deep analysis (transform-domain tools)")
	rootCmd.PersistentFlags().StringVar(&flagPassword, "password", "", "Passphrase forwarded to passphrase-aware tools")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Verbose logging")
}

// loadConfig resolves the effective configuration: file, then flags on top.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if flagWorkers > 0 {
		cfg.Workers = flagWorkers
	}
	if flagTimeout != "" {
		cfg.DefaultTimeout = flagTimeout
	}
	if flagDeep {
		cfg.Deep = true
	}
	return cfg, cfg.Validate()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
