package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"stegoscope/pkg/analyzer"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List registered analyzers and their supported formats",
	Run:   runFormats,
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}

func runFormats(cmd *cobra.Command, args []string) {
	for _, d := range analyzer.Default().Registered(true) {
		supported := "any"
		if len(d.Formats) > 0 {
			names := make([]string, len(d.Formats))
			for i, f := range d.Formats {
				names[i] = string(f)
			}
			supported = strings.Join(names, ", ")
		}
		note := ""
		if d.DeepOnly {
			note = " (deep only)"
		}
		fmt.Printf("%-10s %-8s %s%s\n", d.Name, d.Kind, supported, note)
	}
}
