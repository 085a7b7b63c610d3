package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"stegoscope/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP submission interface",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printInfo("Listening on %s", cfg.Server.Listen)
	return server.New(cfg).Run(ctx)
}
