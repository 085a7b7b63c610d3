package main

import (
	"os"

	"stegoscope/cmd/stegoscope/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
