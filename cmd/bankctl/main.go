package main

import (
	"os"

	"github.com/punchamoorthee/wastebank/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
