package main

import (
	"os"

	"github.com/bankpull-dev/bankpull/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
