package main

import (
	"os"

	"sable/cmd/sable/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
