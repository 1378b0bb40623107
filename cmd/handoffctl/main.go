package main

import (
	"os"

	"veil-chat/go-handoff/cmd/handoffctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
