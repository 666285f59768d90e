package main

import (
	"os"

	"github.com/artdevesa7/Agentic-AI-designs/cmd/agentctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
