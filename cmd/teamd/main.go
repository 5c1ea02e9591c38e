// Package main is the entry point for the teamd CLI.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/tnsengimana/autonomous-teams/internal/cli"
)

func main() {
	// Best effort; configuration falls back to the process environment.
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
