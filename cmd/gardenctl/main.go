// Command gardenctl is the operator CLI for garden-tender: one-shot stock
// reports, reset countdowns, database migration and chat token management.
package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
