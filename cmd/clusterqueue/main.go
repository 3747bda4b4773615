// ============================================================================
// clusterqueue - Main Entry Point
// ============================================================================
//
// File: cmd/clusterqueue/main.go
// Purpose: Application entry point and CLI initialization
//
// Version Injection:
//   Variables injected at build time via -ldflags:
//   go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
//
// Usage:
//   ./clusterqueue --help              # Show help
//   ./clusterqueue run                 # Start the queue daemon
//   ./clusterqueue submit -f jobs.json # Submit jobs
//   ./clusterqueue cancel <job-id>     # Cancel a job
//   ./clusterqueue drain               # Stop accepting new submissions
//   ./clusterqueue status              # View system status
//
// ============================================================================

package main

import (
	"fmt"
	"os"

	"github.com/nimbusvm/clusterqueue/internal/cli"
)

var (
	version = "1.0.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Fatal error: %v\n", r)
			os.Exit(1)
		}
	}()

	rootCmd := cli.BuildCLI()
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
