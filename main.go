// Copyright (c) 2025 ToeiRei
// Annodb - unified image annotation database
// This source code is licensed under the MIT license found in the LICENSE file.

// Command-line entrypoint for Annodb.
//
// Usage:
//
//	go run . [flags]
//	./annodb [flags]
//
// This launches the Annodb CLI. See --help for options.
package main

import (
	"log"
	"os"

	"github.com/toeirei/annodb/ui/cli"
)

// main is the entrypoint for the Annodb CLI.
func main() {
	if err := cli.Execute(); err != nil {
		log.Printf("Annodb CLI error: %v", err)
		os.Exit(1)
	}
}
