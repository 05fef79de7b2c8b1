// Package main is the pgtoolsservice entry point.
package main

import (
	"os"

	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
