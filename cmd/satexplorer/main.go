// Package main is the entry point for the satexplorer service.
package main

import (
	"os"

	"github.com/star/satexplorer/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
