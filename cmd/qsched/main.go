// Package main is the entry point for the qsched CLI binary.
package main

import (
	"os"

	"query-scheduler/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
