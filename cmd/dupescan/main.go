package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := &cobra.Command{
		Use:     "dupescan",
		Short:   "Find groups of byte-identical files",
		Version: version + " (" + commit + ")",
	}

	root.AddCommand(newScanCmd())

	if err := root.Execute(); err != nil {
		if errors.Is(err, errScanCancelled) {
			return 130
		}
		return 1
	}
	return 0
}
