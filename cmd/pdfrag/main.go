package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/pdfrag/internal/cli"
	"github.com/cloo-solutions/pdfrag/internal/cli/pipeline"
)

func main() {
	rootCmd := pipeline.RootCmd()

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
