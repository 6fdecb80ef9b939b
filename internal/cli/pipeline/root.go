package pipeline

import (
	"github.com/spf13/cobra"

	"github.com/cloo-solutions/pdfrag/internal/cli"
)

// RootCmd assembles the pdfrag command tree.
func RootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pdfrag",
		Short:         "PDF retrieval-augmented generation pipeline",
		Long:          "Ingest PDF documents into a vector store and answer questions from them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(MigrateCmd())
	rootCmd.AddCommand(IngestCmd())
	rootCmd.AddCommand(QueryCmd())
	rootCmd.AddCommand(AskCmd())

	return rootCmd
}
