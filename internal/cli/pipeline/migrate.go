package pipeline

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/pdfrag/internal/config"
	"github.com/cloo-solutions/pdfrag/internal/database"
	"github.com/cloo-solutions/pdfrag/internal/domain"
)

func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Creates the pgvector extension and the vector store tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.DatabaseURL == "" {
				return domain.NewConfigurationError("DATABASE_URL is required")
			}
			return database.Migrate(cfg.DatabaseURL)
		},
	}
}
