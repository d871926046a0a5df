package cli

import (
	"fmt"

	"bigbio/config"
	"bigbio/config/database"
	"bigbio/internal/block/repository"
	"bigbio/internal/block/service"
	"bigbio/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Recompute and store the skeleton of every block in the database",
		Args:  cobra.NoArgs,
		RunE:  runBackfill,
	}

	cmd.Flags().Bool("migrate", false, "Apply the schema before backfilling")

	RootCmd.AddCommand(cmd)
}

func runBackfill(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Init(cfg.LogLevel)
	defer logger.Sync()

	db, err := database.Connect(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
		if err := database.Migrate(db); err != nil {
			return err
		}
	}

	s, err := suggester()
	if err != nil {
		return err
	}
	svc := service.NewBlockService(repository.NewBlockRepository(db), s, nil)
	res, err := svc.Backfill(cmd.Context())
	if err != nil {
		return fmt.Errorf("backfill: %w", err)
	}
	return printJSON(cmd, res)
}
