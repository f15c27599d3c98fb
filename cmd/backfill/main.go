// Command backfill records an existing directory of images through the
// upload pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"visionqa/internal/config"
	"visionqa/internal/logger"
	"visionqa/internal/metrics"
	"visionqa/internal/repository/sqlite"
	"visionqa/internal/service/ai"
	"visionqa/internal/service/ingest"
	"visionqa/internal/service/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := Command(config.Load()).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// Command creates the backfill command.
func Command(cfg *config.Config) *cobra.Command {
	var (
		dir       string
		workers   int
		threshold float64
	)

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Record every image of a directory",
		Long:  "Runs detection on each .jpg, .jpeg, .png and .gif file of a directory and records the results.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg, dir, threshold, workers, cmd)
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory containing images")
	cmd.Flags().IntVarP(&workers, "workers", "w", cfg.BackfillWorkers, "Concurrent uploads")
	cmd.Flags().Float64VarP(&threshold, "conf", "c", cfg.DefaultConfidence, "Detection confidence threshold in (0, 1]")
	cmd.MarkFlagRequired("dir")

	return cmd
}

func run(ctx context.Context, cfg *config.Config, dir string, threshold float64, workers int, cmd *cobra.Command) error {
	if !ai.ValidThreshold(threshold) {
		return fmt.Errorf("--conf must be in (0, 1], got %v", threshold)
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	m, err := metrics.New()
	if err != nil {
		return err
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	files, err := storage.NewFileStore(cfg, log)
	if err != nil {
		return err
	}

	detector, err := ai.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize detector: %w", err)
	}
	defer detector.Close()

	svc := ingest.NewService(cfg, files, detector, sqlite.NewImageRepository(db), nil, nil, m, log)

	cmd.Printf("Backfilling images from %s into %s\n", dir, cfg.DatabasePath)
	result, err := svc.Backfill(ctx, dir, threshold, workers)
	cmd.Printf("✅ Recorded: %d, ⚠️  failed: %d, skipped: %d\n", result.Recorded, result.Failed, result.Skipped)
	return err
}
