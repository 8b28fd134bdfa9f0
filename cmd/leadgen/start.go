package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"leadgen-engine/internal/scheduler"
)

var startEvery time.Duration

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the pipeline on an interval",
	Long:  "Run the pipeline immediately and then once per interval; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	startCmd.Flags().DurationVar(&startEvery, "every", 6*time.Hour, "interval between runs")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	lock, err := acquireRunLock(cfg)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler.Every(ctx, startEvery, "leadgen", func(ctx context.Context) error {
		_, err := executePipeline(ctx, cfg)
		return err
	})
	return nil
}
