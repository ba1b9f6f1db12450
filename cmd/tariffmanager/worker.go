package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	workerOnce       bool
	workerRunOnStart bool
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Regenerate every industry on the configured schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		w := a.worker(workerRunOnStart)
		if workerOnce {
			sum, err := w.RunOnce(ctx)
			logger.Info("run finished", zap.Int("industries", len(sum.Outcomes)), zap.Duration("duration", sum.Duration))
			return err
		}
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	workerCmd.Flags().BoolVar(&workerOnce, "once", false, "run once and exit")
	workerCmd.Flags().BoolVar(&workerRunOnStart, "run-on-start", false, "run immediately instead of waiting for the first tick")
}
