package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdulachik/socialpilot/internal/config"
	"github.com/abdulachik/socialpilot/internal/jobs"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Prune finished jobs",
	Long: `Remove completed and failed jobs older than each queue's retention
window. serve runs this periodically; the command runs it once.`,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(ctx, (*config.Config).ValidateForQueue)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.Jobs.Connected() {
		return fmt.Errorf("cleanup: %w", jobs.ErrNotConnected)
	}

	removed := a.Jobs.CleanupQueues(ctx)
	for _, q := range a.Jobs.Queues().All() {
		fmt.Printf("%s: removed %d\n", q.Name(), removed[q.Name()])
	}
	return nil
}
