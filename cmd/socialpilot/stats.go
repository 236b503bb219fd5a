package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/abdulachik/socialpilot/internal/queue"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show publishing and queue statistics",
	Long:  `Display publication outcomes per platform, stored analytics and generations, and the job counts of every queue.`,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	byPlatform, err := a.Store.CountPublicationsByPlatform(ctx)
	if err != nil {
		return fmt.Errorf("count publications: %w", err)
	}

	snapshots, err := a.Store.CountAnalyticsSnapshots(ctx)
	if err != nil {
		return fmt.Errorf("count analytics snapshots: %w", err)
	}

	generations, err := a.Store.CountGenerations(ctx)
	if err != nil {
		return fmt.Errorf("count generations: %w", err)
	}

	fmt.Println("=== SocialPilot Statistics ===")
	fmt.Println()
	fmt.Printf("Database: %s\n", a.Config.DatabasePath)
	fmt.Println()

	fmt.Println("Publications:")
	if len(byPlatform) == 0 {
		fmt.Println("  None yet")
	}
	for _, row := range byPlatform {
		fmt.Printf("  %s: %d attempts, %d published\n", row.Platform, row.Total, row.Succeeded)
	}
	fmt.Println()

	fmt.Println("Activity:")
	fmt.Printf("  Analytics snapshots: %d\n", snapshots)
	fmt.Printf("  AI generations: %d\n", generations)
	fmt.Println()

	counts, err := a.Jobs.Counts(ctx)
	if err != nil {
		slog.Warn("failed to read queue counts", "error", err)
		fmt.Println("Queues: unavailable")
		return nil
	}

	states := []queue.State{queue.StateWaiting, queue.StateDelayed, queue.StateActive, queue.StateCompleted, queue.StateFailed}
	fmt.Println("Queues:")
	for _, q := range a.Jobs.Queues().All() {
		fmt.Printf("  %s:", q.Name())
		for _, s := range states {
			fmt.Printf(" %s=%d", s, counts[q.Name()][s])
		}
		fmt.Println()
	}
	fmt.Println()

	return nil
}
