package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdulachik/socialpilot/internal/config"
	"github.com/abdulachik/socialpilot/internal/jobs"
)

var (
	scheduleAccount  string
	schedulePostID   string
	scheduleContent  string
	scheduleMedia    []string
	scheduleHashtags []string
	scheduleAt       string
	scheduleIn       time.Duration
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Schedule a post for later",
	Long: `Enqueue a delayed publish on the post-scheduling queue.

Scheduling the same post id for the same platform twice keeps the first
job. When the broker is unreachable nothing is queued and the command
prints "not scheduled".

Examples:
  socialpilot schedule --post-id p1 --account acc-1 --content "Hello" --at 2026-03-01T12:00:00Z
  socialpilot schedule --post-id p2 --account acc-2 --content "Soon" --in 2h`,
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().StringVar(&schedulePostID, "post-id", "", "Post id")
	scheduleCmd.Flags().StringVar(&scheduleAccount, "account", "", "Connected account id")
	scheduleCmd.Flags().StringVar(&scheduleContent, "content", "", "Post text")
	scheduleCmd.Flags().StringSliceVar(&scheduleMedia, "media", nil, "Media URL (repeatable)")
	scheduleCmd.Flags().StringSliceVar(&scheduleHashtags, "hashtag", nil, "Hashtag (repeatable)")
	scheduleCmd.Flags().StringVar(&scheduleAt, "at", "", "Publish time (RFC 3339)")
	scheduleCmd.Flags().DurationVar(&scheduleIn, "in", 0, "Publish after this delay")
	_ = scheduleCmd.MarkFlagRequired("post-id")
	_ = scheduleCmd.MarkFlagRequired("account")
	_ = scheduleCmd.MarkFlagRequired("content")
	scheduleCmd.MarkFlagsMutuallyExclusive("at", "in")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	scheduledFor := time.Now().Add(scheduleIn)
	if scheduleAt != "" {
		t, err := time.Parse(time.RFC3339, scheduleAt)
		if err != nil {
			return fmt.Errorf("parse --at: %w", err)
		}
		scheduledFor = t
	}

	a, err := openApp(ctx, (*config.Config).ValidateForQueue)
	if err != nil {
		return err
	}
	defer a.Close()

	account, err := a.Store.GetAccount(ctx, scheduleAccount)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("account %s not found", scheduleAccount)
	}
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}

	job, err := a.Jobs.SchedulePost(ctx, jobs.PostSchedulingJobData{
		PostID:       schedulePostID,
		UserID:       account.UserID,
		AccountID:    account.ID,
		Platform:     account.Platform,
		Content:      scheduleContent,
		MediaURLs:    scheduleMedia,
		Hashtags:     scheduleHashtags,
		ScheduledFor: scheduledFor,
	})
	if err != nil {
		return fmt.Errorf("schedule post: %w", err)
	}
	if job == nil {
		fmt.Println("not scheduled: job queue unavailable")
		return nil
	}

	fmt.Printf("Scheduled job %s\n", job.ID)
	fmt.Printf("  Platform: %s\n", account.Platform)
	fmt.Printf("  Runs at: %s\n", scheduledFor.UTC().Format(time.RFC3339))
	fmt.Printf("  State: %s\n", job.State)
	return nil
}
