package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/abdulachik/socialpilot/internal/jobs"
)

var (
	publishAccount  string
	publishPostID   string
	publishContent  string
	publishMedia    []string
	publishHashtags []string
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a post now",
	Long: `Publish a post immediately through the account's platform adapter.

Examples:
  socialpilot publish --account acc-1 --content "Hello" --media https://cdn.example.com/a.jpg
  socialpilot publish --account acc-2 --content "Launch day" --hashtag launch --hashtag golang`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishAccount, "account", "", "Connected account id")
	publishCmd.Flags().StringVar(&publishPostID, "post-id", "", "Post id (random if empty)")
	publishCmd.Flags().StringVar(&publishContent, "content", "", "Post text")
	publishCmd.Flags().StringSliceVar(&publishMedia, "media", nil, "Media URL (repeatable)")
	publishCmd.Flags().StringSliceVar(&publishHashtags, "hashtag", nil, "Hashtag (repeatable)")
	_ = publishCmd.MarkFlagRequired("account")
	_ = publishCmd.MarkFlagRequired("content")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	account, err := a.Store.GetAccount(ctx, publishAccount)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("account %s not found", publishAccount)
	}
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}

	if publishPostID == "" {
		publishPostID = uuid.NewString()
	}

	result, err := a.Handlers.Publish(ctx, jobs.PostSchedulingJobData{
		PostID:    publishPostID,
		UserID:    account.UserID,
		AccountID: account.ID,
		Platform:  account.Platform,
		Content:   publishContent,
		MediaURLs: publishMedia,
		Hashtags:  publishHashtags,
	}, 1)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("publish failed: %s", result.Error)
	}

	fmt.Printf("Published %s to %s\n", publishPostID, account.Platform)
	fmt.Printf("  Platform post id: %s\n", result.PlatformPostID)
	if result.PlatformPostURL != "" {
		fmt.Printf("  URL: %s\n", result.PlatformPostURL)
	}
	return nil
}
