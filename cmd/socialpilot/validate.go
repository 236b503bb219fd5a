package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdulachik/socialpilot/internal/content"
)

var (
	validatePlatform   string
	validateContent    string
	validateHashtags   []string
	validateMediaCount int
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a draft against platform best practices",
	Long: `Validate a draft and rate it from 0 to 100 without publishing.

Examples:
  socialpilot validate --platform twitter --content "Shipping today! What do you think?" --hashtag golang`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validatePlatform, "platform", "", "Target platform")
	validateCmd.Flags().StringVar(&validateContent, "content", "", "Post text")
	validateCmd.Flags().StringSliceVar(&validateHashtags, "hashtag", nil, "Hashtag (repeatable)")
	validateCmd.Flags().IntVar(&validateMediaCount, "media-count", 0, "Number of attached media")
	_ = validateCmd.MarkFlagRequired("platform")
	_ = validateCmd.MarkFlagRequired("content")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	result, err := content.Validate(validatePlatform, validateContent, validateHashtags, validateMediaCount)
	if err != nil {
		return err
	}
	score, err := content.GetScore(validatePlatform, validateContent, validateHashtags, validateMediaCount)
	if err != nil {
		return err
	}

	fmt.Println(content.Compose(validateContent, content.NormalizeHashtags(validateHashtags)))
	fmt.Println()
	fmt.Printf("Score: %d/100 (length %d, hashtags %d, media %d, engagement %d)\n",
		score.Score,
		score.Breakdown.Length,
		score.Breakdown.Hashtags,
		score.Breakdown.Media,
		score.Breakdown.Engagement,
	)
	printList("Errors", result.Errors)
	printList("Warnings", result.Warnings)
	printList("Suggestions", result.Suggestions)
	printList("Recommendations", score.Recommendations)

	if !result.Valid() {
		return fmt.Errorf("draft cannot be published on %s", validatePlatform)
	}
	return nil
}
