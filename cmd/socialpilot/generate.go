package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/abdulachik/socialpilot/internal/config"
	"github.com/abdulachik/socialpilot/internal/jobs"
)

var (
	generatePrompt   string
	generatePlatform string
	generateTone     string
	generateUser     string
	generateSync     bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Draft a post with Claude",
	Long: `Draft a post for one platform from a short brief.

By default the request is queued on the ai-generation queue and the worker
stores the draft. With --sync the draft is generated and printed inline.

Examples:
  socialpilot generate --platform linkedin --prompt "We shipped v2"
  socialpilot generate --platform twitter --prompt "Conference recap" --tone playful --sync`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&generatePrompt, "prompt", "", "What the post is about")
	generateCmd.Flags().StringVar(&generatePlatform, "platform", "", "Target platform")
	generateCmd.Flags().StringVar(&generateTone, "tone", "", "Tone of voice")
	generateCmd.Flags().StringVar(&generateUser, "user", "cli", "Requesting user id")
	generateCmd.Flags().BoolVar(&generateSync, "sync", false, "Generate inline instead of queueing")
	_ = generateCmd.MarkFlagRequired("prompt")
	_ = generateCmd.MarkFlagRequired("platform")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	validate := (*config.Config).ValidateForQueue
	if generateSync {
		validate = (*config.Config).ValidateForGeneration
	}
	a, err := openApp(ctx, validate)
	if err != nil {
		return err
	}
	defer a.Close()

	data := jobs.AIGenerationJobData{
		UserID:   generateUser,
		Platform: generatePlatform,
		Prompt:   generatePrompt,
		Tone:     generateTone,
	}

	if !generateSync {
		job, err := a.Jobs.GenerateAIContent(ctx, data)
		if err != nil {
			return fmt.Errorf("queue generation: %w", err)
		}
		if job == nil {
			fmt.Println("not scheduled: job queue unavailable (retry with --sync)")
			return nil
		}
		fmt.Printf("Queued generation job %s\n", job.ID)
		return nil
	}

	draft, err := a.Handlers.Generate(ctx, "cli-"+uuid.NewString(), data)
	if err != nil {
		return err
	}

	fmt.Println("=== Draft ===")
	fmt.Println()
	fmt.Println(draft.Text)
	fmt.Println()
	fmt.Printf("Platform: %s\n", draft.Platform)
	fmt.Printf("Score: %d/100\n", draft.Score)
	fmt.Printf("Tokens: %d in, %d out (%s)\n", draft.InputTokens, draft.OutputTokens, draft.Model)
	printList("Errors", draft.Validation.Errors)
	printList("Warnings", draft.Validation.Warnings)
	printList("Suggestions", draft.Validation.Suggestions)
	return nil
}

func printList(title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("%s:\n", title)
	for _, item := range items {
		fmt.Printf("  - %s\n", strings.TrimSpace(item))
	}
}
