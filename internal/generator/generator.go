// Package generator writes platform-specific post drafts with Claude.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/abdulachik/socialpilot/internal/content"
	"github.com/abdulachik/socialpilot/internal/platform"
)

const defaultTone = "friendly and professional"

// Completer is the LLM surface the generator needs.
type Completer interface {
	Complete(ctx context.Context, system, user string) (*Completion, error)
	Model() string
}

// Request describes one generation.
type Request struct {
	Platform string
	Prompt   string
	Tone     string
}

// Draft is a generated post, checked against the platform guidelines.
type Draft struct {
	Platform     string         `json:"platform"`
	Content      string         `json:"content"`
	Hashtags     []string       `json:"hashtags"`
	Text         string         `json:"text"`
	Model        string         `json:"model"`
	InputTokens  int            `json:"inputTokens"`
	OutputTokens int            `json:"outputTokens"`
	Validation   content.Result `json:"validation"`
	Score        int            `json:"score"`
}

// Generator turns briefs into drafts.
type Generator struct {
	llm Completer
}

// New creates a generator backed by llm.
func New(llm Completer) *Generator {
	return &Generator{llm: llm}
}

// Generate writes a draft for req. Unsupported platforms and empty prompts
// are rejected before the model is called.
func (g *Generator) Generate(ctx context.Context, req Request) (*Draft, error) {
	guide, ok := content.For(platform.Platform(req.Platform))
	if !ok {
		return nil, &platform.UnsupportedPlatformError{Platform: req.Platform}
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, &platform.ValidationError{Platform: guide.Platform, Field: "prompt", Message: "prompt cannot be empty"}
	}

	completion, err := g.llm.Complete(ctx, SystemPrompt, BuildPrompt(guide, req))
	if err != nil {
		return nil, fmt.Errorf("complete: %w", err)
	}

	var out generatedPost
	if err := json.Unmarshal([]byte(completion.Text), &out); err != nil {
		// Try to extract JSON from response if it contains other text
		out, err = extractJSONFromResponse(completion.Text)
		if err != nil {
			return nil, fmt.Errorf("parse response: %w", err)
		}
	}
	if strings.TrimSpace(out.Content) == "" {
		return nil, fmt.Errorf("parse response: empty content")
	}

	hashtags := content.NormalizeHashtags(out.Hashtags)
	draft := &Draft{
		Platform:     req.Platform,
		Content:      strings.TrimSpace(out.Content),
		Hashtags:     hashtags,
		Model:        completion.Model,
		InputTokens:  completion.InputTokens,
		OutputTokens: completion.OutputTokens,
	}
	draft.Text = content.Compose(draft.Content, hashtags)

	// Media is attached later by the author, so the draft is checked without it.
	mediaCount := 0
	if guide.RequiresMedia {
		mediaCount = 1
	}
	draft.Validation, _ = content.Validate(req.Platform, draft.Content, hashtags, mediaCount)
	if score, err := content.GetScore(req.Platform, draft.Content, hashtags, mediaCount); err == nil {
		draft.Score = score.Score
	}

	slog.Info("draft generated",
		"platform", req.Platform,
		"model", draft.Model,
		"length", len([]rune(draft.Text)),
		"score", draft.Score,
		"valid", draft.Validation.Valid(),
	)

	return draft, nil
}

// BuildPrompt renders the user prompt for req using the platform guidelines.
func BuildPrompt(g content.Guidelines, req Request) string {
	tone := req.Tone
	if tone == "" {
		tone = defaultTone
	}
	tips := make([]string, 0, len(g.Tips))
	for _, tip := range g.Tips {
		tips = append(tips, "  - "+tip)
	}
	return fmt.Sprintf(GenerationPrompt,
		g.Platform,
		g.MaxLength,
		g.OptimalMinLength,
		g.OptimalMaxLength,
		g.OptimalHashtags[0],
		g.OptimalHashtags[1],
		strings.Join(tips, "\n"),
		tone,
		strings.TrimSpace(req.Prompt),
	)
}

type generatedPost struct {
	Content  string   `json:"content"`
	Hashtags []string `json:"hashtags"`
}

// extractJSONFromResponse finds and parses the first JSON object in a
// response that may contain other text.
func extractJSONFromResponse(response string) (generatedPost, error) {
	start := strings.IndexByte(response, '{')
	if start == -1 {
		return generatedPost{}, fmt.Errorf("no JSON object found in response")
	}

	// Find matching end brace, skipping braces inside strings
	depth := 0
	end := -1
	inString := false
	escaped := false
	for i := start; i < len(response) && end == -1; i++ {
		ch := response[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				end = i + 1
			}
		}
	}

	if end == -1 {
		return generatedPost{}, fmt.Errorf("malformed JSON object in response")
	}

	var out generatedPost
	if err := json.Unmarshal([]byte(response[start:end]), &out); err != nil {
		return generatedPost{}, fmt.Errorf("parse extracted JSON: %w", err)
	}
	return out, nil
}
