package content

import (
	"fmt"

	"github.com/abdulachik/socialpilot/internal/platform"
)

// Result lists what blocks publishing (Errors), what hurts reach (Warnings)
// and optional improvements (Suggestions).
type Result struct {
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
	Suggestions []string `json:"suggestions"`
}

// Valid reports whether the draft can be published.
func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

// Validate checks a draft for p. The length checked is that of the composed
// post, hashtags included. The error is non-nil only for unsupported
// platforms.
func Validate(p string, text string, hashtags []string, mediaCount int) (Result, error) {
	g, ok := For(platform.Platform(p))
	if !ok {
		return Result{}, &platform.UnsupportedPlatformError{Platform: p}
	}

	res := Result{
		Errors:      []string{},
		Warnings:    []string{},
		Suggestions: []string{},
	}

	composed := Compose(text, hashtags)
	n := length(composed)
	tags := hashtagCount(text, hashtags)

	switch {
	case n == 0 && mediaCount == 0:
		res.Errors = append(res.Errors, "Content cannot be empty")
	case n > g.MaxLength:
		res.Errors = append(res.Errors, fmt.Sprintf("Content exceeds %d character limit (%d characters)", g.MaxLength, n))
	case n < g.OptimalMinLength:
		res.Warnings = append(res.Warnings, fmt.Sprintf("Content is shorter than the optimal %d-%d characters", g.OptimalMinLength, g.OptimalMaxLength))
	case n > g.OptimalMaxLength:
		res.Warnings = append(res.Warnings, fmt.Sprintf("Content is longer than the optimal %d-%d characters", g.OptimalMinLength, g.OptimalMaxLength))
	}

	if g.RequiresMedia && mediaCount == 0 {
		res.Errors = append(res.Errors, fmt.Sprintf("%s requires at least one image or video", p))
	}
	if mediaCount > g.MaxMedia {
		res.Errors = append(res.Errors, fmt.Sprintf("Too many media items: %d (max %d)", mediaCount, g.MaxMedia))
	}

	switch {
	case tags > g.MaxHashtags:
		res.Errors = append(res.Errors, fmt.Sprintf("Too many hashtags: %d (max %d)", tags, g.MaxHashtags))
	case tags < g.OptimalHashtags[0]:
		res.Warnings = append(res.Warnings, fmt.Sprintf("Consider using %d-%d hashtags", g.OptimalHashtags[0], g.OptimalHashtags[1]))
	case tags > g.OptimalHashtags[1]:
		res.Warnings = append(res.Warnings, fmt.Sprintf("More than %d hashtags can look spammy", g.OptimalHashtags[1]))
	}

	if !g.LinksClickable && hasLink(text) {
		res.Warnings = append(res.Warnings, "Links are not clickable on "+p)
	}

	if !g.RequiresMedia && mediaCount == 0 {
		res.Suggestions = append(res.Suggestions, "Posts with images or video get more engagement")
	}
	if !hasQuestion(text) && !hasCallToAction(text) {
		res.Suggestions = append(res.Suggestions, "End with a question or call to action to invite replies")
	}
	res.Suggestions = append(res.Suggestions, g.Tips...)

	return res, nil
}
