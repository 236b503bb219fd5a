// Package content checks drafts against per-platform best practices. Every
// function is pure: the same inputs always give the same result.
package content

import (
	"sort"

	"github.com/abdulachik/socialpilot/internal/platform"
)

// Guidelines are the heuristics a draft is measured against. Hard limits
// (MaxLength, RequiresMedia, MaxMedia) come from the platform requirements;
// the optimal ranges are editorial.
type Guidelines struct {
	Platform         platform.Platform `json:"platform"`
	MaxLength        int               `json:"maxLength"`
	OptimalMinLength int               `json:"optimalMinLength"`
	OptimalMaxLength int               `json:"optimalMaxLength"`
	MaxHashtags      int               `json:"maxHashtags"`
	OptimalHashtags  [2]int            `json:"optimalHashtags"`
	RequiresMedia    bool              `json:"requiresMedia"`
	MaxMedia         int               `json:"maxMedia"`
	LinksClickable   bool              `json:"linksClickable"`
	Tips             []string          `json:"tips"`
}

type heuristics struct {
	optimalLength   [2]int
	maxHashtags     int
	optimalHashtags [2]int
	linksClickable  bool
	tips            []string
}

var table = map[platform.Platform]heuristics{
	platform.Instagram: {
		optimalLength:   [2]int{125, 300},
		maxHashtags:     30,
		optimalHashtags: [2]int{5, 10},
		tips: []string{
			"Lead with a hook in the first line; captions are cut after ~125 characters",
			"Put links in your bio, captions do not render them",
		},
	},
	platform.LinkedIn: {
		optimalLength:   [2]int{150, 1300},
		maxHashtags:     5,
		optimalHashtags: [2]int{3, 5},
		linksClickable:  true,
		tips: []string{
			"Open with a professional insight or a question",
			"Short paragraphs read better in the feed",
		},
	},
	platform.Facebook: {
		optimalLength:   [2]int{40, 250},
		maxHashtags:     5,
		optimalHashtags: [2]int{1, 2},
		linksClickable:  true,
		tips: []string{
			"Short posts get the most interaction",
			"Native images outperform link previews",
		},
	},
	platform.Twitter: {
		optimalLength:   [2]int{71, 100},
		maxHashtags:     3,
		optimalHashtags: [2]int{1, 2},
		linksClickable:  true,
		tips: []string{
			"One or two hashtags at most",
			"Threads work better than cramming one post",
		},
	},
	platform.Bluesky: {
		optimalLength:   [2]int{80, 200},
		maxHashtags:     3,
		optimalHashtags: [2]int{0, 2},
		linksClickable:  true,
		tips: []string{
			"Conversational posts travel further than announcements",
			"Add alt text to images",
		},
	},
}

// For returns the guidelines of p. ok is false for unsupported platforms.
func For(p platform.Platform) (Guidelines, bool) {
	h, ok := table[p]
	if !ok {
		return Guidelines{}, false
	}
	req, ok := platform.GetRequirements(p.String())
	if !ok {
		return Guidelines{}, false
	}
	return Guidelines{
		Platform:         p,
		MaxLength:        req.MaxTextLength,
		OptimalMinLength: h.optimalLength[0],
		OptimalMaxLength: h.optimalLength[1],
		MaxHashtags:      h.maxHashtags,
		OptimalHashtags:  h.optimalHashtags,
		RequiresMedia:    req.RequiresMedia,
		MaxMedia:         req.MaxMediaCount,
		LinksClickable:   h.linksClickable,
		Tips:             append([]string(nil), h.tips...),
	}, true
}

// All returns the guidelines of every platform, sorted by platform.
func All() []Guidelines {
	out := make([]Guidelines, 0, len(table))
	for p := range table {
		if g, ok := For(p); ok {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out
}
