package content

import (
	"strings"

	"github.com/abdulachik/socialpilot/internal/platform"
)

// Weights of each score component. They sum to 100.
const (
	lengthWeight     = 30
	hashtagWeight    = 25
	mediaWeight      = 25
	engagementWeight = 20
)

var callsToAction = []string{
	"comment", "share", "click", "learn more", "sign up", "link in bio",
	"tag ", "follow", "join", "try ", "download", "check out", "let me know",
	"what do you think", "register",
}

// Breakdown is the per-component score.
type Breakdown struct {
	Length     int `json:"length"`
	Hashtags   int `json:"hashtags"`
	Media      int `json:"media"`
	Engagement int `json:"engagement"`
}

// Score is a 0-100 rating of a draft.
type Score struct {
	Score           int       `json:"score"`
	Breakdown       Breakdown `json:"breakdown"`
	Recommendations []string  `json:"recommendations"`
}

// GetScore rates a draft for p. The error is non-nil only for unsupported
// platforms.
func GetScore(p string, text string, hashtags []string, mediaCount int) (Score, error) {
	g, ok := For(platform.Platform(p))
	if !ok {
		return Score{}, &platform.UnsupportedPlatformError{Platform: p}
	}

	var recs []string
	n := length(Compose(text, hashtags))
	tags := hashtagCount(text, hashtags)

	b := Breakdown{
		Length:     lengthScore(g, n),
		Hashtags:   hashtagScore(g, tags),
		Media:      mediaScore(g, mediaCount),
		Engagement: engagementScore(text),
	}

	if b.Length < lengthWeight {
		switch {
		case n > g.MaxLength:
			recs = append(recs, "Shorten the post to fit the character limit")
		case n < g.OptimalMinLength:
			recs = append(recs, "Add more detail to reach the optimal length")
		default:
			recs = append(recs, "Trim the post closer to the optimal length")
		}
	}
	if b.Hashtags < hashtagWeight {
		if tags > g.OptimalHashtags[1] {
			recs = append(recs, "Use fewer hashtags")
		} else {
			recs = append(recs, "Add relevant hashtags")
		}
	}
	if b.Media < mediaWeight {
		if mediaCount > g.MaxMedia {
			recs = append(recs, "Remove media items over the platform limit")
		} else {
			recs = append(recs, "Attach an image or video")
		}
	}
	if b.Engagement < engagementWeight {
		recs = append(recs, "Ask a question or add a call to action")
	}

	total := b.Length + b.Hashtags + b.Media + b.Engagement
	return Score{
		Score:           min(max(total, 0), 100),
		Breakdown:       b,
		Recommendations: recs,
	}, nil
}

func lengthScore(g Guidelines, n int) int {
	switch {
	case n == 0 || n > g.MaxLength:
		return 0
	case n < g.OptimalMinLength:
		return lengthWeight * n / g.OptimalMinLength
	case n <= g.OptimalMaxLength:
		return lengthWeight
	}
	// Past the optimal range the score falls linearly to a third at the limit.
	over := n - g.OptimalMaxLength
	span := g.MaxLength - g.OptimalMaxLength
	floor := lengthWeight / 3
	return lengthWeight - (lengthWeight-floor)*over/span
}

func hashtagScore(g Guidelines, tags int) int {
	lo, hi := g.OptimalHashtags[0], g.OptimalHashtags[1]
	switch {
	case tags > g.MaxHashtags:
		return 0
	case tags >= lo && tags <= hi:
		return hashtagWeight
	case tags > hi:
		return hashtagWeight * 3 / 5
	case tags == 0:
		return hashtagWeight / 5
	}
	return hashtagWeight * tags / lo
}

func mediaScore(g Guidelines, mediaCount int) int {
	switch {
	case mediaCount > g.MaxMedia:
		return mediaWeight * 2 / 5
	case mediaCount > 0:
		return mediaWeight
	case g.RequiresMedia:
		return 0
	}
	return mediaWeight * 2 / 5
}

func engagementScore(text string) int {
	var s int
	if hasQuestion(text) {
		s += engagementWeight / 2
	}
	if hasCallToAction(text) {
		s += engagementWeight / 2
	}
	return s
}

func hasQuestion(text string) bool {
	return strings.Contains(text, "?")
}

func hasCallToAction(text string) bool {
	lower := strings.ToLower(text)
	for _, cta := range callsToAction {
		if strings.Contains(lower, cta) {
			return true
		}
	}
	return false
}
