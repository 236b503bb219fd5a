package content

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	inlineHashtag = regexp.MustCompile(`#[\p{L}\p{N}_]+`)
	linkPattern   = regexp.MustCompile(`https?://\S+`)
)

// NormalizeHashtags strips leading '#', drops blanks and embedded spaces,
// and removes case-insensitive duplicates while keeping first-seen order.
func NormalizeHashtags(hashtags []string) []string {
	seen := make(map[string]bool, len(hashtags))
	var out []string
	for _, tag := range hashtags {
		tag = strings.TrimLeft(strings.TrimSpace(tag), "#")
		tag = strings.Join(strings.Fields(tag), "")
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tag)
	}
	return out
}

// Compose appends the hashtags to text as a trailing block. Tags already
// present inline are not repeated.
func Compose(text string, hashtags []string) string {
	text = strings.TrimSpace(text)

	inline := make(map[string]bool)
	for _, tag := range inlineHashtag.FindAllString(text, -1) {
		inline[strings.ToLower(tag[1:])] = true
	}

	var block []string
	for _, tag := range NormalizeHashtags(hashtags) {
		if inline[strings.ToLower(tag)] {
			continue
		}
		block = append(block, "#"+tag)
	}
	if len(block) == 0 {
		return text
	}
	if text == "" {
		return strings.Join(block, " ")
	}
	return text + "\n\n" + strings.Join(block, " ")
}

// hashtagCount counts distinct hashtags across the text and the list.
func hashtagCount(text string, hashtags []string) int {
	all := NormalizeHashtags(hashtags)
	for _, tag := range inlineHashtag.FindAllString(text, -1) {
		all = append(all, tag)
	}
	return len(NormalizeHashtags(all))
}

// length counts characters the way the platforms do, in runes.
func length(text string) int {
	return utf8.RuneCountInString(text)
}

func hasLink(text string) bool {
	return linkPattern.MatchString(text)
}
