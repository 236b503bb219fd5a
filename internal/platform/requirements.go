package platform

import "unicode/utf8"

// MediaType is a kind of attachable media.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaGIF   MediaType = "gif"
)

// Requirements is the static publishing constraint set of a platform.
type Requirements struct {
	RequiresMedia       bool        `json:"requiresMedia"`
	MaxTextLength       int         `json:"maxTextLength"`
	SupportedMediaTypes []MediaType `json:"supportedMediaTypes"`
	MaxMediaCount       int         `json:"maxMediaCount"`
}

var requirements = map[Platform]Requirements{
	Instagram: {
		RequiresMedia:       true,
		MaxTextLength:       2200,
		SupportedMediaTypes: []MediaType{MediaImage, MediaVideo},
		MaxMediaCount:       10,
	},
	LinkedIn: {
		MaxTextLength:       3000,
		SupportedMediaTypes: []MediaType{MediaImage, MediaVideo},
		MaxMediaCount:       9,
	},
	Facebook: {
		MaxTextLength:       63206,
		SupportedMediaTypes: []MediaType{MediaImage, MediaVideo},
		MaxMediaCount:       10,
	},
	Twitter: {
		MaxTextLength:       280,
		SupportedMediaTypes: []MediaType{MediaImage, MediaVideo, MediaGIF},
		MaxMediaCount:       4,
	},
	Bluesky: {
		MaxTextLength:       300,
		SupportedMediaTypes: []MediaType{MediaImage},
		MaxMediaCount:       4,
	},
}

// GetRequirements returns the static requirements of platform. ok is false
// for platforms without an adapter, which is not an error.
func GetRequirements(platform string) (Requirements, bool) {
	req, ok := requirements[Platform(platform)]
	if !ok {
		return Requirements{}, false
	}
	req.SupportedMediaTypes = append([]MediaType(nil), req.SupportedMediaTypes...)
	return req, true
}

// CheckPost validates content against the platform's requirements before
// any network call.
func CheckPost(p Platform, content PostContent) error {
	req, ok := requirements[p]
	if !ok {
		return &UnsupportedPlatformError{Platform: string(p)}
	}
	if req.RequiresMedia && len(content.MediaURLs) == 0 {
		return &ValidationError{Platform: p, Field: "media", Message: "at least one media URL is required"}
	}
	if n := len(content.MediaURLs); n > req.MaxMediaCount {
		return &ValidationError{Platform: p, Field: "media", Message: "too many media items"}
	}
	if content.Text == "" && len(content.MediaURLs) == 0 {
		return &ValidationError{Platform: p, Field: "text", Message: "post is empty"}
	}
	if utf8.RuneCountInString(content.Text) > req.MaxTextLength {
		return &ValidationError{Platform: p, Field: "text", Message: "text exceeds maximum length"}
	}
	return nil
}
