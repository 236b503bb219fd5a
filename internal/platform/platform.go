// Package platform wraps each social network's REST API behind one Adapter
// interface so callers can publish, read profiles and collect analytics
// without knowing which vendor they are talking to.
package platform

import (
	"context"
	"time"
)

// Platform identifies a supported social network.
type Platform string

const (
	Instagram Platform = "instagram"
	LinkedIn  Platform = "linkedin"
	Facebook  Platform = "facebook"
	Twitter   Platform = "twitter"
	Bluesky   Platform = "bluesky"
)

// String returns the platform identifier.
func (p Platform) String() string {
	return string(p)
}

// SocialProfile is the canonical shape of an account profile. It is built
// fresh on every GetProfile call and never mutated afterwards.
type SocialProfile struct {
	PlatformUserID string         `json:"platformUserId"`
	Username       string         `json:"username,omitempty"`
	DisplayName    string         `json:"displayName,omitempty"`
	Email          string         `json:"email,omitempty"`
	AvatarURL      string         `json:"avatarUrl,omitempty"`
	ProfileURL     string         `json:"profileUrl,omitempty"`
	FollowerCount  *int64         `json:"followerCount,omitempty"`
	FollowingCount *int64         `json:"followingCount,omitempty"`
	PostsCount     *int64         `json:"postsCount,omitempty"`
	AccountType    string         `json:"accountType,omitempty"`
	IsVerified     *bool          `json:"isVerified,omitempty"`
	PlatformData   map[string]any `json:"platformData,omitempty"`
}

// PostContent is the input to PublishPost.
type PostContent struct {
	Text      string
	MediaURLs []string
	Metadata  map[string]any
}

// PublishResult reports the outcome of one publish attempt. Either Success
// is true and PlatformPostID is set, or Success is false and Error is set.
type PublishResult struct {
	Success         bool           `json:"success"`
	PlatformPostID  string         `json:"platformPostId,omitempty"`
	PlatformPostURL string         `json:"platformPostUrl,omitempty"`
	Error           string         `json:"error,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Published builds a successful result. A result without a post id cannot be
// a success, so an empty postID yields a failed result instead.
func Published(postID, postURL string, metadata map[string]any) *PublishResult {
	if postID == "" {
		return Failed(errMissingPostID)
	}
	return &PublishResult{
		Success:         true,
		PlatformPostID:  postID,
		PlatformPostURL: postURL,
		Metadata:        metadata,
	}
}

const errMissingPostID = "publish response missing post id"

// Failed builds a failed result. An empty message is replaced so the result
// never ends up with neither an id nor an error.
func Failed(message string) *PublishResult {
	if message == "" {
		message = "publish failed"
	}
	return &PublishResult{Success: false, Error: message}
}

// TokenSet is the result of a token refresh.
type TokenSet struct {
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

// Adapter is implemented by every platform client.
//
// GetProfile and RefreshToken return an error on vendor failure. PublishPost
// folds vendor failures into a failed PublishResult and only returns an error
// for caller mistakes that must not be retried. GetAnalytics never fails; a
// vendor error yields empty AnalyticsData.
type Adapter interface {
	// Platform returns the platform this adapter talks to.
	Platform() Platform

	// GetProfile fetches the authenticated account's profile.
	GetProfile(ctx context.Context) (*SocialProfile, error)

	// PublishPost publishes content. The returned result is never nil.
	PublishPost(ctx context.Context, content PostContent) (*PublishResult, error)

	// GetAnalytics reads the metrics of a published post.
	GetAnalytics(ctx context.Context, postID string) AnalyticsData

	// RefreshToken exchanges a refresh token for a new access token.
	RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error)
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 {
	return &v
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 {
	return &v
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}
