package platform

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
)

const linkedInBaseURL = "https://api.linkedin.com"

// LinkedInClient talks to the LinkedIn v2 API. Posts are authored by the
// member urn, so publishing needs the platform user id: either passed with
// WithPlatformUserID or resolved by GetProfile on the same instance.
type LinkedInClient struct {
	api         apiClient
	accessToken string

	mu             sync.Mutex
	platformUserID string
}

// NewLinkedInClient creates a LinkedIn adapter.
func NewLinkedInClient(accessToken string, opts Options) *LinkedInClient {
	return &LinkedInClient{
		api:            newAPIClient(LinkedIn, linkedInBaseURL, opts),
		accessToken:    accessToken,
		platformUserID: opts.PlatformUserID,
	}
}

// Platform returns the platform name.
func (c *LinkedInClient) Platform() Platform {
	return LinkedIn
}

type linkedInProfile struct {
	ID                 string `json:"id"`
	LocalizedFirstName string `json:"localizedFirstName"`
	LocalizedLastName  string `json:"localizedLastName"`
	VanityName         string `json:"vanityName"`
	LocalizedHeadline  string `json:"localizedHeadline"`
}

// GetProfile fetches the member profile and remembers its id for later
// PublishPost calls on this instance.
func (c *LinkedInClient) GetProfile(ctx context.Context) (*SocialProfile, error) {
	resp, err := c.api.get(ctx, "get_profile", "/v2/people/(id:~)", nil, c.accessToken)
	if err != nil {
		return nil, fmt.Errorf("linkedin: fetch profile: %w", err)
	}
	if !resp.ok() {
		return nil, &ProfileFetchError{Platform: LinkedIn, StatusCode: resp.StatusCode, Message: resp.message()}
	}

	var p linkedInProfile
	if err := resp.decode(&p); err != nil {
		return nil, fmt.Errorf("linkedin: %w", err)
	}
	c.mu.Lock()
	c.platformUserID = p.ID
	c.mu.Unlock()

	profile := &SocialProfile{
		PlatformUserID: p.ID,
		Username:       p.VanityName,
		DisplayName:    strings.TrimSpace(p.LocalizedFirstName + " " + p.LocalizedLastName),
		AccountType:    "person",
		PlatformData:   map[string]any{"headline": p.LocalizedHeadline},
	}
	if p.VanityName != "" {
		profile.ProfileURL = "https://www.linkedin.com/in/" + p.VanityName
	}
	return profile, nil
}

type ugcPost struct {
	Author          string            `json:"author"`
	LifecycleState  string            `json:"lifecycleState"`
	SpecificContent ugcSpecific       `json:"specificContent"`
	Visibility      map[string]string `json:"visibility"`
}

type ugcSpecific struct {
	ShareContent ugcShareContent `json:"com.linkedin.ugc.ShareContent"`
}

type ugcShareContent struct {
	ShareCommentary    ugcText    `json:"shareCommentary"`
	ShareMediaCategory string     `json:"shareMediaCategory"`
	Media              []ugcMedia `json:"media,omitempty"`
}

type ugcText struct {
	Text string `json:"text"`
}

type ugcMedia struct {
	Status      string `json:"status"`
	OriginalURL string `json:"originalUrl"`
}

// PublishPost creates a UGC post. shareMediaCategory is IMAGE when media is
// attached and NONE otherwise.
func (c *LinkedInClient) PublishPost(ctx context.Context, content PostContent) (*PublishResult, error) {
	c.mu.Lock()
	authorID := c.platformUserID
	c.mu.Unlock()
	if authorID == "" {
		return Failed(ErrProfileNotResolved.Error()), fmt.Errorf("linkedin: %w", ErrProfileNotResolved)
	}

	share := ugcShareContent{
		ShareCommentary:    ugcText{Text: content.Text},
		ShareMediaCategory: "NONE",
	}
	if len(content.MediaURLs) > 0 {
		share.ShareMediaCategory = "IMAGE"
		for _, mediaURL := range content.MediaURLs {
			share.Media = append(share.Media, ugcMedia{Status: "READY", OriginalURL: mediaURL})
		}
	}

	post := ugcPost{
		Author:          "urn:li:person:" + authorID,
		LifecycleState:  "PUBLISHED",
		SpecificContent: ugcSpecific{ShareContent: share},
		Visibility:      map[string]string{"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC"},
	}

	resp, err := c.api.postJSON(ctx, "publish", "/v2/ugcPosts", post, c.accessToken)
	if err != nil {
		return Failed(fmt.Sprintf("create ugc post: %v", err)), nil
	}
	if !resp.ok() {
		slog.Warn("linkedin publish failed", "status", resp.StatusCode)
		return Failed(fmt.Sprintf("create ugc post (status %d): %s", resp.StatusCode, resp.message())), nil
	}

	postID := resp.Header.Get("X-RestLi-Id")
	if postID == "" {
		var created struct {
			ID string `json:"id"`
		}
		if err := resp.decode(&created); err != nil {
			return Failed(err.Error()), nil
		}
		postID = created.ID
	}
	if postID == "" {
		return Failed("create ugc post: response missing id"), nil
	}

	slog.Info("published to LinkedIn", "post_id", postID)

	return Published(postID, "https://www.linkedin.com/feed/update/"+postID, nil), nil
}

type linkedInStatistics struct {
	LikesSummary struct {
		TotalLikes int64 `json:"totalLikes"`
	} `json:"likesSummary"`
	CommentsSummary struct {
		AggregatedTotalComments int64 `json:"aggregatedTotalComments"`
	} `json:"commentsSummary"`
	SharesSummary *struct {
		TotalShares int64 `json:"totalShares"`
	} `json:"sharesSummary"`
	ImpressionCount *int64 `json:"impressionCount"`
	ClickCount      *int64 `json:"clickCount"`
}

// GetAnalytics reads social action statistics. Errors yield empty data.
func (c *LinkedInClient) GetAnalytics(ctx context.Context, postID string) AnalyticsData {
	resp, err := c.api.get(ctx, "get_analytics", "/v2/socialActions/"+url.PathEscape(postID)+"/statistics", nil, c.accessToken)
	if err != nil || !resp.ok() {
		logAnalyticsFailure(LinkedIn, postID, resp, err)
		return AnalyticsData{}
	}

	var stats linkedInStatistics
	if err := resp.decode(&stats); err != nil {
		logAnalyticsFailure(LinkedIn, postID, nil, err)
		return AnalyticsData{}
	}

	data := AnalyticsData{
		Likes:       Int64(stats.LikesSummary.TotalLikes),
		Comments:    Int64(stats.CommentsSummary.AggregatedTotalComments),
		Impressions: stats.ImpressionCount,
		Clicks:      stats.ClickCount,
	}
	if stats.SharesSummary != nil {
		data.Shares = Int64(stats.SharesSummary.TotalShares)
	}
	return data.withEngagementRate()
}

// RefreshToken is not supported: LinkedIn member tokens are renewed by
// running the OAuth flow again.
func (c *LinkedInClient) RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error) {
	return nil, &UnsupportedCapabilityError{Platform: LinkedIn, Capability: "token refresh"}
}
