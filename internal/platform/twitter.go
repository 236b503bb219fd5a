package platform

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

const twitterBaseURL = "https://api.twitter.com"

// TwitterClient talks to the X API v2 with an OAuth 2.0 user token.
type TwitterClient struct {
	api          apiClient
	accessToken  string
	clientID     string
	clientSecret string
}

// NewTwitterClient creates an X adapter. Token refresh needs the OAuth client
// id from WithAppCredentials; the secret is only sent for confidential apps.
func NewTwitterClient(accessToken string, opts Options) *TwitterClient {
	return &TwitterClient{
		api:          newAPIClient(Twitter, twitterBaseURL, opts),
		accessToken:  accessToken,
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
	}
}

// Platform returns the platform name.
func (c *TwitterClient) Platform() Platform {
	return Twitter
}

type twitterUser struct {
	Data struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		Username        string `json:"username"`
		ProfileImageURL string `json:"profile_image_url"`
		Verified        *bool  `json:"verified"`
		Description     string `json:"description"`
		PublicMetrics   struct {
			FollowersCount int64 `json:"followers_count"`
			FollowingCount int64 `json:"following_count"`
			TweetCount     int64 `json:"tweet_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}

// GetProfile fetches the authenticated user.
func (c *TwitterClient) GetProfile(ctx context.Context) (*SocialProfile, error) {
	query := url.Values{}
	query.Set("user.fields", "profile_image_url,public_metrics,verified,description")

	resp, err := c.api.get(ctx, "get_profile", "/2/users/me", query, c.accessToken)
	if err != nil {
		return nil, fmt.Errorf("twitter: fetch profile: %w", err)
	}
	if !resp.ok() {
		return nil, &ProfileFetchError{Platform: Twitter, StatusCode: resp.StatusCode, Message: resp.message()}
	}

	var u twitterUser
	if err := resp.decode(&u); err != nil {
		return nil, fmt.Errorf("twitter: %w", err)
	}

	d := u.Data
	return &SocialProfile{
		PlatformUserID: d.ID,
		Username:       d.Username,
		DisplayName:    d.Name,
		AvatarURL:      d.ProfileImageURL,
		ProfileURL:     "https://x.com/" + d.Username,
		FollowerCount:  Int64(d.PublicMetrics.FollowersCount),
		FollowingCount: Int64(d.PublicMetrics.FollowingCount),
		PostsCount:     Int64(d.PublicMetrics.TweetCount),
		IsVerified:     d.Verified,
		PlatformData:   map[string]any{"description": d.Description},
	}, nil
}

// PublishPost creates a post. The v2 endpoint has no URL-based media upload,
// so media URLs are appended to the text as links.
func (c *TwitterClient) PublishPost(ctx context.Context, content PostContent) (*PublishResult, error) {
	text := content.Text
	if len(content.MediaURLs) > 0 {
		text = strings.TrimSpace(text + " " + strings.Join(content.MediaURLs, " "))
	}

	resp, err := c.api.postJSON(ctx, "publish", "/2/tweets", map[string]string{"text": text}, c.accessToken)
	if err != nil {
		return Failed(fmt.Sprintf("create post: %v", err)), nil
	}
	if !resp.ok() {
		slog.Warn("twitter publish failed", "status", resp.StatusCode)
		return Failed(fmt.Sprintf("create post (status %d): %s", resp.StatusCode, resp.message())), nil
	}

	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := resp.decode(&created); err != nil {
		return Failed(err.Error()), nil
	}
	if created.Data.ID == "" {
		return Failed("create post: response missing id"), nil
	}

	slog.Info("published to X", "post_id", created.Data.ID)

	return Published(created.Data.ID, "https://x.com/i/web/status/"+created.Data.ID, nil), nil
}

type twitterPost struct {
	Data struct {
		PublicMetrics struct {
			RetweetCount    int64  `json:"retweet_count"`
			ReplyCount      int64  `json:"reply_count"`
			LikeCount       int64  `json:"like_count"`
			QuoteCount      int64  `json:"quote_count"`
			BookmarkCount   *int64 `json:"bookmark_count"`
			ImpressionCount *int64 `json:"impression_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}

// GetAnalytics reads public metrics. Errors yield empty data.
func (c *TwitterClient) GetAnalytics(ctx context.Context, postID string) AnalyticsData {
	query := url.Values{}
	query.Set("tweet.fields", "public_metrics")

	resp, err := c.api.get(ctx, "get_analytics", "/2/tweets/"+url.PathEscape(postID), query, c.accessToken)
	if err != nil || !resp.ok() {
		logAnalyticsFailure(Twitter, postID, resp, err)
		return AnalyticsData{}
	}

	var post twitterPost
	if err := resp.decode(&post); err != nil {
		logAnalyticsFailure(Twitter, postID, nil, err)
		return AnalyticsData{}
	}

	m := post.Data.PublicMetrics
	data := AnalyticsData{
		Impressions: m.ImpressionCount,
		Likes:       Int64(m.LikeCount),
		Comments:    Int64(m.ReplyCount),
		Shares:      Int64(m.RetweetCount + m.QuoteCount),
		Saves:       m.BookmarkCount,
	}
	return data.withEngagementRate()
}

type twitterToken struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// RefreshToken exchanges a refresh token for a new token pair.
func (c *TwitterClient) RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error) {
	if c.clientID == "" {
		return nil, &ValidationError{Platform: Twitter, Field: "app credentials", Message: "client id is required for token refresh"}
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", c.clientID)

	resp, err := c.api.do(ctx, apiRequest{
		operation:   "refresh_token",
		method:      "POST",
		path:        "/2/oauth2/token",
		body:        strings.NewReader(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
		basicUser:   basicUser(c.clientID, c.clientSecret),
		basicPass:   c.clientSecret,
	})
	if err != nil {
		return nil, fmt.Errorf("twitter: refresh token: %w", err)
	}
	if !resp.ok() {
		return nil, &APIError{Platform: Twitter, Operation: "refresh token", StatusCode: resp.StatusCode, Message: resp.message()}
	}

	var tok twitterToken
	if err := resp.decode(&tok); err != nil {
		return nil, fmt.Errorf("twitter: %w", err)
	}
	return &TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expiresAt(tok.ExpiresIn),
	}, nil
}

// basicUser returns the client id when the app is confidential. Public
// clients send only client_id in the body.
func basicUser(clientID, clientSecret string) string {
	if clientSecret == "" {
		return ""
	}
	return clientID
}
