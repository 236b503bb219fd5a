package platform

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"
)

const instagramBaseURL = "https://graph.instagram.com"

// InstagramClient talks to the Instagram Graph API. Publishing is a two step
// protocol: one media container per URL, then media_publish on the first.
type InstagramClient struct {
	api         apiClient
	accessToken string
}

// NewInstagramClient creates an Instagram adapter.
func NewInstagramClient(accessToken string, opts Options) *InstagramClient {
	return &InstagramClient{
		api:         newAPIClient(Instagram, instagramBaseURL, opts),
		accessToken: accessToken,
	}
}

// Platform returns the platform name.
func (c *InstagramClient) Platform() Platform {
	return Instagram
}

type instagramProfile struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	Name              string `json:"name"`
	AccountType       string `json:"account_type"`
	ProfilePictureURL string `json:"profile_picture_url"`
	FollowersCount    *int64 `json:"followers_count"`
	FollowsCount      *int64 `json:"follows_count"`
	MediaCount        *int64 `json:"media_count"`
	Biography         string `json:"biography"`
}

// GetProfile fetches the authenticated Instagram account.
func (c *InstagramClient) GetProfile(ctx context.Context) (*SocialProfile, error) {
	query := url.Values{}
	query.Set("fields", "id,username,name,account_type,profile_picture_url,followers_count,follows_count,media_count,biography")
	query.Set("access_token", c.accessToken)

	resp, err := c.api.get(ctx, "get_profile", "/me", query, "")
	if err != nil {
		return nil, fmt.Errorf("instagram: fetch profile: %w", err)
	}
	if !resp.ok() {
		return nil, &ProfileFetchError{Platform: Instagram, StatusCode: resp.StatusCode, Message: resp.message()}
	}

	var p instagramProfile
	if err := resp.decode(&p); err != nil {
		return nil, fmt.Errorf("instagram: %w", err)
	}

	profile := &SocialProfile{
		PlatformUserID: p.ID,
		Username:       p.Username,
		DisplayName:    p.Name,
		AvatarURL:      p.ProfilePictureURL,
		FollowerCount:  p.FollowersCount,
		FollowingCount: p.FollowsCount,
		PostsCount:     p.MediaCount,
		AccountType:    p.AccountType,
		PlatformData:   map[string]any{"biography": p.Biography},
	}
	if p.Username != "" {
		profile.ProfileURL = "https://www.instagram.com/" + p.Username
	}
	return profile, nil
}

type instagramID struct {
	ID string `json:"id"`
}

// PublishPost creates a media container per URL, in order, then publishes the
// first container. Media is mandatory; an empty list fails before any call.
func (c *InstagramClient) PublishPost(ctx context.Context, content PostContent) (*PublishResult, error) {
	if len(content.MediaURLs) == 0 {
		err := &ValidationError{Platform: Instagram, Field: "media", Message: "Instagram requires at least one image or video"}
		return Failed(err.Error()), err
	}

	containerIDs := make([]string, 0, len(content.MediaURLs))
	for _, mediaURL := range content.MediaURLs {
		form := url.Values{}
		form.Set("image_url", mediaURL)
		form.Set("caption", content.Text)
		form.Set("access_token", c.accessToken)

		resp, err := c.api.postForm(ctx, "create_container", "/me/media", form, "")
		if err != nil {
			return Failed(fmt.Sprintf("create media container: %v", err)), nil
		}
		if !resp.ok() {
			slog.Warn("instagram media container failed", "status", resp.StatusCode, "media_url", mediaURL)
			return Failed(fmt.Sprintf("create media container (status %d): %s", resp.StatusCode, resp.message())), nil
		}

		var container instagramID
		if err := resp.decode(&container); err != nil {
			return Failed(err.Error()), nil
		}
		if container.ID == "" {
			slog.Warn("instagram media container missing id", "media_url", mediaURL)
			return Failed("create media container: response missing id"), nil
		}
		containerIDs = append(containerIDs, container.ID)
	}

	form := url.Values{}
	form.Set("creation_id", containerIDs[0])
	form.Set("access_token", c.accessToken)

	resp, err := c.api.postForm(ctx, "publish", "/me/media_publish", form, "")
	if err != nil {
		return Failed(fmt.Sprintf("publish media: %v", err)), nil
	}
	if !resp.ok() {
		slog.Warn("instagram publish failed", "status", resp.StatusCode)
		return Failed(fmt.Sprintf("publish media (status %d): %s", resp.StatusCode, resp.message())), nil
	}

	var published instagramID
	if err := resp.decode(&published); err != nil {
		return Failed(err.Error()), nil
	}
	if published.ID == "" {
		return Failed("publish media: response missing id"), nil
	}

	slog.Info("published to Instagram", "post_id", published.ID, "containers", len(containerIDs))

	return Published(
		published.ID,
		"https://www.instagram.com/p/"+published.ID,
		map[string]any{"containerIds": containerIDs},
	), nil
}

type instagramInsights struct {
	Data []struct {
		Name   string `json:"name"`
		Values []struct {
			Value int64 `json:"value"`
		} `json:"values"`
	} `json:"data"`
}

// GetAnalytics reads post insights. Errors yield empty data.
func (c *InstagramClient) GetAnalytics(ctx context.Context, postID string) AnalyticsData {
	query := url.Values{}
	query.Set("metric", "impressions,reach,likes,comments,shares,saved")
	query.Set("access_token", c.accessToken)

	resp, err := c.api.get(ctx, "get_analytics", "/"+url.PathEscape(postID)+"/insights", query, "")
	if err != nil || !resp.ok() {
		logAnalyticsFailure(Instagram, postID, resp, err)
		return AnalyticsData{}
	}

	var insights instagramInsights
	if err := resp.decode(&insights); err != nil {
		logAnalyticsFailure(Instagram, postID, nil, err)
		return AnalyticsData{}
	}

	var data AnalyticsData
	for _, metric := range insights.Data {
		if len(metric.Values) == 0 {
			continue
		}
		v := Int64(metric.Values[0].Value)
		switch metric.Name {
		case "impressions":
			data.Impressions = v
		case "reach":
			data.Reach = v
		case "likes":
			data.Likes = v
		case "comments":
			data.Comments = v
		case "shares":
			data.Shares = v
		case "saved":
			data.Saves = v
		}
	}
	return data.withEngagementRate()
}

type instagramToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// RefreshToken extends a long-lived token. Instagram refreshes the token
// itself, so refreshToken is the current long-lived access token.
func (c *InstagramClient) RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error) {
	query := url.Values{}
	query.Set("grant_type", "ig_refresh_token")
	query.Set("access_token", refreshToken)

	resp, err := c.api.get(ctx, "refresh_token", "/refresh_access_token", query, "")
	if err != nil {
		return nil, fmt.Errorf("instagram: refresh token: %w", err)
	}
	if !resp.ok() {
		return nil, &APIError{Platform: Instagram, Operation: "refresh token", StatusCode: resp.StatusCode, Message: resp.message()}
	}

	var tok instagramToken
	if err := resp.decode(&tok); err != nil {
		return nil, fmt.Errorf("instagram: %w", err)
	}
	return &TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.AccessToken,
		ExpiresAt:    expiresAt(tok.ExpiresIn),
	}, nil
}

// expiresAt converts an expires_in value to an absolute time.
func expiresAt(seconds int64) *time.Time {
	if seconds <= 0 {
		return nil
	}
	t := time.Now().Add(time.Duration(seconds) * time.Second)
	return &t
}

func logAnalyticsFailure(p Platform, postID string, resp *apiResponse, err error) {
	attrs := []any{"platform", p, "post_id", postID}
	if resp != nil {
		attrs = append(attrs, "status", resp.StatusCode, "message", resp.message())
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	slog.Warn("analytics read failed, returning empty metrics", attrs...)
}
