package platform

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
)

const facebookBaseURL = "https://graph.facebook.com/v19.0"

// FacebookClient talks to the Facebook Graph API.
type FacebookClient struct {
	api          apiClient
	accessToken  string
	clientID     string
	clientSecret string
}

// NewFacebookClient creates a Facebook adapter. Token refresh needs the app
// credentials from WithAppCredentials.
func NewFacebookClient(accessToken string, opts Options) *FacebookClient {
	return &FacebookClient{
		api:          newAPIClient(Facebook, facebookBaseURL, opts),
		accessToken:  accessToken,
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
	}
}

// Platform returns the platform name.
func (c *FacebookClient) Platform() Platform {
	return Facebook
}

type facebookProfile struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Link    string `json:"link"`
	Picture struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
	Friends *struct {
		Summary struct {
			TotalCount int64 `json:"total_count"`
		} `json:"summary"`
	} `json:"friends"`
}

// GetProfile fetches the authenticated user.
func (c *FacebookClient) GetProfile(ctx context.Context) (*SocialProfile, error) {
	query := url.Values{}
	query.Set("fields", "id,name,email,link,picture{url},friends.limit(0)")
	query.Set("access_token", c.accessToken)

	resp, err := c.api.get(ctx, "get_profile", "/me", query, "")
	if err != nil {
		return nil, fmt.Errorf("facebook: fetch profile: %w", err)
	}
	if !resp.ok() {
		return nil, &ProfileFetchError{Platform: Facebook, StatusCode: resp.StatusCode, Message: resp.message()}
	}

	var p facebookProfile
	if err := resp.decode(&p); err != nil {
		return nil, fmt.Errorf("facebook: %w", err)
	}

	profile := &SocialProfile{
		PlatformUserID: p.ID,
		DisplayName:    p.Name,
		Email:          p.Email,
		AvatarURL:      p.Picture.Data.URL,
		ProfileURL:     p.Link,
		AccountType:    "user",
	}
	if p.Friends != nil {
		profile.FollowerCount = Int64(p.Friends.Summary.TotalCount)
	}
	return profile, nil
}

// PublishPost posts to the user's feed. A simple feed post carries a single
// link, so only the first media URL is attached and the rest are ignored.
func (c *FacebookClient) PublishPost(ctx context.Context, content PostContent) (*PublishResult, error) {
	form := url.Values{}
	form.Set("message", content.Text)
	if len(content.MediaURLs) > 0 {
		form.Set("link", content.MediaURLs[0])
	}
	form.Set("access_token", c.accessToken)

	resp, err := c.api.postForm(ctx, "publish", "/me/feed", form, "")
	if err != nil {
		return Failed(fmt.Sprintf("create feed post: %v", err)), nil
	}
	if !resp.ok() {
		slog.Warn("facebook publish failed", "status", resp.StatusCode)
		return Failed(fmt.Sprintf("create feed post (status %d): %s", resp.StatusCode, resp.message())), nil
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := resp.decode(&created); err != nil {
		return Failed(err.Error()), nil
	}
	if created.ID == "" {
		return Failed("create feed post: response missing id"), nil
	}

	slog.Info("published to Facebook", "post_id", created.ID)

	var metadata map[string]any
	if dropped := len(content.MediaURLs) - 1; dropped > 0 {
		metadata = map[string]any{"ignoredMediaCount": dropped}
	}
	return Published(created.ID, "https://www.facebook.com/"+created.ID, metadata), nil
}

type facebookInsights struct {
	Data []struct {
		Name   string `json:"name"`
		Values []struct {
			Value any `json:"value"`
		} `json:"values"`
	} `json:"data"`
}

// GetAnalytics reads post insights. Errors yield empty data.
func (c *FacebookClient) GetAnalytics(ctx context.Context, postID string) AnalyticsData {
	query := url.Values{}
	query.Set("metric", "post_impressions,post_impressions_unique,post_clicks,post_reactions_like_total,post_activity_by_action_type")
	query.Set("access_token", c.accessToken)

	resp, err := c.api.get(ctx, "get_analytics", "/"+url.PathEscape(postID)+"/insights", query, "")
	if err != nil || !resp.ok() {
		logAnalyticsFailure(Facebook, postID, resp, err)
		return AnalyticsData{}
	}

	var insights facebookInsights
	if err := resp.decode(&insights); err != nil {
		logAnalyticsFailure(Facebook, postID, nil, err)
		return AnalyticsData{}
	}

	var data AnalyticsData
	for _, metric := range insights.Data {
		if len(metric.Values) == 0 {
			continue
		}
		switch v := metric.Values[0].Value.(type) {
		case float64:
			n := Int64(int64(v))
			switch metric.Name {
			case "post_impressions":
				data.Impressions = n
			case "post_impressions_unique":
				data.Reach = n
			case "post_clicks":
				data.Clicks = n
			case "post_reactions_like_total":
				data.Likes = n
			}
		case map[string]any:
			if metric.Name != "post_activity_by_action_type" {
				continue
			}
			if n, ok := v["comment"].(float64); ok {
				data.Comments = Int64(int64(n))
			}
			if n, ok := v["share"].(float64); ok {
				data.Shares = Int64(int64(n))
			}
		}
	}
	return data.withEngagementRate()
}

type facebookToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// RefreshToken exchanges a token for a long-lived one.
func (c *FacebookClient) RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error) {
	if c.clientID == "" || c.clientSecret == "" {
		return nil, &ValidationError{Platform: Facebook, Field: "app credentials", Message: "app id and secret are required for token exchange"}
	}

	query := url.Values{}
	query.Set("grant_type", "fb_exchange_token")
	query.Set("client_id", c.clientID)
	query.Set("client_secret", c.clientSecret)
	query.Set("fb_exchange_token", refreshToken)

	resp, err := c.api.get(ctx, "refresh_token", "/oauth/access_token", query, "")
	if err != nil {
		return nil, fmt.Errorf("facebook: exchange token: %w", err)
	}
	if !resp.ok() {
		return nil, &APIError{Platform: Facebook, Operation: "exchange token", StatusCode: resp.StatusCode, Message: resp.message()}
	}

	var tok facebookToken
	if err := resp.decode(&tok); err != nil {
		return nil, fmt.Errorf("facebook: %w", err)
	}
	return &TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.AccessToken,
		ExpiresAt:    expiresAt(tok.ExpiresIn),
	}, nil
}
