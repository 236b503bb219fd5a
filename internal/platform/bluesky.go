package platform

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	blueskyBaseURL = "https://bsky.social/xrpc"
	maxBlobSize    = 1 << 20
)

// BlueskyClient posts to Bluesky via the AT Protocol using a session
// access JWT.
type BlueskyClient struct {
	api         apiClient
	media       *http.Client
	accessToken string

	mu     sync.Mutex
	did    string
	handle string
}

// NewBlueskyClient creates a Bluesky adapter. WithPlatformUserID can supply
// the repo DID; otherwise it is resolved from the session on first publish.
func NewBlueskyClient(accessToken string, opts Options) *BlueskyClient {
	api := newAPIClient(Bluesky, blueskyBaseURL, opts)
	return &BlueskyClient{
		api:         api,
		media:       api.httpClient,
		accessToken: accessToken,
		did:         opts.PlatformUserID,
	}
}

// Platform returns the platform name.
func (b *BlueskyClient) Platform() Platform {
	return Bluesky
}

type blueskySession struct {
	DID    string `json:"did"`
	Handle string `json:"handle"`
	Email  string `json:"email"`
}

type blueskyProfile struct {
	DID            string `json:"did"`
	Handle         string `json:"handle"`
	DisplayName    string `json:"displayName"`
	Description    string `json:"description"`
	Avatar         string `json:"avatar"`
	FollowersCount *int64 `json:"followersCount"`
	FollowsCount   *int64 `json:"followsCount"`
	PostsCount     *int64 `json:"postsCount"`
}

func (b *BlueskyClient) session(ctx context.Context) (*blueskySession, error) {
	resp, err := b.api.get(ctx, "get_session", "/com.atproto.server.getSession", nil, b.accessToken)
	if err != nil {
		return nil, fmt.Errorf("bluesky: get session: %w", err)
	}
	if !resp.ok() {
		return nil, &ProfileFetchError{Platform: Bluesky, StatusCode: resp.StatusCode, Message: resp.message()}
	}

	var s blueskySession
	if err := resp.decode(&s); err != nil {
		return nil, fmt.Errorf("bluesky: %w", err)
	}

	b.mu.Lock()
	b.did = s.DID
	b.handle = s.Handle
	b.mu.Unlock()

	slog.Debug("resolved Bluesky session", "handle", s.Handle, "did", s.DID)
	return &s, nil
}

// GetProfile resolves the session and then reads the actor profile.
func (b *BlueskyClient) GetProfile(ctx context.Context) (*SocialProfile, error) {
	s, err := b.session(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("actor", s.DID)

	resp, err := b.api.get(ctx, "get_profile", "/app.bsky.actor.getProfile", query, b.accessToken)
	if err != nil {
		return nil, fmt.Errorf("bluesky: fetch profile: %w", err)
	}
	if !resp.ok() {
		return nil, &ProfileFetchError{Platform: Bluesky, StatusCode: resp.StatusCode, Message: resp.message()}
	}

	var p blueskyProfile
	if err := resp.decode(&p); err != nil {
		return nil, fmt.Errorf("bluesky: %w", err)
	}

	return &SocialProfile{
		PlatformUserID: p.DID,
		Username:       p.Handle,
		DisplayName:    p.DisplayName,
		Email:          s.Email,
		AvatarURL:      p.Avatar,
		ProfileURL:     "https://bsky.app/profile/" + p.Handle,
		FollowerCount:  p.FollowersCount,
		FollowingCount: p.FollowsCount,
		PostsCount:     p.PostsCount,
		PlatformData:   map[string]any{"description": p.Description},
	}, nil
}

type blobRef struct {
	Type     string         `json:"$type"`
	Ref      map[string]any `json:"ref"`
	MimeType string         `json:"mimeType"`
	Size     int64          `json:"size"`
}

type postImage struct {
	Alt   string  `json:"alt"`
	Image blobRef `json:"image"`
}

type imagesEmbed struct {
	Type   string      `json:"$type"`
	Images []postImage `json:"images"`
}

type postRecord struct {
	Type      string       `json:"$type"`
	Text      string       `json:"text"`
	CreatedAt string       `json:"createdAt"`
	Langs     []string     `json:"langs,omitempty"`
	Embed     *imagesEmbed `json:"embed,omitempty"`
}

type createRecordRequest struct {
	Repo       string     `json:"repo"`
	Collection string     `json:"collection"`
	Record     postRecord `json:"record"`
}

type createRecordResponse struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// PublishPost uploads each media URL as a blob, in order, then creates the
// post record with an images embed.
func (b *BlueskyClient) PublishPost(ctx context.Context, content PostContent) (*PublishResult, error) {
	b.mu.Lock()
	did, handle := b.did, b.handle
	b.mu.Unlock()

	if did == "" {
		s, err := b.session(ctx)
		if err != nil {
			return Failed(err.Error()), nil
		}
		did, handle = s.DID, s.Handle
	}

	record := postRecord{
		Type:      "app.bsky.feed.post",
		Text:      content.Text,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Langs:     []string{"en"},
	}

	if len(content.MediaURLs) > 0 {
		embed := &imagesEmbed{Type: "app.bsky.embed.images"}
		for _, mediaURL := range content.MediaURLs {
			blob, err := b.uploadBlob(ctx, mediaURL)
			if err != nil {
				slog.Warn("bluesky blob upload failed", "media_url", mediaURL, "error", err)
				return Failed(fmt.Sprintf("upload media: %v", err)), nil
			}
			embed.Images = append(embed.Images, postImage{Image: *blob})
		}
		record.Embed = embed
	}

	resp, err := b.api.postJSON(ctx, "publish", "/com.atproto.repo.createRecord", createRecordRequest{
		Repo:       did,
		Collection: "app.bsky.feed.post",
		Record:     record,
	}, b.accessToken)
	if err != nil {
		return Failed(fmt.Sprintf("create record: %v", err)), nil
	}
	if !resp.ok() {
		slog.Warn("bluesky publish failed", "status", resp.StatusCode)
		return Failed(fmt.Sprintf("create record (status %d): %s", resp.StatusCode, resp.message())), nil
	}

	var created createRecordResponse
	if err := resp.decode(&created); err != nil {
		return Failed(err.Error()), nil
	}
	if created.URI == "" {
		return Failed("create record: response missing uri"), nil
	}

	// at://did:plc:xxx/app.bsky.feed.post/rkey -> https://bsky.app/profile/handle/post/rkey
	postURL := ""
	if parts := splitURI(created.URI); len(parts) >= 3 {
		profile := handle
		if profile == "" {
			profile = did
		}
		postURL = fmt.Sprintf("https://bsky.app/profile/%s/post/%s", profile, parts[len(parts)-1])
	}

	slog.Info("published to Bluesky", "uri", created.URI, "url", postURL)

	return Published(created.URI, postURL, map[string]any{"cid": created.CID}), nil
}

// uploadBlob downloads a media URL and stores it as a repo blob.
func (b *BlueskyClient) uploadBlob(ctx context.Context, mediaURL string) (*blobRef, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create media request: %w", err)
	}
	resp, err := b.media.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download media: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBlobSize+1))
	if err != nil {
		return nil, fmt.Errorf("read media: %w", err)
	}
	if len(data) > maxBlobSize {
		return nil, fmt.Errorf("media exceeds %d bytes", maxBlobSize)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	upload, err := b.api.do(ctx, apiRequest{
		operation:   "upload_blob",
		method:      http.MethodPost,
		path:        "/com.atproto.repo.uploadBlob",
		body:        bytes.NewReader(data),
		contentType: mimeType,
		bearer:      b.accessToken,
	})
	if err != nil {
		return nil, err
	}
	if !upload.ok() {
		return nil, fmt.Errorf("upload blob (status %d): %s", upload.StatusCode, upload.message())
	}

	var out struct {
		Blob blobRef `json:"blob"`
	}
	if err := upload.decode(&out); err != nil {
		return nil, err
	}
	return &out.Blob, nil
}

type blueskyPosts struct {
	Posts []struct {
		URI         string `json:"uri"`
		LikeCount   *int64 `json:"likeCount"`
		RepostCount *int64 `json:"repostCount"`
		QuoteCount  *int64 `json:"quoteCount"`
		ReplyCount  *int64 `json:"replyCount"`
	} `json:"posts"`
}

// GetAnalytics reads the post view counters. Bluesky exposes no impressions,
// so the engagement rate is never computed. Errors yield empty data.
func (b *BlueskyClient) GetAnalytics(ctx context.Context, postID string) AnalyticsData {
	query := url.Values{}
	query.Set("uris", postID)

	resp, err := b.api.get(ctx, "get_analytics", "/app.bsky.feed.getPosts", query, b.accessToken)
	if err != nil || !resp.ok() {
		logAnalyticsFailure(Bluesky, postID, resp, err)
		return AnalyticsData{}
	}

	var posts blueskyPosts
	if err := resp.decode(&posts); err != nil || len(posts.Posts) == 0 {
		logAnalyticsFailure(Bluesky, postID, nil, err)
		return AnalyticsData{}
	}

	p := posts.Posts[0]
	data := AnalyticsData{
		Likes:    p.LikeCount,
		Comments: p.ReplyCount,
	}
	if p.RepostCount != nil || p.QuoteCount != nil {
		var shares int64
		if p.RepostCount != nil {
			shares += *p.RepostCount
		}
		if p.QuoteCount != nil {
			shares += *p.QuoteCount
		}
		data.Shares = Int64(shares)
	}
	return data.withEngagementRate()
}

type refreshSessionResponse struct {
	DID        string `json:"did"`
	Handle     string `json:"handle"`
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
}

// RefreshToken rotates the session. The refresh JWT is sent as the bearer.
func (b *BlueskyClient) RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error) {
	resp, err := b.api.do(ctx, apiRequest{
		operation: "refresh_token",
		method:    http.MethodPost,
		path:      "/com.atproto.server.refreshSession",
		bearer:    refreshToken,
	})
	if err != nil {
		return nil, fmt.Errorf("bluesky: refresh session: %w", err)
	}
	if !resp.ok() {
		return nil, &APIError{Platform: Bluesky, Operation: "refresh session", StatusCode: resp.StatusCode, Message: resp.message()}
	}

	var s refreshSessionResponse
	if err := resp.decode(&s); err != nil {
		return nil, fmt.Errorf("bluesky: %w", err)
	}
	return &TokenSet{
		AccessToken:  s.AccessJwt,
		RefreshToken: s.RefreshJwt,
	}, nil
}

// splitURI splits an AT Protocol URI into its non-empty path parts.
func splitURI(uri string) []string {
	uri = strings.TrimPrefix(uri, "at://")
	var parts []string
	for _, part := range strings.Split(uri, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}
