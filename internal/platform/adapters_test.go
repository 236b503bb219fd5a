package platform

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstagramClient_PublishPost(t *testing.T) {
	t.Run("empty media fails before any call", func(t *testing.T) {
		server, calls := countingServer(t, nil)
		client := NewInstagramClient("token", Options{BaseURL: server.URL})

		result, err := client.PublishPost(t.Context(), PostContent{Text: "caption"})

		var validation *ValidationError
		require.ErrorAs(t, err, &validation)
		assert.Equal(t, "media", validation.Field)
		require.NotNil(t, result)
		assert.False(t, result.Success)
		assert.NotEmpty(t, result.Error)
		assert.Equal(t, int32(0), atomic.LoadInt32(calls))
	})

	t.Run("containers created in order then first is published", func(t *testing.T) {
		var (
			mu        sync.Mutex
			images    []string
			published string
		)
		server, calls := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "token", r.PostForm.Get("access_token"))

			mu.Lock()
			defer mu.Unlock()
			switch r.URL.Path {
			case "/me/media":
				images = append(images, r.PostForm.Get("image_url"))
				assert.Equal(t, "caption", r.PostForm.Get("caption"))
				json.NewEncoder(w).Encode(map[string]string{"id": "container-" + r.PostForm.Get("image_url")})
			case "/me/media_publish":
				published = r.PostForm.Get("creation_id")
				json.NewEncoder(w).Encode(map[string]string{"id": "media-1"})
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		})
		client := NewInstagramClient("token", Options{BaseURL: server.URL})

		result, err := client.PublishPost(t.Context(), PostContent{
			Text:      "caption",
			MediaURLs: []string{"a", "b", "c"},
		})
		require.NoError(t, err)
		require.True(t, result.Success)
		assert.Equal(t, "media-1", result.PlatformPostID)
		assert.Equal(t, "https://www.instagram.com/p/media-1", result.PlatformPostURL)
		assert.Equal(t, []string{"container-a", "container-b", "container-c"}, result.Metadata["containerIds"])

		assert.Equal(t, []string{"a", "b", "c"}, images)
		assert.Equal(t, "container-a", published)
		assert.Equal(t, int32(4), atomic.LoadInt32(calls))
	})

	t.Run("container failure stops the protocol", func(t *testing.T) {
		server, calls := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"Invalid image"}}`))
		})
		client := NewInstagramClient("token", Options{BaseURL: server.URL})

		result, err := client.PublishPost(t.Context(), PostContent{MediaURLs: []string{"a", "b"}})
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "Invalid image")
		assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	})
}

func TestInstagramClient_GetAnalytics(t *testing.T) {
	server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/media-1/insights", r.URL.Path)
		w.Write([]byte(`{"data":[
			{"name":"impressions","values":[{"value":200}]},
			{"name":"reach","values":[{"value":150}]},
			{"name":"likes","values":[{"value":10}]},
			{"name":"comments","values":[{"value":5}]},
			{"name":"shares","values":[{"value":2}]},
			{"name":"saved","values":[{"value":3}]}
		]}`))
	})
	client := NewInstagramClient("token", Options{BaseURL: server.URL})

	data := client.GetAnalytics(t.Context(), "media-1")
	require.NotNil(t, data.EngagementRate)
	assert.InDelta(t, 10.0, *data.EngagementRate, 1e-9)
	assert.Equal(t, int64(150), *data.Reach)
	assert.Equal(t, int64(3), *data.Saves)
	assert.Nil(t, data.Clicks)
}

func TestInstagramClient_GetProfile(t *testing.T) {
	server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me", r.URL.Path)
		assert.Equal(t, "token", r.URL.Query().Get("access_token"))
		w.Write([]byte(`{"id":"17841","username":"pilot","account_type":"BUSINESS","followers_count":42}`))
	})
	client := NewInstagramClient("token", Options{BaseURL: server.URL})

	profile, err := client.GetProfile(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "17841", profile.PlatformUserID)
	assert.Equal(t, "https://www.instagram.com/pilot", profile.ProfileURL)
	assert.Equal(t, int64(42), *profile.FollowerCount)
	assert.Nil(t, profile.PostsCount)
}

func TestLinkedInClient_PublishPost(t *testing.T) {
	t.Run("fresh instance requires a resolved profile", func(t *testing.T) {
		server, calls := countingServer(t, nil)
		client := NewLinkedInClient("token", Options{BaseURL: server.URL})

		result, err := client.PublishPost(t.Context(), PostContent{Text: "hello"})
		require.ErrorIs(t, err, ErrProfileNotResolved)
		assert.True(t, IsPermanent(err))
		assert.False(t, result.Success)
		assert.Equal(t, int32(0), atomic.LoadInt32(calls))
	})

	t.Run("profile fetch resolves the author", func(t *testing.T) {
		var post ugcPost
		server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
			switch r.URL.Path {
			case "/v2/people/(id:~)":
				w.Write([]byte(`{"id":"abc","localizedFirstName":"Ada","localizedLastName":"Lovelace"}`))
			case "/v2/ugcPosts":
				require.NoError(t, json.NewDecoder(r.Body).Decode(&post))
				w.Header().Set("X-RestLi-Id", "urn:li:share:1")
				w.WriteHeader(http.StatusCreated)
			}
		})
		client := NewLinkedInClient("token", Options{BaseURL: server.URL})

		profile, err := client.GetProfile(t.Context())
		require.NoError(t, err)
		assert.Equal(t, "Ada Lovelace", profile.DisplayName)

		result, err := client.PublishPost(t.Context(), PostContent{Text: "hello"})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, "urn:li:share:1", result.PlatformPostID)
		assert.Equal(t, "urn:li:person:abc", post.Author)
		assert.Equal(t, "NONE", post.SpecificContent.ShareContent.ShareMediaCategory)
		assert.Empty(t, post.SpecificContent.ShareContent.Media)
	})

	t.Run("media sets image category", func(t *testing.T) {
		var post ugcPost
		server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&post))
			w.Write([]byte(`{"id":"urn:li:share:2"}`))
		})
		client := NewLinkedInClient("token", Options{BaseURL: server.URL, PlatformUserID: "abc"})

		result, err := client.PublishPost(t.Context(), PostContent{Text: "look", MediaURLs: []string{"https://cdn/x.png"}})
		require.NoError(t, err)
		assert.Equal(t, "urn:li:share:2", result.PlatformPostID)
		assert.Equal(t, "IMAGE", post.SpecificContent.ShareContent.ShareMediaCategory)
		require.Len(t, post.SpecificContent.ShareContent.Media, 1)
		assert.Equal(t, "https://cdn/x.png", post.SpecificContent.ShareContent.Media[0].OriginalURL)
	})
}

func TestLinkedInClient_RefreshToken(t *testing.T) {
	server, calls := countingServer(t, nil)
	client := NewLinkedInClient("token", Options{BaseURL: server.URL})

	tok, err := client.RefreshToken(t.Context(), "refresh")
	assert.Nil(t, tok)
	assert.True(t, errors.Is(err, ErrReauthenticationRequired))

	var capability *UnsupportedCapabilityError
	require.ErrorAs(t, err, &capability)
	assert.Equal(t, LinkedIn, capability.Platform)
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestFacebookClient_PublishPost(t *testing.T) {
	var form map[string][]string
	server, calls := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/feed", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Write([]byte(`{"id":"123_456"}`))
	})
	client := NewFacebookClient("token", Options{BaseURL: server.URL})

	result, err := client.PublishPost(t.Context(), PostContent{
		Text:      "hello",
		MediaURLs: []string{"https://one", "https://two", "https://three"},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "https://www.facebook.com/123_456", result.PlatformPostURL)
	assert.Equal(t, []string{"https://one"}, form["link"])
	assert.Equal(t, 2, result.Metadata["ignoredMediaCount"])
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestFacebookClient_RefreshToken(t *testing.T) {
	t.Run("requires app credentials", func(t *testing.T) {
		client := NewFacebookClient("token", Options{})
		_, err := client.RefreshToken(t.Context(), "short-lived")
		var validation *ValidationError
		assert.ErrorAs(t, err, &validation)
	})

	t.Run("exchanges token", func(t *testing.T) {
		server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "fb_exchange_token", q.Get("grant_type"))
			assert.Equal(t, "app", q.Get("client_id"))
			w.Write([]byte(`{"access_token":"long-lived","expires_in":5184000}`))
		})
		client := NewFacebookClient("token", Options{BaseURL: server.URL, ClientID: "app", ClientSecret: "secret"})

		tok, err := client.RefreshToken(t.Context(), "short-lived")
		require.NoError(t, err)
		assert.Equal(t, "long-lived", tok.AccessToken)
		assert.NotNil(t, tok.ExpiresAt)
	})

	t.Run("vendor error", func(t *testing.T) {
		server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"expired"}}`))
		})
		client := NewFacebookClient("token", Options{BaseURL: server.URL, ClientID: "app", ClientSecret: "secret"})

		_, err := client.RefreshToken(t.Context(), "short-lived")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	})
}

func TestTwitterClient(t *testing.T) {
	t.Run("media urls are appended as links", func(t *testing.T) {
		var body map[string]string
		server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"data":{"id":"99","text":"x"}}`))
		})
		client := NewTwitterClient("token", Options{BaseURL: server.URL})

		result, err := client.PublishPost(t.Context(), PostContent{Text: "launch", MediaURLs: []string{"https://img"}})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, "launch https://img", body["text"])
		assert.Equal(t, "https://x.com/i/web/status/99", result.PlatformPostURL)
	})

	t.Run("analytics maps public metrics", func(t *testing.T) {
		server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "public_metrics", r.URL.Query().Get("tweet.fields"))
			w.Write([]byte(`{"data":{"public_metrics":{"retweet_count":1,"quote_count":1,"reply_count":5,"like_count":10,"bookmark_count":3,"impression_count":200}}}`))
		})
		client := NewTwitterClient("token", Options{BaseURL: server.URL})

		data := client.GetAnalytics(t.Context(), "99")
		assert.Equal(t, int64(2), *data.Shares)
		require.NotNil(t, data.EngagementRate)
		assert.InDelta(t, 10.0, *data.EngagementRate, 1e-9)
	})

	t.Run("refresh uses basic auth for confidential clients", func(t *testing.T) {
		server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "client", user)
			assert.Equal(t, "secret", pass)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
			w.Write([]byte(`{"access_token":"new","refresh_token":"next","expires_in":7200}`))
		})
		client := NewTwitterClient("token", Options{BaseURL: server.URL, ClientID: "client", ClientSecret: "secret"})

		tok, err := client.RefreshToken(t.Context(), "old")
		require.NoError(t, err)
		assert.Equal(t, "new", tok.AccessToken)
		assert.Equal(t, "next", tok.RefreshToken)
	})

	t.Run("refresh without client id", func(t *testing.T) {
		client := NewTwitterClient("token", Options{})
		_, err := client.RefreshToken(t.Context(), "old")
		assert.True(t, IsPermanent(err))
	})
}

func TestBlueskyClient_PublishPost(t *testing.T) {
	var (
		record  createRecordRequest
		uploads int32
	)
	server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/com.atproto.server.getSession":
			w.Write([]byte(`{"did":"did:plc:xyz","handle":"pilot.bsky.social"}`))
		case "/media/a.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("png-bytes"))
		case "/com.atproto.repo.uploadBlob":
			atomic.AddInt32(&uploads, 1)
			assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
			w.Write([]byte(`{"blob":{"$type":"blob","ref":{"$link":"bafk"},"mimeType":"image/png","size":9}}`))
		case "/com.atproto.repo.createRecord":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&record))
			w.Write([]byte(`{"uri":"at://did:plc:xyz/app.bsky.feed.post/3k2a","cid":"bafy"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	client := NewBlueskyClient("jwt", Options{BaseURL: server.URL})

	result, err := client.PublishPost(t.Context(), PostContent{
		Text:      "hello sky",
		MediaURLs: []string{server.URL + "/media/a.png"},
	})
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "at://did:plc:xyz/app.bsky.feed.post/3k2a", result.PlatformPostID)
	assert.Equal(t, "https://bsky.app/profile/pilot.bsky.social/post/3k2a", result.PlatformPostURL)

	assert.Equal(t, "did:plc:xyz", record.Repo)
	require.NotNil(t, record.Record.Embed)
	assert.Equal(t, "app.bsky.embed.images", record.Record.Embed.Type)
	assert.Len(t, record.Record.Embed.Images, 1)
	assert.Equal(t, int32(1), atomic.LoadInt32(&uploads))
}

func TestBlueskyClient_GetAnalytics(t *testing.T) {
	server, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "at://did/app.bsky.feed.post/1", r.URL.Query().Get("uris"))
		w.Write([]byte(`{"posts":[{"likeCount":4,"repostCount":2,"quoteCount":1,"replyCount":3}]}`))
	})
	client := NewBlueskyClient("jwt", Options{BaseURL: server.URL})

	data := client.GetAnalytics(t.Context(), "at://did/app.bsky.feed.post/1")
	assert.Equal(t, int64(4), *data.Likes)
	assert.Equal(t, int64(3), *data.Shares)
	assert.Equal(t, int64(3), *data.Comments)
	assert.Nil(t, data.EngagementRate)
}

func TestSplitURI(t *testing.T) {
	tests := []struct {
		uri      string
		expected []string
	}{
		{"at://did:plc:xyz/app.bsky.feed.post/abc123", []string{"did:plc:xyz", "app.bsky.feed.post", "abc123"}},
		{"did:plc:xyz/collection/rkey", []string{"did:plc:xyz", "collection", "rkey"}},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			assert.Equal(t, tt.expected, splitURI(tt.uri))
		})
	}
}
