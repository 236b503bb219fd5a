package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdulachik/socialpilot/internal/db"
	"github.com/abdulachik/socialpilot/internal/generator"
	"github.com/abdulachik/socialpilot/internal/notify"
	"github.com/abdulachik/socialpilot/internal/platform"
	"github.com/abdulachik/socialpilot/internal/queue"
)

func newTestStore(t *testing.T) *db.Store {
	t.Helper()
	ctx := context.Background()
	store, err := db.NewStore(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { store.Close() })
	return store
}

// fakeX serves the subset of the X API the handlers use.
type fakeX struct {
	mu          sync.Mutex
	calls       int32
	publishCode int
	bearers     []string
	texts       []string
}

func (f *fakeX) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /2/tweets", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.calls, 1)
		var body struct {
			Text string `json:"text"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		f.mu.Lock()
		f.bearers = append(f.bearers, r.Header.Get("Authorization"))
		f.texts = append(f.texts, body.Text)
		code := f.publishCode
		f.mu.Unlock()

		if code != 0 {
			w.WriteHeader(code)
			w.Write([]byte(`{"title":"Service Unavailable","detail":"try later"}`))
			return
		}
		w.Write([]byte(`{"data":{"id":"t-1","text":"ok"}}`))
	})
	mux.HandleFunc("GET /2/tweets/{id}", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.calls, 1)
		if r.PathValue("id") != "t-1" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"title":"Not Found"}`))
			return
		}
		w.Write([]byte(`{"data":{"public_metrics":{"retweet_count":2,"reply_count":5,"like_count":10,"quote_count":0,"bookmark_count":3,"impression_count":200}}}`))
	})
	mux.HandleFunc("POST /2/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.calls, 1)
		assert.Equal(t, "refresh_token", r.FormValue("grant_type"))
		assert.Equal(t, "old-refresh", r.FormValue("refresh_token"))
		w.Write([]byte(`{"access_token":"new-token","refresh_token":"new-refresh","expires_in":7200}`))
	})
	return mux
}

type recordingNotifier struct {
	sent []notify.Notification
}

func (r *recordingNotifier) Send(_ context.Context, n notify.Notification) error {
	r.sent = append(r.sent, n)
	return nil
}

type handlerEnv struct {
	store    *db.Store
	client   *Client
	x        *fakeX
	notifier *recordingNotifier
	handlers *Handlers
	server   *httptest.Server
}

func newHandlerEnv(t *testing.T, gen *generator.Generator) *handlerEnv {
	t.Helper()
	env := &handlerEnv{
		store:    newTestStore(t),
		x:        &fakeX{},
		notifier: &recordingNotifier{},
	}
	env.client, _, _ = newTestClient(t)
	env.server = httptest.NewServer(env.x.handler(t))
	t.Cleanup(env.server.Close)

	env.handlers = NewHandlers(HandlerConfig{
		Store:     env.store,
		Client:    env.client,
		Generator: gen,
		Notifier:  env.notifier,
		ClientOptions: func(platform.Platform) []platform.ClientOption {
			return []platform.ClientOption{
				platform.WithBaseURL(env.server.URL),
				platform.WithAppCredentials("client-id", ""),
			}
		},
		AnalyticsDelay: time.Hour,
	})
	return env
}

func (e *handlerEnv) addAccount(t *testing.T, id, p string, mutate func(*db.CreateAccountParams)) {
	t.Helper()
	params := db.CreateAccountParams{
		ID:          id,
		UserID:      "u1",
		Platform:    p,
		AccessToken: "token",
		CreatedAt:   time.Now().UTC(),
	}
	if mutate != nil {
		mutate(&params)
	}
	_, err := e.store.CreateAccount(context.Background(), params)
	require.NoError(t, err)
}

func jobFor(t *testing.T, queueName string, data any) *queue.Job {
	t.Helper()
	payload, err := json.Marshal(data)
	require.NoError(t, err)
	return &queue.Job{ID: "job-1", Queue: queueName, Data: payload, Attempts: 3, AttemptsMade: 1}
}

func tweetData() PostSchedulingJobData {
	return PostSchedulingJobData{
		PostID:    "p1",
		UserID:    "u1",
		AccountID: "acc-x",
		Platform:  "twitter",
		Content:   "Big news today",
		Hashtags:  []string{"launch"},
	}
}

func TestHandlers_PublishPost(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes, records and schedules analytics", func(t *testing.T) {
		env := newHandlerEnv(t, nil)
		env.addAccount(t, "acc-x", "twitter", nil)

		err := env.handlers.PublishPost(ctx, jobFor(t, PostScheduling, tweetData()))
		require.NoError(t, err)

		assert.Equal(t, []string{"Big news today\n\n#launch"}, env.x.texts)
		assert.Equal(t, []string{"Bearer token"}, env.x.bearers)

		pub, err := env.store.GetSuccessfulPublication(ctx, "p1", "twitter")
		require.NoError(t, err)
		assert.Equal(t, "t-1", pub.PlatformPostID.String)
		assert.Equal(t, "https://x.com/i/web/status/t-1", pub.PlatformPostURL.String)

		counts, err := env.client.Counts(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts[Analytics][queue.StateDelayed])
	})

	t.Run("already published posts are not sent again", func(t *testing.T) {
		env := newHandlerEnv(t, nil)
		env.addAccount(t, "acc-x", "twitter", nil)

		require.NoError(t, env.handlers.PublishPost(ctx, jobFor(t, PostScheduling, tweetData())))
		require.NoError(t, env.handlers.PublishPost(ctx, jobFor(t, PostScheduling, tweetData())))
		assert.Equal(t, int32(1), atomic.LoadInt32(&env.x.calls))
	})

	t.Run("vendor failure is retryable", func(t *testing.T) {
		env := newHandlerEnv(t, nil)
		env.addAccount(t, "acc-x", "twitter", nil)
		env.x.publishCode = http.StatusServiceUnavailable

		err := env.handlers.PublishPost(ctx, jobFor(t, PostScheduling, tweetData()))
		require.Error(t, err)
		assert.False(t, queue.IsPermanent(err))
		assert.Contains(t, err.Error(), "status 503")

		recent, err := env.store.ListRecentPublications(ctx, 10)
		require.NoError(t, err)
		require.Len(t, recent, 1)
		assert.False(t, recent[0].Success)
		assert.Equal(t, int64(1), recent[0].Attempt)

		counts, err := env.client.Counts(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), counts[Analytics][queue.StateDelayed])
	})

	t.Run("validation failure is permanent and skips the network", func(t *testing.T) {
		env := newHandlerEnv(t, nil)
		env.addAccount(t, "acc-ig", "instagram", nil)

		data := tweetData()
		data.AccountID = "acc-ig"
		data.Platform = "instagram"

		err := env.handlers.PublishPost(ctx, jobFor(t, PostScheduling, data))
		require.Error(t, err)
		assert.True(t, queue.IsPermanent(err))
		assert.Equal(t, int32(0), atomic.LoadInt32(&env.x.calls))
	})

	t.Run("unknown account is permanent", func(t *testing.T) {
		env := newHandlerEnv(t, nil)

		err := env.handlers.PublishPost(ctx, jobFor(t, PostScheduling, tweetData()))
		require.Error(t, err)
		assert.True(t, queue.IsPermanent(err))
	})

	t.Run("platform mismatch is permanent", func(t *testing.T) {
		env := newHandlerEnv(t, nil)
		env.addAccount(t, "acc-x", "bluesky", nil)

		err := env.handlers.PublishPost(ctx, jobFor(t, PostScheduling, tweetData()))
		require.Error(t, err)
		assert.True(t, queue.IsPermanent(err))
	})

	t.Run("expired token is refreshed first", func(t *testing.T) {
		env := newHandlerEnv(t, nil)
		env.addAccount(t, "acc-x", "twitter", func(p *db.CreateAccountParams) {
			p.RefreshToken = sql.NullString{String: "old-refresh", Valid: true}
			p.TokenExpiresAt = sql.NullTime{Time: time.Now().Add(-time.Hour).UTC(), Valid: true}
		})

		require.NoError(t, env.handlers.PublishPost(ctx, jobFor(t, PostScheduling, tweetData())))
		assert.Equal(t, []string{"Bearer new-token"}, env.x.bearers)

		account, err := env.store.GetAccount(ctx, "acc-x")
		require.NoError(t, err)
		assert.Equal(t, "new-token", account.AccessToken)
		assert.Equal(t, "new-refresh", account.RefreshToken.String)
		assert.True(t, account.TokenExpiresAt.Time.After(time.Now()))
	})

	t.Run("refresh on a platform without refresh is permanent", func(t *testing.T) {
		env := newHandlerEnv(t, nil)
		env.addAccount(t, "acc-li", "linkedin", func(p *db.CreateAccountParams) {
			p.PlatformUserID = sql.NullString{String: "abc", Valid: true}
			p.RefreshToken = sql.NullString{String: "old-refresh", Valid: true}
			p.TokenExpiresAt = sql.NullTime{Time: time.Now().Add(-time.Hour).UTC(), Valid: true}
		})

		data := tweetData()
		data.AccountID = "acc-li"
		data.Platform = "linkedin"

		err := env.handlers.PublishPost(ctx, jobFor(t, PostScheduling, data))
		require.Error(t, err)
		assert.True(t, queue.IsPermanent(err))
		assert.ErrorIs(t, err, platform.ErrReauthenticationRequired)
	})
}

func TestHandlers_CollectAnalytics(t *testing.T) {
	ctx := context.Background()

	t.Run("stores the snapshot", func(t *testing.T) {
		env := newHandlerEnv(t, nil)
		env.addAccount(t, "acc-x", "twitter", nil)

		err := env.handlers.CollectAnalytics(ctx, jobFor(t, Analytics, AnalyticsJobData{
			PostID: "p1", AccountID: "acc-x", Platform: "twitter", PlatformPostID: "t-1",
		}))
		require.NoError(t, err)

		snapshots, err := env.store.ListAnalyticsSnapshots(ctx, "p1", "twitter")
		require.NoError(t, err)
		require.Len(t, snapshots, 1)
		assert.Equal(t, int64(10), snapshots[0].Likes.Int64)
		assert.Equal(t, int64(200), snapshots[0].Impressions.Int64)
		assert.InDelta(t, 10.0, snapshots[0].EngagementRate.Float64, 0.0001)
	})

	t.Run("vendor error stores an empty snapshot", func(t *testing.T) {
		env := newHandlerEnv(t, nil)
		env.addAccount(t, "acc-x", "twitter", nil)

		err := env.handlers.CollectAnalytics(ctx, jobFor(t, Analytics, AnalyticsJobData{
			PostID: "p1", AccountID: "acc-x", Platform: "twitter", PlatformPostID: "missing",
		}))
		require.NoError(t, err)

		snapshots, err := env.store.ListAnalyticsSnapshots(ctx, "p1", "twitter")
		require.NoError(t, err)
		require.Len(t, snapshots, 1)
		assert.False(t, snapshots[0].Likes.Valid)
		assert.False(t, snapshots[0].EngagementRate.Valid)
	})
}

func TestHandlers_GenerateContent(t *testing.T) {
	ctx := context.Background()

	t.Run("without a generator the job fails permanently", func(t *testing.T) {
		env := newHandlerEnv(t, nil)

		err := env.handlers.GenerateContent(ctx, jobFor(t, AIGeneration, AIGenerationJobData{Platform: "twitter", Prompt: "hi"}))
		require.Error(t, err)
		assert.True(t, queue.IsPermanent(err))
	})

	t.Run("stores the generation", func(t *testing.T) {
		llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"id":"msg","model":"claude-test","content":[{"type":"text","text":"{\"content\":\"Ship it. What are you launching this week?\",\"hashtags\":[\"launch\"]}"}],"usage":{"input_tokens":50,"output_tokens":20}}`))
		}))
		defer llm.Close()
		gen := generator.New(generator.NewClaudeClient(generator.ClaudeConfig{APIKey: "k", BaseURL: llm.URL}))
		env := newHandlerEnv(t, gen)

		err := env.handlers.GenerateContent(ctx, jobFor(t, AIGeneration, AIGenerationJobData{UserID: "u1", Platform: "twitter", Prompt: "launch week"}))
		require.NoError(t, err)

		gens, err := env.store.ListGenerationsByUser(ctx, "u1", 10)
		require.NoError(t, err)
		require.Len(t, gens, 1)
		assert.Equal(t, "job-1", gens[0].JobID)
		assert.Equal(t, "Ship it. What are you launching this week?", gens[0].Content)
		assert.Equal(t, "launch", gens[0].Hashtags.String)
		assert.Equal(t, "claude-test", gens[0].Model)
		assert.Equal(t, int64(50), gens[0].InputTokens)
	})

	t.Run("unsupported platform fails permanently", func(t *testing.T) {
		gen := generator.New(generator.NewClaudeClient(generator.ClaudeConfig{APIKey: "k", BaseURL: "http://127.0.0.1:1"}))
		env := newHandlerEnv(t, gen)

		err := env.handlers.GenerateContent(ctx, jobFor(t, AIGeneration, AIGenerationJobData{Platform: "myspace", Prompt: "hi"}))
		require.Error(t, err)
		assert.True(t, queue.IsPermanent(err))
	})
}

func TestHandlers_Workers(t *testing.T) {
	env := newHandlerEnv(t, nil)
	assert.Len(t, env.handlers.Workers(env.client.Queues(), queue.WorkerOptions{}), 2)

	gen := generator.New(generator.NewClaudeClient(generator.ClaudeConfig{APIKey: "k"}))
	withGen := NewHandlers(HandlerConfig{Store: env.store, Generator: gen})
	assert.Len(t, withGen.Workers(env.client.Queues(), queue.WorkerOptions{}), 3)
}

func TestHandlers_OnFailed(t *testing.T) {
	env := newHandlerEnv(t, nil)
	job := &queue.Job{ID: "post-p1-twitter", Queue: PostScheduling, Name: JobPublishPost, Attempts: 3, AttemptsMade: 3}

	env.handlers.OnFailed(context.Background(), job, queue.Permanent(assert.AnError))

	require.Len(t, env.notifier.sent, 1)
	n := env.notifier.sent[0]
	assert.Equal(t, "post-scheduling job post-p1-twitter failed", n.Subject)
	assert.Equal(t, "3/3", n.Fields["attempts"])
	assert.Equal(t, "true", n.Fields["permanent"])
}

func TestHandlers_EndToEnd(t *testing.T) {
	ctx := context.Background()
	env := newHandlerEnv(t, nil)
	env.addAccount(t, "acc-x", "twitter", nil)

	job, err := env.client.SchedulePost(ctx, tweetData())
	require.NoError(t, err)
	require.NotNil(t, job)

	workers := env.handlers.Workers(env.client.Queues(), queue.WorkerOptions{})
	handled, err := workers[0].ProcessNext(ctx)
	require.NoError(t, err)
	require.True(t, handled)

	done, err := env.client.Queues().PostScheduling.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StateCompleted, done.State)
}
