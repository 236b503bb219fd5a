package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/abdulachik/socialpilot/internal/content"
	"github.com/abdulachik/socialpilot/internal/db"
	"github.com/abdulachik/socialpilot/internal/generator"
	"github.com/abdulachik/socialpilot/internal/metrics"
	"github.com/abdulachik/socialpilot/internal/notify"
	"github.com/abdulachik/socialpilot/internal/platform"
	"github.com/abdulachik/socialpilot/internal/queue"
)

// tokenLeeway refreshes tokens that expire within this window of a publish.
const tokenLeeway = 5 * time.Minute

// HandlerConfig holds the collaborators of the job handlers.
type HandlerConfig struct {
	Store *db.Store
	// Client enqueues the analytics follow-up of a publish. May be nil.
	Client *Client
	// Generator serves the ai-generation queue. May be nil when no API key
	// is configured; generation jobs then fail permanently.
	Generator *generator.Generator
	Notifier  notify.Notifier
	// ClientOptions returns the adapter options of a platform (app
	// credentials, timeouts, base URLs in tests).
	ClientOptions  func(p platform.Platform) []platform.ClientOption
	AnalyticsDelay time.Duration
	Now            func() time.Time
}

// Handlers run the jobs of the three queues.
type Handlers struct {
	cfg HandlerConfig
}

// NewHandlers creates the handlers.
func NewHandlers(cfg HandlerConfig) *Handlers {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ClientOptions == nil {
		cfg.ClientOptions = func(platform.Platform) []platform.ClientOption { return nil }
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.NewLogNotifier(nil)
	}
	return &Handlers{cfg: cfg}
}

// Workers returns one worker per queue. The ai-generation worker is left out
// when no generator is configured.
func (h *Handlers) Workers(q *Queues, opts queue.WorkerOptions) []*queue.Worker {
	opts.OnFailed = h.OnFailed
	workers := []*queue.Worker{
		queue.NewWorker(q.PostScheduling, h.PublishPost, opts),
		queue.NewWorker(q.Analytics, h.CollectAnalytics, opts),
	}
	if h.cfg.Generator != nil {
		workers = append(workers, queue.NewWorker(q.AIGeneration, h.GenerateContent, opts))
	} else {
		slog.Warn("ai-generation consumer disabled", "reason", "no generator configured")
	}
	return workers
}

// PublishPost handles a post-scheduling job.
func (h *Handlers) PublishPost(ctx context.Context, job *queue.Job) error {
	var data PostSchedulingJobData
	if err := job.Decode(&data); err != nil {
		return queue.Permanent(err)
	}
	result, err := h.Publish(ctx, data, job.AttemptsMade)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("publish %s to %s: %s", data.PostID, data.Platform, result.Error)
	}
	return nil
}

// Publish runs one publish attempt for data and records its outcome. It is
// shared by the post-scheduling handler and immediate publishes from the CLI.
// A failed result with a nil error is retryable; errors marked with
// queue.Permanent are not.
func (h *Handlers) Publish(ctx context.Context, data PostSchedulingJobData, attempt int) (*platform.PublishResult, error) {
	store := h.cfg.Store
	p := platform.Platform(data.Platform)

	if prev, err := store.GetSuccessfulPublication(ctx, data.PostID, data.Platform); err == nil {
		slog.Info("post already published, skipping",
			"post_id", data.PostID,
			"platform", data.Platform,
			"platform_post_id", prev.PlatformPostID.String,
		)
		return platform.Published(prev.PlatformPostID.String, prev.PlatformPostURL.String, nil), nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check previous publication: %w", err)
	}

	account, adapter, err := h.adapter(ctx, data.AccountID, p)
	if err != nil {
		return nil, err
	}

	post := platform.PostContent{
		Text:      content.Compose(data.Content, data.Hashtags),
		MediaURLs: data.MediaURLs,
		Metadata:  map[string]any{"postId": data.PostID},
	}

	var result *platform.PublishResult
	if err := platform.CheckPost(p, post); err != nil {
		result = platform.Failed(err.Error())
		h.record(ctx, data, account, result, attempt, "rejected")
		return result, queue.Permanent(err)
	}

	result, err = adapter.PublishPost(ctx, post)
	if err != nil {
		h.record(ctx, data, account, result, attempt, "rejected")
		return result, queue.Permanent(err)
	}

	if !result.Success {
		h.record(ctx, data, account, result, attempt, "failed")
		slog.Warn("publish failed",
			"post_id", data.PostID,
			"platform", data.Platform,
			"attempt", attempt,
			"error", result.Error,
		)
		return result, nil
	}

	h.record(ctx, data, account, result, attempt, "published")
	slog.Info("post published",
		"post_id", data.PostID,
		"platform", data.Platform,
		"platform_post_id", result.PlatformPostID,
		"url", result.PlatformPostURL,
	)

	if _, err := h.cfg.Client.CollectAnalytics(ctx, AnalyticsJobData{
		PostID:         data.PostID,
		UserID:         data.UserID,
		AccountID:      account.ID,
		Platform:       data.Platform,
		PlatformPostID: result.PlatformPostID,
	}, h.cfg.AnalyticsDelay); err != nil {
		slog.Warn("analytics follow-up not scheduled", "post_id", data.PostID, "error", err)
	}
	return result, nil
}

func (h *Handlers) record(ctx context.Context, data PostSchedulingJobData, account db.Account, result *platform.PublishResult, attempt int, outcome string) {
	metrics.PublishTotal.WithLabelValues(data.Platform, outcome).Inc()

	params := db.CreatePublicationParams{
		PostID:    data.PostID,
		AccountID: account.ID,
		Platform:  data.Platform,
		Success:   result.Success,
		Attempt:   int64(max(attempt, 1)),
		CreatedAt: h.cfg.Now().UTC(),
	}
	if result.Success {
		params.PlatformPostID = nullString(result.PlatformPostID)
		params.PlatformPostURL = nullString(result.PlatformPostURL)
	} else {
		params.Error = nullString(result.Error)
	}
	if len(result.Metadata) > 0 {
		if b, err := json.Marshal(result.Metadata); err == nil {
			params.Metadata = nullString(string(b))
		}
	}

	if _, err := h.cfg.Store.CreatePublication(ctx, params); err != nil {
		slog.Error("failed to record publication", "post_id", data.PostID, "platform", data.Platform, "error", err)
	}
}

// adapter loads the account and builds its adapter, refreshing an expired
// token first.
func (h *Handlers) adapter(ctx context.Context, accountID string, p platform.Platform) (db.Account, platform.Adapter, error) {
	account, err := h.cfg.Store.GetAccount(ctx, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return account, nil, queue.Permanent(fmt.Errorf("account %s not found", accountID))
	}
	if err != nil {
		return account, nil, fmt.Errorf("get account: %w", err)
	}
	if account.Platform != p.String() {
		return account, nil, queue.Permanent(fmt.Errorf("account %s is a %s account, not %s", accountID, account.Platform, p))
	}

	adapter, err := h.newAdapter(account, account.AccessToken)
	if err != nil {
		return account, nil, queue.Permanent(err)
	}

	if !account.TokenExpired(h.cfg.Now(), tokenLeeway) || !account.RefreshToken.Valid {
		return account, adapter, nil
	}

	tokens, err := adapter.RefreshToken(ctx, account.RefreshToken.String)
	if err != nil {
		if platform.IsPermanent(err) || errors.Is(err, platform.ErrReauthenticationRequired) {
			return account, nil, queue.Permanent(fmt.Errorf("refresh %s token: %w", p, err))
		}
		return account, nil, fmt.Errorf("refresh %s token: %w", p, err)
	}

	params := db.UpdateAccountTokensParams{
		ID:           account.ID,
		AccessToken:  tokens.AccessToken,
		RefreshToken: account.RefreshToken,
		UpdatedAt:    h.cfg.Now().UTC(),
	}
	if tokens.RefreshToken != "" {
		params.RefreshToken = nullString(tokens.RefreshToken)
	}
	if tokens.ExpiresAt != nil {
		params.TokenExpiresAt = sql.NullTime{Time: tokens.ExpiresAt.UTC(), Valid: true}
	}
	if err := h.cfg.Store.UpdateAccountTokens(ctx, params); err != nil {
		return account, nil, fmt.Errorf("save refreshed token: %w", err)
	}
	slog.Info("access token refreshed", "account_id", account.ID, "platform", p)

	account.AccessToken = tokens.AccessToken
	account.RefreshToken = params.RefreshToken
	account.TokenExpiresAt = params.TokenExpiresAt

	adapter, err = h.newAdapter(account, tokens.AccessToken)
	if err != nil {
		return account, nil, queue.Permanent(err)
	}
	return account, adapter, nil
}

func (h *Handlers) newAdapter(account db.Account, token string) (platform.Adapter, error) {
	p := platform.Platform(account.Platform)
	opts := h.cfg.ClientOptions(p)
	if account.PlatformUserID.Valid {
		opts = append(opts, platform.WithPlatformUserID(account.PlatformUserID.String))
	}
	return platform.CreateClient(account.Platform, token, opts...)
}

// CollectAnalytics handles an analytics job. Empty results are stored too,
// so a snapshot row always marks that collection ran.
func (h *Handlers) CollectAnalytics(ctx context.Context, job *queue.Job) error {
	var data AnalyticsJobData
	if err := job.Decode(&data); err != nil {
		return queue.Permanent(err)
	}

	account, adapter, err := h.adapter(ctx, data.AccountID, platform.Platform(data.Platform))
	if err != nil {
		return err
	}

	a := adapter.GetAnalytics(ctx, data.PlatformPostID)
	_, err = h.cfg.Store.CreateAnalyticsSnapshot(ctx, db.CreateAnalyticsSnapshotParams{
		PostID:         data.PostID,
		AccountID:      account.ID,
		Platform:       data.Platform,
		PlatformPostID: data.PlatformPostID,
		Impressions:    nullInt64(a.Impressions),
		Reach:          nullInt64(a.Reach),
		Likes:          nullInt64(a.Likes),
		Comments:       nullInt64(a.Comments),
		Shares:         nullInt64(a.Shares),
		Clicks:         nullInt64(a.Clicks),
		Saves:          nullInt64(a.Saves),
		EngagementRate: nullFloat64(a.EngagementRate),
		CollectedAt:    h.cfg.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("store analytics snapshot: %w", err)
	}

	slog.Info("analytics collected",
		"post_id", data.PostID,
		"platform", data.Platform,
		"empty", a.IsEmpty(),
	)
	return nil
}

// GenerateContent handles an ai-generation job.
func (h *Handlers) GenerateContent(ctx context.Context, job *queue.Job) error {
	var data AIGenerationJobData
	if err := job.Decode(&data); err != nil {
		return queue.Permanent(err)
	}
	_, err := h.Generate(ctx, job.ID, data)
	return err
}

// Generate runs one generation and stores the draft. It is shared by the
// ai-generation handler and synchronous generation from the CLI.
func (h *Handlers) Generate(ctx context.Context, jobID string, data AIGenerationJobData) (*generator.Draft, error) {
	if h.cfg.Generator == nil {
		return nil, queue.Permanent(errors.New("content generation is not configured"))
	}

	draft, err := h.cfg.Generator.Generate(ctx, generator.Request{
		Platform: data.Platform,
		Prompt:   data.Prompt,
		Tone:     data.Tone,
	})
	if platform.IsPermanent(err) {
		return nil, queue.Permanent(err)
	}
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	_, err = h.cfg.Store.CreateGeneration(ctx, db.CreateGenerationParams{
		JobID:        jobID,
		UserID:       data.UserID,
		Platform:     data.Platform,
		Prompt:       data.Prompt,
		Content:      draft.Content,
		Hashtags:     nullString(strings.Join(draft.Hashtags, " ")),
		Model:        draft.Model,
		InputTokens:  int64(draft.InputTokens),
		OutputTokens: int64(draft.OutputTokens),
		CreatedAt:    h.cfg.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("store generation: %w", err)
	}
	return draft, nil
}

// OnFailed notifies the operator of a job that will not be retried.
func (h *Handlers) OnFailed(ctx context.Context, job *queue.Job, err error) {
	n := notify.Notification{
		Subject: fmt.Sprintf("%s job %s failed", job.Queue, job.ID),
		Body:    err.Error(),
		Fields: map[string]string{
			"queue":     job.Queue,
			"job_id":    job.ID,
			"job_name":  job.Name,
			"attempts":  fmt.Sprintf("%d/%d", job.AttemptsMade, job.Attempts),
			"permanent": fmt.Sprint(queue.IsPermanent(err)),
		},
	}
	if sendErr := h.cfg.Notifier.Send(ctx, n); sendErr != nil {
		slog.Error("failed to send notification", "job_id", job.ID, "error", sendErr)
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullFloat64(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
