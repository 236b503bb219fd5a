package db

import (
	"database/sql"
	"time"
)

type Account struct {
	ID             string
	UserID         string
	Platform       string
	PlatformUserID sql.NullString
	Username       sql.NullString
	AccessToken    string
	RefreshToken   sql.NullString
	TokenExpiresAt sql.NullTime
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TokenExpired reports whether the access token expires within leeway of now.
func (a Account) TokenExpired(now time.Time, leeway time.Duration) bool {
	return a.TokenExpiresAt.Valid && !a.TokenExpiresAt.Time.After(now.Add(leeway))
}

type Publication struct {
	ID              int64
	PostID          string
	AccountID       string
	Platform        string
	Success         bool
	PlatformPostID  sql.NullString
	PlatformPostURL sql.NullString
	Error           sql.NullString
	Metadata        sql.NullString
	Attempt         int64
	CreatedAt       time.Time
}

type AnalyticsSnapshot struct {
	ID             int64
	PostID         string
	AccountID      string
	Platform       string
	PlatformPostID string
	Impressions    sql.NullInt64
	Reach          sql.NullInt64
	Likes          sql.NullInt64
	Comments       sql.NullInt64
	Shares         sql.NullInt64
	Clicks         sql.NullInt64
	Saves          sql.NullInt64
	EngagementRate sql.NullFloat64
	CollectedAt    time.Time
}

type Generation struct {
	ID           int64
	JobID        string
	UserID       string
	Platform     string
	Prompt       string
	Content      string
	Hashtags     sql.NullString
	Model        string
	InputTokens  int64
	OutputTokens int64
	CreatedAt    time.Time
}
