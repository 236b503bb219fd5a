package jobs

import (
	"fmt"
	"time"
)

// PostSchedulingJobData is the payload of a delayed publish.
type PostSchedulingJobData struct {
	PostID       string    `json:"postId"`
	UserID       string    `json:"userId"`
	AccountID    string    `json:"accountId"`
	Platform     string    `json:"platform"`
	Content      string    `json:"content"`
	MediaURLs    []string  `json:"mediaUrls,omitempty"`
	Hashtags     []string  `json:"hashtags,omitempty"`
	ScheduledFor time.Time `json:"scheduledFor"`
}

// JobID is the dedupe key of the publish: one job per post and platform.
func (d PostSchedulingJobData) JobID() string {
	return fmt.Sprintf("post-%s-%s", d.PostID, d.Platform)
}

// AnalyticsJobData is the payload of an analytics collection.
type AnalyticsJobData struct {
	PostID         string `json:"postId"`
	UserID         string `json:"userId"`
	AccountID      string `json:"accountId"`
	Platform       string `json:"platform"`
	PlatformPostID string `json:"platformPostId"`
}

// AIGenerationJobData is the payload of an AI content generation.
type AIGenerationJobData struct {
	UserID   string `json:"userId"`
	Platform string `json:"platform"`
	Prompt   string `json:"prompt"`
	Tone     string `json:"tone,omitempty"`
}
