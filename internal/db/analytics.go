package db

import (
	"context"
	"database/sql"
	"time"
)

const snapshotColumns = `id, post_id, account_id, platform, platform_post_id, impressions, reach,
	likes, comments, shares, clicks, saves, engagement_rate, collected_at`

func scanSnapshot(row interface{ Scan(...any) error }) (AnalyticsSnapshot, error) {
	var s AnalyticsSnapshot
	err := row.Scan(
		&s.ID,
		&s.PostID,
		&s.AccountID,
		&s.Platform,
		&s.PlatformPostID,
		&s.Impressions,
		&s.Reach,
		&s.Likes,
		&s.Comments,
		&s.Shares,
		&s.Clicks,
		&s.Saves,
		&s.EngagementRate,
		&s.CollectedAt,
	)
	return s, err
}

const createAnalyticsSnapshot = `
INSERT INTO analytics_snapshots (
	post_id, account_id, platform, platform_post_id, impressions, reach,
	likes, comments, shares, clicks, saves, engagement_rate, collected_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + snapshotColumns

type CreateAnalyticsSnapshotParams struct {
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

func (q *Queries) CreateAnalyticsSnapshot(ctx context.Context, arg CreateAnalyticsSnapshotParams) (AnalyticsSnapshot, error) {
	row := q.db.QueryRowContext(ctx, createAnalyticsSnapshot,
		arg.PostID,
		arg.AccountID,
		arg.Platform,
		arg.PlatformPostID,
		arg.Impressions,
		arg.Reach,
		arg.Likes,
		arg.Comments,
		arg.Shares,
		arg.Clicks,
		arg.Saves,
		arg.EngagementRate,
		arg.CollectedAt,
	)
	return scanSnapshot(row)
}

const listAnalyticsSnapshots = `
SELECT ` + snapshotColumns + ` FROM analytics_snapshots
WHERE post_id = ? AND platform = ?
ORDER BY collected_at, id`

func (q *Queries) ListAnalyticsSnapshots(ctx context.Context, postID, platform string) ([]AnalyticsSnapshot, error) {
	rows, err := q.db.QueryContext(ctx, listAnalyticsSnapshots, postID, platform)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []AnalyticsSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countAnalyticsSnapshots = `SELECT COUNT(*) FROM analytics_snapshots`

func (q *Queries) CountAnalyticsSnapshots(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countAnalyticsSnapshots).Scan(&count)
	return count, err
}
