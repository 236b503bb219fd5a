package db

import (
	"context"
	"database/sql"
	"time"
)

const publicationColumns = `id, post_id, account_id, platform, success, platform_post_id,
	platform_post_url, error, metadata, attempt, created_at`

func scanPublication(row interface{ Scan(...any) error }) (Publication, error) {
	var p Publication
	err := row.Scan(
		&p.ID,
		&p.PostID,
		&p.AccountID,
		&p.Platform,
		&p.Success,
		&p.PlatformPostID,
		&p.PlatformPostURL,
		&p.Error,
		&p.Metadata,
		&p.Attempt,
		&p.CreatedAt,
	)
	return p, err
}

const createPublication = `
INSERT INTO publications (
	post_id, account_id, platform, success, platform_post_id,
	platform_post_url, error, metadata, attempt, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + publicationColumns

type CreatePublicationParams struct {
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

func (q *Queries) CreatePublication(ctx context.Context, arg CreatePublicationParams) (Publication, error) {
	row := q.db.QueryRowContext(ctx, createPublication,
		arg.PostID,
		arg.AccountID,
		arg.Platform,
		arg.Success,
		arg.PlatformPostID,
		arg.PlatformPostURL,
		arg.Error,
		arg.Metadata,
		arg.Attempt,
		arg.CreatedAt,
	)
	return scanPublication(row)
}

const getSuccessfulPublication = `
SELECT ` + publicationColumns + ` FROM publications
WHERE post_id = ? AND platform = ? AND success = 1
ORDER BY created_at DESC, id DESC
LIMIT 1`

// GetSuccessfulPublication returns the latest successful publish of a post
// on a platform.
func (q *Queries) GetSuccessfulPublication(ctx context.Context, postID, platform string) (Publication, error) {
	return scanPublication(q.db.QueryRowContext(ctx, getSuccessfulPublication, postID, platform))
}

const listRecentPublications = `
SELECT ` + publicationColumns + ` FROM publications
ORDER BY created_at DESC, id DESC
LIMIT ?`

func (q *Queries) ListRecentPublications(ctx context.Context, limit int64) ([]Publication, error) {
	rows, err := q.db.QueryContext(ctx, listRecentPublications, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Publication
	for rows.Next() {
		p, err := scanPublication(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countPublicationsByPlatform = `
SELECT platform,
	COUNT(*) AS total,
	COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0) AS succeeded
FROM publications
GROUP BY platform
ORDER BY platform`

type CountPublicationsByPlatformRow struct {
	Platform  string
	Total     int64
	Succeeded int64
}

func (q *Queries) CountPublicationsByPlatform(ctx context.Context) ([]CountPublicationsByPlatformRow, error) {
	rows, err := q.db.QueryContext(ctx, countPublicationsByPlatform)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []CountPublicationsByPlatformRow
	for rows.Next() {
		var i CountPublicationsByPlatformRow
		if err := rows.Scan(&i.Platform, &i.Total, &i.Succeeded); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
