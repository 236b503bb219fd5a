package db

import (
	"context"
	"database/sql"
	"time"
)

const generationColumns = `id, job_id, user_id, platform, prompt, content, hashtags, model,
	input_tokens, output_tokens, created_at`

func scanGeneration(row interface{ Scan(...any) error }) (Generation, error) {
	var g Generation
	err := row.Scan(
		&g.ID,
		&g.JobID,
		&g.UserID,
		&g.Platform,
		&g.Prompt,
		&g.Content,
		&g.Hashtags,
		&g.Model,
		&g.InputTokens,
		&g.OutputTokens,
		&g.CreatedAt,
	)
	return g, err
}

const createGeneration = `
INSERT INTO generations (
	job_id, user_id, platform, prompt, content, hashtags, model,
	input_tokens, output_tokens, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + generationColumns

type CreateGenerationParams struct {
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

func (q *Queries) CreateGeneration(ctx context.Context, arg CreateGenerationParams) (Generation, error) {
	row := q.db.QueryRowContext(ctx, createGeneration,
		arg.JobID,
		arg.UserID,
		arg.Platform,
		arg.Prompt,
		arg.Content,
		arg.Hashtags,
		arg.Model,
		arg.InputTokens,
		arg.OutputTokens,
		arg.CreatedAt,
	)
	return scanGeneration(row)
}

const listGenerationsByUser = `
SELECT ` + generationColumns + ` FROM generations
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?`

func (q *Queries) ListGenerationsByUser(ctx context.Context, userID string, limit int64) ([]Generation, error) {
	rows, err := q.db.QueryContext(ctx, listGenerationsByUser, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Generation
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countGenerations = `SELECT COUNT(*) FROM generations`

func (q *Queries) CountGenerations(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countGenerations).Scan(&count)
	return count, err
}
