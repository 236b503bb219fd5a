package db

import (
	"context"
	"database/sql"
	"time"
)

const accountColumns = `id, user_id, platform, platform_user_id, username, access_token,
	refresh_token, token_expires_at, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (Account, error) {
	var a Account
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Platform,
		&a.PlatformUserID,
		&a.Username,
		&a.AccessToken,
		&a.RefreshToken,
		&a.TokenExpiresAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

const createAccount = `
INSERT INTO accounts (
	id, user_id, platform, platform_user_id, username, access_token,
	refresh_token, token_expires_at, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + accountColumns

type CreateAccountParams struct {
	ID             string
	UserID         string
	Platform       string
	PlatformUserID sql.NullString
	Username       sql.NullString
	AccessToken    string
	RefreshToken   sql.NullString
	TokenExpiresAt sql.NullTime
	CreatedAt      time.Time
}

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (Account, error) {
	row := q.db.QueryRowContext(ctx, createAccount,
		arg.ID,
		arg.UserID,
		arg.Platform,
		arg.PlatformUserID,
		arg.Username,
		arg.AccessToken,
		arg.RefreshToken,
		arg.TokenExpiresAt,
		arg.CreatedAt,
		arg.CreatedAt,
	)
	return scanAccount(row)
}

const getAccount = `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`

func (q *Queries) GetAccount(ctx context.Context, id string) (Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx, getAccount, id))
}

const listAccounts = `SELECT ` + accountColumns + ` FROM accounts ORDER BY platform, created_at`

func (q *Queries) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := q.db.QueryContext(ctx, listAccounts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateAccountTokens = `
UPDATE accounts
SET access_token = ?, refresh_token = ?, token_expires_at = ?, updated_at = ?
WHERE id = ?`

type UpdateAccountTokensParams struct {
	ID             string
	AccessToken    string
	RefreshToken   sql.NullString
	TokenExpiresAt sql.NullTime
	UpdatedAt      time.Time
}

func (q *Queries) UpdateAccountTokens(ctx context.Context, arg UpdateAccountTokensParams) error {
	_, err := q.db.ExecContext(ctx, updateAccountTokens,
		arg.AccessToken,
		arg.RefreshToken,
		arg.TokenExpiresAt,
		arg.UpdatedAt,
		arg.ID,
	)
	return err
}

const updateAccountProfile = `
UPDATE accounts SET platform_user_id = ?, username = ?, updated_at = ? WHERE id = ?`

type UpdateAccountProfileParams struct {
	ID             string
	PlatformUserID sql.NullString
	Username       sql.NullString
	UpdatedAt      time.Time
}

func (q *Queries) UpdateAccountProfile(ctx context.Context, arg UpdateAccountProfileParams) error {
	_, err := q.db.ExecContext(ctx, updateAccountProfile,
		arg.PlatformUserID,
		arg.Username,
		arg.UpdatedAt,
		arg.ID,
	)
	return err
}

const deleteAccount = `DELETE FROM accounts WHERE id = ?`

func (q *Queries) DeleteAccount(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, deleteAccount, id)
	return err
}
