package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mastrohq/mastro/internal/model"
)

// Common errors for download token operations.
var (
	// ErrNoToken indicates no qualifying download token exists.
	ErrNoToken = errors.New("no download token found")
	// ErrTokenGone indicates the targeted token row no longer exists.
	// A concurrent consume won the race for that specific credit.
	ErrTokenGone = errors.New("download token already consumed")
)

// InsertToken inserts a new download token row.
func (r *Repository) InsertToken(ctx context.Context, token *model.DownloadToken) error {
	query := `
		INSERT INTO download_tokens (id, user_id, paid, file_name, mastering_target, amount_cents, stripe_session_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		token.ID,
		token.UserID,
		token.Paid,
		token.FileName,
		token.MasteringTarget,
		token.AmountCents,
		token.StripeSessionID,
		token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert download token: %w", err)
	}

	return nil
}

// CountPaidTokens counts the caller's remaining paid download tokens.
func (r *Repository) CountPaidTokens(ctx context.Context, userID string) (int64, error) {
	query := `SELECT COUNT(*) FROM download_tokens WHERE user_id = $1 AND paid = TRUE`

	var count int64
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count download tokens: %w", err)
	}

	return count, nil
}

// OldestPaidToken returns the caller's oldest paid token.
// Ordering by (created_at, id) keeps selection deterministic when several
// tokens share a creation timestamp.
func (r *Repository) OldestPaidToken(ctx context.Context, userID string) (*model.DownloadToken, error) {
	query := `
		SELECT id, user_id, paid, file_name, mastering_target, amount_cents, stripe_session_id, created_at
		FROM download_tokens
		WHERE user_id = $1 AND paid = TRUE
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`

	var token model.DownloadToken
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&token.ID,
		&token.UserID,
		&token.Paid,
		&token.FileName,
		&token.MasteringTarget,
		&token.AmountCents,
		&token.StripeSessionID,
		&token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoToken
		}
		return nil, fmt.Errorf("failed to select oldest token: %w", err)
	}

	return &token, nil
}

// DeleteToken removes a single token by primary key.
// Scoping the delete to the id guarantees at most one row is removed even
// if concurrent inserts added qualifying rows between select and delete.
// Zero rows affected means a concurrent consume already took this token.
func (r *Repository) DeleteToken(ctx context.Context, id string) error {
	query := `DELETE FROM download_tokens WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete download token: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrTokenGone
	}

	return nil
}
