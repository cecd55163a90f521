package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mastrohq/mastro/internal/model"
)

// ErrHistoryNotFound indicates no download history row with the given id.
var ErrHistoryNotFound = errors.New("download history not found")

// historyListLimit caps how many rows a single listing returns.
const historyListLimit = 100

// GetHistory retrieves a download history record by id.
func (r *Repository) GetHistory(ctx context.Context, id string) (*model.DownloadHistory, error) {
	query := `
		SELECT id, user_id, file_name, mastering_target, storage_path, created_at, expires_at
		FROM download_history
		WHERE id = $1
	`

	record, err := scanHistory(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrHistoryNotFound
		}
		return nil, fmt.Errorf("failed to get download history: %w", err)
	}

	return record, nil
}

// ListHistoryByUser returns the caller's download history, newest first,
// capped at 100 rows.
func (r *Repository) ListHistoryByUser(ctx context.Context, userID string) ([]*model.DownloadHistory, error) {
	query := `
		SELECT id, user_id, file_name, mastering_target, storage_path, created_at, expires_at
		FROM download_history
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, historyListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list download history: %w", err)
	}
	defer rows.Close()

	var records []*model.DownloadHistory
	for rows.Next() {
		record, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan download history: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating download history: %w", err)
	}

	return records, nil
}

// InsertHistory inserts a completed-delivery record.
// Called by the delivery finalizer after a mastered file is produced.
func (r *Repository) InsertHistory(ctx context.Context, record *model.DownloadHistory) error {
	query := `
		INSERT INTO download_history (id, user_id, file_name, mastering_target, storage_path, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		record.ID,
		record.UserID,
		record.FileName,
		record.MasteringTarget,
		record.StoragePath,
		record.CreatedAt,
		record.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert download history: %w", err)
	}

	return nil
}

// scanHistory scans a single row into a DownloadHistory model.
func scanHistory(row pgx.Row) (*model.DownloadHistory, error) {
	var record model.DownloadHistory
	err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.FileName,
		&record.MasteringTarget,
		&record.StoragePath,
		&record.CreatedAt,
		&record.ExpiresAt,
	)
	return &record, err
}
