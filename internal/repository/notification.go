package repository

import (
	"context"
	"fmt"
	"time"
)

// ClaimSignupNotification inserts the signup-notification marker for the
// user if absent. Returns true when this call created the marker, false
// when the user was already claimed. The primary key on user_id resolves
// concurrent first-time signups at the store; there is no check-then-insert
// gap to race through.
func (r *Repository) ClaimSignupNotification(ctx context.Context, userID string) (bool, error) {
	query := `
		INSERT INTO notified_signups (user_id, created_at)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`

	result, err := r.pool.Exec(ctx, query, userID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to claim signup notification: %w", err)
	}

	return result.RowsAffected() == 1, nil
}
