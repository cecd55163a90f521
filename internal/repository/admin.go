package repository

import (
	"context"
	"fmt"
	"strings"
)

// IsAdminEmail reports whether the email is on the admin allow-list.
// Matching is case-insensitive; the allow-list stores lowercased emails.
func (r *Repository) IsAdminEmail(ctx context.Context, email string) (bool, error) {
	if email == "" {
		return false, nil
	}

	query := `SELECT EXISTS(SELECT 1 FROM admin_emails WHERE email = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, strings.ToLower(email)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check admin allow-list: %w", err)
	}

	return exists, nil
}
