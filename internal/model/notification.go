package model

import "time"

// SignupNotification marks that the admin has been notified about a new
// user. Existence of the row is the idempotency guard; the unique key on
// UserID makes concurrent first-time signups safe.
type SignupNotification struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
