package model

import "time"

// DownloadToken represents exactly one consumable download credit.
// A token is created by the payment reconciler when a checkout completes
// and deleted by the entitlement engine when a download is consumed.
type DownloadToken struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Paid            bool      `json:"paid"`
	FileName        string    `json:"file_name,omitempty"`
	MasteringTarget string    `json:"mastering_target,omitempty"`
	AmountCents     int64     `json:"amount_cents,omitempty"`
	StripeSessionID string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
}
