// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"encoding/json"
	"time"
)

// ErrorResponse is the error body shape shared by all handlers.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// EntitlementResponse answers the entitlement check.
// Remaining is omitted for admins (unbounded access).
type EntitlementResponse struct {
	Allowed   bool   `json:"allowed"`
	Remaining *int64 `json:"remaining,omitempty"`
	Admin     bool   `json:"admin,omitempty"`
}

// ConsumeResponse answers a credit consumption.
type ConsumeResponse struct {
	Consumed  bool   `json:"consumed"`
	Allowed   bool   `json:"allowed"`
	Remaining *int64 `json:"remaining,omitempty"`
	Admin     bool   `json:"admin,omitempty"`
}

// CheckoutRequest is the request body for creating a checkout session.
// Amount uses json.Number so a fractional amount is rejected rather than
// silently truncated.
type CheckoutRequest struct {
	AmountCents json.Number `json:"amount"`
	TokenCount  int64       `json:"tokenCount,omitempty"`
}

// CheckoutResponse returns the hosted checkout session.
type CheckoutResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

// WebhookAck acknowledges a processed webhook delivery.
type WebhookAck struct {
	Received bool `json:"received"`
}

// HistoryEntry is one download history row in API responses.
type HistoryEntry struct {
	ID              string     `json:"id"`
	FileName        string     `json:"file_name"`
	MasteringTarget string     `json:"mastering_target"`
	CreatedAt       time.Time  `json:"created_at"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	Redownloadable  bool       `json:"redownloadable"`
}

// HistoryListResponse wraps the caller's download history.
type HistoryListResponse struct {
	History []HistoryEntry `json:"history"`
}

// RedownloadResponse returns a presigned download URL.
type RedownloadResponse struct {
	URL           string `json:"url"`
	SuggestedName string `json:"suggested_name"`
}

// SignupNotifyResponse answers the signup notification endpoint.
type SignupNotifyResponse struct {
	Notified bool `json:"notified"`
	Already  bool `json:"already,omitempty"`
}
