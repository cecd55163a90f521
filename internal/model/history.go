package model

import (
	"path"
	"strings"
	"time"
)

// masteredExtension is the audio format produced by the mastering pipeline.
const masteredExtension = ".wav"

// DownloadHistory records one completed delivery of a mastered track.
// Rows are immutable; after ExpiresAt the file is no longer retrievable.
type DownloadHistory struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	FileName        string     `json:"file_name"`
	MasteringTarget string     `json:"mastering_target"`
	StoragePath     string     `json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}

// Redownloadable reports whether the record can still be served at now.
// A record without a storage path or expiry never had a re-download window.
// The boundary is strict: exactly at expiry counts as expired.
func (h *DownloadHistory) Redownloadable(now time.Time) bool {
	if h.StoragePath == "" || h.ExpiresAt == nil {
		return false
	}
	return now.Before(*h.ExpiresAt)
}

// SuggestedFileName derives the download filename from the original upload
// name: extension stripped, mastering target appended.
func (h *DownloadHistory) SuggestedFileName() string {
	base := strings.TrimSuffix(h.FileName, path.Ext(h.FileName))
	if base == "" {
		base = "mastered"
	}
	if h.MasteringTarget != "" {
		return base + "_" + h.MasteringTarget + masteredExtension
	}
	return base + masteredExtension
}
