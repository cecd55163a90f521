// Package download gates re-downloads of previously delivered masters
// behind ownership and expiry checks.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mastrohq/mastro/internal/model"
)

var (
	// ErrNotFound indicates no history record with the given id.
	ErrNotFound = errors.New("history record not found")
	// ErrNotOwner indicates the caller does not own the record.
	ErrNotOwner = errors.New("history record owned by another user")
	// ErrWindowExpired indicates the re-download window has closed or
	// never applied to this record.
	ErrWindowExpired = errors.New("re-download window expired")
)

// ContentType is the audio format produced by the mastering pipeline.
const ContentType = "audio/wav"

// Mode selects how the gated file is delivered.
type Mode string

const (
	// ModeURL answers with a short-lived presigned URL.
	ModeURL Mode = "url"
	// ModeStream answers with the stored bytes directly.
	ModeStream Mode = "stream"
)

// HistoryStore is the read surface the gateway needs.
// Implementations must return repository.ErrHistoryNotFound semantics via
// an error the gateway's lookup wrapper recognizes.
type HistoryStore interface {
	GetHistory(ctx context.Context, id string) (*model.DownloadHistory, error)
}

// ObjectStore serves stored masters, either presigned or streamed.
type ObjectStore interface {
	PresignDownload(ctx context.Context, objectPath, fileName string, ttl time.Duration) (string, error)
	Open(ctx context.Context, objectPath string) (io.ReadCloser, error)
}

// Result is a resolved re-download. Exactly one of URL and Body is set,
// matching the requested Mode.
type Result struct {
	SuggestedName string
	URL           string
	Body          io.ReadCloser
}

// Gateway enforces the re-download invariants in a fixed order:
// existence, ownership, window, then storage.
type Gateway struct {
	history    HistoryStore
	objects    ObjectStore
	notFoundFn func(error) bool
	urlTTL     time.Duration
	now        func() time.Time
}

// NewGateway creates a Gateway. notFound classifies the history store's
// missing-row error; urlTTL bounds presigned URL lifetime.
func NewGateway(history HistoryStore, objects ObjectStore, notFound func(error) bool, urlTTL time.Duration) *Gateway {
	return &Gateway{
		history:    history,
		objects:    objects,
		notFoundFn: notFound,
		urlTTL:     urlTTL,
		now:        time.Now,
	}
}

// Resolve checks the caller's right to re-download the history record and
// returns either a presigned URL or an open byte stream.
// The ownership check always precedes any storage access, and the expiry
// boundary is strict: a record expiring exactly now is already gone.
func (g *Gateway) Resolve(ctx context.Context, id model.Identity, historyID string, mode Mode) (*Result, error) {
	record, err := g.history.GetHistory(ctx, historyID)
	if err != nil {
		if g.notFoundFn != nil && g.notFoundFn(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup history: %w", err)
	}

	if record.UserID != id.ID {
		return nil, ErrNotOwner
	}

	if !record.Redownloadable(g.now()) {
		return nil, ErrWindowExpired
	}

	name := record.SuggestedFileName()

	switch mode {
	case ModeStream:
		body, err := g.objects.Open(ctx, record.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("open stored master: %w", err)
		}
		return &Result{SuggestedName: name, Body: body}, nil
	default:
		url, err := g.objects.PresignDownload(ctx, record.StoragePath, name, g.urlTTL)
		if err != nil {
			return nil, fmt.Errorf("presign stored master: %w", err)
		}
		return &Result{SuggestedName: name, URL: url}, nil
	}
}
