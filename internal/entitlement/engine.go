// Package entitlement decides whether a caller may perform a gated
// download and consumes one purchased credit per download.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mastrohq/mastro/internal/model"
	"github.com/mastrohq/mastro/internal/repository"
)

// ErrNoCredits indicates the caller has no download credits left.
var ErrNoCredits = errors.New("no download credits remaining")

// consumeAttempts bounds how often Consume re-selects after losing a
// delete race. Each lost race means another request consumed that exact
// credit; the caller may still own more.
const consumeAttempts = 3

// Store is the persistence surface the engine needs.
// Implementations must return repository.ErrNoToken when no qualifying
// token exists and repository.ErrTokenGone when a delete affects zero rows.
type Store interface {
	CountPaidTokens(ctx context.Context, userID string) (int64, error)
	OldestPaidToken(ctx context.Context, userID string) (*model.DownloadToken, error)
	DeleteToken(ctx context.Context, id string) error
}

// AdminDirectory answers allow-list membership questions.
type AdminDirectory interface {
	IsAdminEmail(ctx context.Context, email string) (bool, error)
}

// Decision is the read-only answer to "may this caller download right now".
// Remaining is nil for admins (unbounded).
type Decision struct {
	Allowed   bool
	Admin     bool
	Remaining *int64
}

// Consumption is the result of spending one credit.
// Remaining is nil for admins, who never deplete inventory.
type Consumption struct {
	Consumed  bool
	Allowed   bool
	Admin     bool
	Remaining *int64
}

// Engine implements the entitlement check/consume operations.
// It holds no state of its own; the store is the single source of truth,
// so re-running Check never double-decrements and Consume mutates only by
// deleting a specific row.
type Engine struct {
	store  Store
	admins AdminDirectory
	logger *slog.Logger
}

// NewEngine creates an entitlement engine.
func NewEngine(store Store, admins AdminDirectory, logger *slog.Logger) *Engine {
	return &Engine{
		store:  store,
		admins: admins,
		logger: logger.With("component", "entitlement"),
	}
}

// Check reports whether the identity may download and how many credits
// remain. Admin identities bypass the token count entirely. Read-only.
// A store failure surfaces as an error, never as a denial.
func (e *Engine) Check(ctx context.Context, id model.Identity) (Decision, error) {
	admin, err := e.isAdmin(ctx, id)
	if err != nil {
		return Decision{}, err
	}
	if admin {
		return Decision{Allowed: true, Admin: true}, nil
	}

	count, err := e.store.CountPaidTokens(ctx, id.ID)
	if err != nil {
		return Decision{}, fmt.Errorf("check entitlement: %w", err)
	}

	return Decision{Allowed: count > 0, Remaining: &count}, nil
}

// Consume spends exactly one of the identity's credits: select the oldest
// paid token, delete it by primary key, then re-count what is left. The
// delete-by-id plus rows-affected check makes two concurrent consumes of
// the same credit mutually exclusive; the loser re-selects against the
// remaining inventory a bounded number of times.
func (e *Engine) Consume(ctx context.Context, id model.Identity) (Consumption, error) {
	admin, err := e.isAdmin(ctx, id)
	if err != nil {
		return Consumption{}, err
	}
	if admin {
		return Consumption{Consumed: false, Allowed: true, Admin: true}, nil
	}

	for attempt := 1; attempt <= consumeAttempts; attempt++ {
		token, err := e.store.OldestPaidToken(ctx, id.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNoToken) {
				zero := int64(0)
				return Consumption{Consumed: false, Allowed: false, Remaining: &zero}, ErrNoCredits
			}
			return Consumption{}, fmt.Errorf("consume credit: %w", err)
		}

		err = e.store.DeleteToken(ctx, token.ID)
		if errors.Is(err, repository.ErrTokenGone) {
			// Lost the race for this credit; try the next-oldest.
			e.logger.Warn("credit consumed concurrently, retrying",
				slog.String("user_id", id.ID),
				slog.String("token_id", token.ID),
				slog.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			// Select succeeded but delete failed: do not report a
			// consumption that was not confirmed by the store.
			return Consumption{}, fmt.Errorf("consume credit: %w", err)
		}

		// Re-count instead of decrementing so the reported balance is
		// store truth, not derived state.
		remaining, err := e.store.CountPaidTokens(ctx, id.ID)
		if err != nil {
			return Consumption{}, fmt.Errorf("recount credits: %w", err)
		}

		e.logger.Info("download credit consumed",
			slog.String("user_id", id.ID),
			slog.String("token_id", token.ID),
			slog.Int64("remaining", remaining),
		)

		return Consumption{Consumed: true, Allowed: true, Remaining: &remaining}, nil
	}

	return Consumption{}, fmt.Errorf("consume credit: lost %d consecutive races", consumeAttempts)
}

// isAdmin resolves allow-list membership for the identity's email.
// Identities without an email claim are never admins.
func (e *Engine) isAdmin(ctx context.Context, id model.Identity) (bool, error) {
	if !id.HasEmail() {
		return false, nil
	}

	admin, err := e.admins.IsAdminEmail(ctx, id.Email)
	if err != nil {
		return false, fmt.Errorf("admin lookup: %w", err)
	}
	return admin, nil
}
