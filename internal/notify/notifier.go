package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mastrohq/mastro/internal/model"
)

// MarkerStore claims the one-per-user notification marker.
type MarkerStore interface {
	ClaimSignupNotification(ctx context.Context, userID string) (bool, error)
}

// Outcome reports what a Notify call did.
type Outcome struct {
	// Notified is true when this call claimed the marker.
	Notified bool
	// Already is true when an earlier call had claimed it.
	Already bool
}

// SignupNotifier emails the admin once per new user. The marker insert is
// committed before the email attempt, so a delivery failure cannot cause a
// duplicate email later: at-most-once delivery by construction.
type SignupNotifier struct {
	store      MarkerStore
	mailer     Mailer
	adminEmail string
	logger     *slog.Logger
}

// NewSignupNotifier creates a SignupNotifier.
func NewSignupNotifier(store MarkerStore, mailer Mailer, adminEmail string, logger *slog.Logger) *SignupNotifier {
	return &SignupNotifier{
		store:      store,
		mailer:     mailer,
		adminEmail: adminEmail,
		logger:     logger.With("component", "signup_notifier"),
	}
}

// Notify claims the marker for the identity and, on first claim, sends the
// admin email. The store's unique key decides the winner under concurrent
// first-time signups.
func (n *SignupNotifier) Notify(ctx context.Context, id model.Identity) (Outcome, error) {
	claimed, err := n.store.ClaimSignupNotification(ctx, id.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("claim signup notification: %w", err)
	}

	if !claimed {
		return Outcome{Notified: false, Already: true}, nil
	}

	subject := "New signup"
	body := fmt.Sprintf("A new user signed up.\n\nUser ID: %s\nEmail: %s\n", id.ID, id.Email)

	if err := n.mailer.Send(n.adminEmail, subject, body); err != nil {
		// The marker is already committed; failing here would invite a
		// retry that can never send again. Log and report success.
		n.logger.Error("signup notification email failed",
			slog.String("user_id", id.ID),
			slog.String("error", err.Error()),
		)
	}

	return Outcome{Notified: true}, nil
}
