package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/mastrohq/mastro/internal/model"
)

var (
	// ErrInvalidSignature indicates the webhook payload failed signature
	// verification. No store access happens on this path.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMissingUser indicates a completed payment arrived without the
	// user correlation attached at checkout-creation time. The caller
	// must answer with a server error so the provider retries; silently
	// acknowledging would lose a purchased credit.
	ErrMissingUser = errors.New("completed payment has no user correlation")
)

const checkoutCompleted = "checkout.session.completed"

// CreditStore is the write surface the reconciler needs.
type CreditStore interface {
	InsertToken(ctx context.Context, token *model.DownloadToken) error
}

// Reconciler turns verified checkout-completed events into download
// credits. It is the sole credit-issuing path.
type Reconciler struct {
	store  CreditStore
	secret string
	logger *slog.Logger
}

// NewReconciler creates a Reconciler with the webhook endpoint secret.
func NewReconciler(store CreditStore, secret string, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		secret: secret,
		logger: logger.With("component", "reconciler"),
	}
}

// Configured reports whether a webhook secret is present.
func (r *Reconciler) Configured() bool {
	return r.secret != ""
}

// HandleEvent verifies and processes one webhook delivery.
// Irrelevant event types return nil so the provider's retry loop is not
// tripped by events this service does not care about. Success is only
// reported after the credit insert commits; duplicate deliveries of an
// already-committed event are de-duplicated by the provider's own event
// ids, not locally.
func (r *Reconciler) HandleEvent(ctx context.Context, payload []byte, sigHeader string) error {
	if !r.Configured() {
		return ErrNotConfigured
	}

	event, err := webhook.ConstructEvent(payload, sigHeader, r.secret)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if event.Type != checkoutCompleted {
		r.logger.Debug("ignoring webhook event", slog.String("type", string(event.Type)))
		return nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("decode checkout session: %w", err)
	}

	userID := sess.ClientReferenceID
	if userID == "" {
		userID = sess.Metadata["user_id"]
	}
	if userID == "" {
		return fmt.Errorf("%w: event %s", ErrMissingUser, event.ID)
	}

	token := &model.DownloadToken{
		ID:              ulid.Make().String(),
		UserID:          userID,
		Paid:            true,
		FileName:        sess.Metadata["file_name"],
		MasteringTarget: sess.Metadata["mastering_target"],
		AmountCents:     sess.AmountTotal,
		StripeSessionID: sess.ID,
		CreatedAt:       time.Now().UTC(),
	}

	if err := r.store.InsertToken(ctx, token); err != nil {
		return fmt.Errorf("credit download token: %w", err)
	}

	r.logger.Info("download credit issued",
		slog.String("user_id", userID),
		slog.String("token_id", token.ID),
		slog.String("session_id", sess.ID),
		slog.Int64("amount_cents", sess.AmountTotal),
	)

	return nil
}
