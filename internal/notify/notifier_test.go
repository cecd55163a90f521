package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/mastrohq/mastro/internal/model"
)

// fakeMarkerStore claims at most one marker per user, like the unique key
// in the real table.
type fakeMarkerStore struct {
	mu      sync.Mutex
	claimed map[string]bool
	err     error
}

func (s *fakeMarkerStore) ClaimSignupNotification(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if s.claimed == nil {
		s.claimed = make(map[string]bool)
	}
	if s.claimed[userID] {
		return false, nil
	}
	s.claimed[userID] = true
	return true, nil
}

type fakeMailer struct {
	mu    sync.Mutex
	sent  []string
	err   error
	bodys []string
}

func (m *fakeMailer) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to)
	m.bodys = append(m.bodys, body)
	return nil
}

func (m *fakeMailer) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nullWriter{}, nil))
}

type nullWriter struct{}

func (nullWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestSignupNotifier_FirstCallSendsOnce(t *testing.T) {
	mailer := &fakeMailer{}
	n := NewSignupNotifier(&fakeMarkerStore{}, mailer, "admin@mastro.example.com", noopLogger())

	outcome, err := n.Notify(context.Background(), model.Identity{ID: "u1", Email: "u1@example.com"})
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	if !outcome.Notified || outcome.Already {
		t.Errorf("expected notified outcome, got %+v", outcome)
	}
	if mailer.sentCount() != 1 {
		t.Fatalf("expected exactly 1 email, got %d", mailer.sentCount())
	}
	if mailer.sent[0] != "admin@mastro.example.com" {
		t.Errorf("email sent to %q", mailer.sent[0])
	}
}

func TestSignupNotifier_SecondCallIsIdempotent(t *testing.T) {
	mailer := &fakeMailer{}
	n := NewSignupNotifier(&fakeMarkerStore{}, mailer, "admin@mastro.example.com", noopLogger())
	id := model.Identity{ID: "u1", Email: "u1@example.com"}

	if _, err := n.Notify(context.Background(), id); err != nil {
		t.Fatalf("first Notify failed: %v", err)
	}

	outcome, err := n.Notify(context.Background(), id)
	if err != nil {
		t.Fatalf("second Notify failed: %v", err)
	}

	if outcome.Notified || !outcome.Already {
		t.Errorf("expected already-notified outcome, got %+v", outcome)
	}
	if mailer.sentCount() != 1 {
		t.Errorf("expected exactly 1 email across both calls, got %d", mailer.sentCount())
	}
}

func TestSignupNotifier_EmailFailureDoesNotUnclaim(t *testing.T) {
	// Marker first, email second. A failed send is logged, not retried,
	// so the endpoint stays idempotent.
	mailer := &fakeMailer{err: fmt.Errorf("smtp down")}
	n := NewSignupNotifier(&fakeMarkerStore{}, mailer, "admin@mastro.example.com", noopLogger())
	id := model.Identity{ID: "u1"}

	outcome, err := n.Notify(context.Background(), id)
	if err != nil {
		t.Fatalf("Notify must not fail on email errors: %v", err)
	}
	if !outcome.Notified {
		t.Errorf("expected notified outcome despite send failure, got %+v", outcome)
	}

	mailer.err = nil
	outcome, err = n.Notify(context.Background(), id)
	if err != nil {
		t.Fatalf("second Notify failed: %v", err)
	}
	if !outcome.Already {
		t.Errorf("expected already-notified after failed send, got %+v", outcome)
	}
	if mailer.sentCount() != 0 {
		t.Errorf("expected no later re-send, got %d", mailer.sentCount())
	}
}

func TestSignupNotifier_StoreErrorPropagates(t *testing.T) {
	store := &fakeMarkerStore{err: fmt.Errorf("connection refused")}
	mailer := &fakeMailer{}
	n := NewSignupNotifier(store, mailer, "admin@mastro.example.com", noopLogger())

	_, err := n.Notify(context.Background(), model.Identity{ID: "u1"})
	if err == nil {
		t.Fatal("expected error when the marker store fails")
	}
	if mailer.sentCount() != 0 {
		t.Error("no email may be sent when the claim fails")
	}
}

func TestSignupNotifier_ConcurrentFirstSignup(t *testing.T) {
	mailer := &fakeMailer{}
	n := NewSignupNotifier(&fakeMarkerStore{}, mailer, "admin@mastro.example.com", noopLogger())
	id := model.Identity{ID: "u1"}

	const callers = 5
	var wg sync.WaitGroup
	outcomes := make(chan Outcome, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := n.Notify(context.Background(), id)
			if err != nil {
				t.Errorf("Notify failed: %v", err)
				return
			}
			outcomes <- outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	var notified int
	for outcome := range outcomes {
		if outcome.Notified {
			notified++
		}
	}

	if notified != 1 {
		t.Errorf("expected exactly one winner, got %d", notified)
	}
	if mailer.sentCount() != 1 {
		t.Errorf("expected exactly 1 email, got %d", mailer.sentCount())
	}
}
