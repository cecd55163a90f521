package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mastrohq/mastro/internal/handler/dto"
	"github.com/mastrohq/mastro/internal/model"
	"github.com/mastrohq/mastro/internal/notify"
)

type markerStore struct {
	claimed map[string]bool
	err     error
}

func (s *markerStore) ClaimSignupNotification(ctx context.Context, userID string) (bool, error) {
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

type countingMailer struct {
	sent int
}

func (m *countingMailer) Send(to, subject, body string) error {
	m.sent++
	return nil
}

func newSignupHandler(store *markerStore, mailer *countingMailer) *SignupHandler {
	notifier := notify.NewSignupNotifier(store, mailer, "admin@mastro.example.com", testLogger())
	return NewSignupHandler(notifier, testLogger())
}

func TestSignupNotify(t *testing.T) {
	mailer := &countingMailer{}
	h := newSignupHandler(&markerStore{}, mailer)
	id := model.Identity{ID: "u1", Email: "u1@example.com"}

	rec := httptest.NewRecorder()
	h.Notify(rec, authedRequest(http.MethodPost, "/api/v1/signup/notify", id))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp dto.SignupNotifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Notified || resp.Already {
		t.Errorf("expected notified outcome, got %+v", resp)
	}
	if mailer.sent != 1 {
		t.Errorf("expected 1 email, got %d", mailer.sent)
	}

	// Second call for the same user is a no-op.
	rec = httptest.NewRecorder()
	h.Notify(rec, authedRequest(http.MethodPost, "/api/v1/signup/notify", id))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on repeat, got %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Notified || !resp.Already {
		t.Errorf("expected already outcome, got %+v", resp)
	}
	if mailer.sent != 1 {
		t.Errorf("expected no second email, got %d", mailer.sent)
	}
}

func TestSignupNotify_StoreFailure(t *testing.T) {
	h := newSignupHandler(&markerStore{err: fmt.Errorf("connection refused")}, &countingMailer{})

	rec := httptest.NewRecorder()
	h.Notify(rec, authedRequest(http.MethodPost, "/api/v1/signup/notify", model.Identity{ID: "u1"}))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if resp := decodeError(t, rec.Body.Bytes()); resp.Code != "db_error" {
		t.Errorf("expected code db_error, got %q", resp.Code)
	}
}

func TestSignupNotify_MissingIdentity(t *testing.T) {
	h := newSignupHandler(&markerStore{}, &countingMailer{})

	rec := httptest.NewRecorder()
	h.Notify(rec, httptest.NewRequest(http.MethodPost, "/api/v1/signup/notify", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
