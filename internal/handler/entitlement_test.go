package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mastrohq/mastro/internal/entitlement"
	"github.com/mastrohq/mastro/internal/handler/dto"
	"github.com/mastrohq/mastro/internal/model"
	"github.com/mastrohq/mastro/internal/repository"
)

// creditStore is a minimal in-memory token store for wiring a real engine.
type creditStore struct {
	tokens map[string]*model.DownloadToken
	err    error
}

func newCreditStore(userID string, count int) *creditStore {
	s := &creditStore{tokens: make(map[string]*model.DownloadToken)}
	base := time.Now()
	for i := 0; i < count; i++ {
		id := fmt.Sprintf("t%d", i)
		s.tokens[id] = &model.DownloadToken{
			ID:        id,
			UserID:    userID,
			Paid:      true,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
	}
	return s
}

func (s *creditStore) CountPaidTokens(ctx context.Context, userID string) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	var count int64
	for _, tok := range s.tokens {
		if tok.UserID == userID && tok.Paid {
			count++
		}
	}
	return count, nil
}

func (s *creditStore) OldestPaidToken(ctx context.Context, userID string) (*model.DownloadToken, error) {
	if s.err != nil {
		return nil, s.err
	}
	var oldest *model.DownloadToken
	for _, tok := range s.tokens {
		if tok.UserID != userID || !tok.Paid {
			continue
		}
		if oldest == nil || tok.CreatedAt.Before(oldest.CreatedAt) {
			oldest = tok
		}
	}
	if oldest == nil {
		return nil, repository.ErrNoToken
	}
	return oldest, nil
}

func (s *creditStore) DeleteToken(ctx context.Context, id string) error {
	if s.err != nil {
		return s.err
	}
	if _, ok := s.tokens[id]; !ok {
		return repository.ErrTokenGone
	}
	delete(s.tokens, id)
	return nil
}

type noAdmins struct{}

func (noAdmins) IsAdminEmail(ctx context.Context, email string) (bool, error) {
	return false, nil
}

func newEntitlementHandler(store entitlement.Store) *EntitlementHandler {
	engine := entitlement.NewEngine(store, noAdmins{}, testLogger())
	return NewEntitlementHandler(engine, testLogger())
}

func TestEntitlementCheck(t *testing.T) {
	h := newEntitlementHandler(newCreditStore("u1", 2))

	rec := httptest.NewRecorder()
	h.Check(rec, authedRequest(http.MethodGet, "/api/v1/entitlement", model.Identity{ID: "u1"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp dto.EntitlementResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Allowed {
		t.Error("expected allowed=true")
	}
	if resp.Remaining == nil || *resp.Remaining != 2 {
		t.Errorf("expected remaining=2, got %v", resp.Remaining)
	}
}

func TestEntitlementCheck_MissingIdentity(t *testing.T) {
	h := newEntitlementHandler(newCreditStore("u1", 1))

	rec := httptest.NewRecorder()
	h.Check(rec, httptest.NewRequest(http.MethodGet, "/api/v1/entitlement", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestEntitlementCheck_StoreFailure(t *testing.T) {
	store := newCreditStore("u1", 1)
	store.err = fmt.Errorf("connection reset")
	h := newEntitlementHandler(store)

	rec := httptest.NewRecorder()
	h.Check(rec, authedRequest(http.MethodGet, "/api/v1/entitlement", model.Identity{ID: "u1"}))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if resp := decodeError(t, rec.Body.Bytes()); resp.Code != "db_error" {
		t.Errorf("expected code db_error, got %q", resp.Code)
	}
}

func TestEntitlementConsume(t *testing.T) {
	h := newEntitlementHandler(newCreditStore("u1", 2))

	rec := httptest.NewRecorder()
	h.Consume(rec, authedRequest(http.MethodPost, "/api/v1/entitlement/consume", model.Identity{ID: "u1"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp dto.ConsumeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Consumed || !resp.Allowed {
		t.Errorf("expected consumed allowed response, got %+v", resp)
	}
	if resp.Remaining == nil || *resp.Remaining != 1 {
		t.Errorf("expected remaining=1, got %v", resp.Remaining)
	}
}

func TestEntitlementConsume_NoCredits(t *testing.T) {
	h := newEntitlementHandler(newCreditStore("u1", 0))

	rec := httptest.NewRecorder()
	h.Consume(rec, authedRequest(http.MethodPost, "/api/v1/entitlement/consume", model.Identity{ID: "u1"}))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if resp := decodeError(t, rec.Body.Bytes()); resp.Code != "no_tokens_left" {
		t.Errorf("expected code no_tokens_left, got %q", resp.Code)
	}
}

func TestEntitlementConsume_StoreFailure(t *testing.T) {
	store := newCreditStore("u1", 1)
	store.err = fmt.Errorf("connection reset")
	h := newEntitlementHandler(store)

	rec := httptest.NewRecorder()
	h.Consume(rec, authedRequest(http.MethodPost, "/api/v1/entitlement/consume", model.Identity{ID: "u1"}))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when the store fails, got %d", rec.Code)
	}
	if resp := decodeError(t, rec.Body.Bytes()); resp.Code != "db_error" {
		t.Errorf("expected code db_error, got %q", resp.Code)
	}
}
