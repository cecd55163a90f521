package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/mastrohq/mastro/internal/model"
	"github.com/mastrohq/mastro/internal/payment"
)

const webhookTestSecret = "whsec_handler_test"

type recordingCreditStore struct {
	tokens []*model.DownloadToken
}

func (s *recordingCreditStore) InsertToken(ctx context.Context, token *model.DownloadToken) error {
	s.tokens = append(s.tokens, token)
	return nil
}

func stripeSignature(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func webhookRequest(payload []byte, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stripe/webhook", bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	return req
}

func completedSessionPayload(userID string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_handler_1",
		"object": "event",
		"api_version": %q,
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_handler_1",
			"object": "checkout.session",
			"client_reference_id": %q,
			"amount_total": 500
		}}
	}`, stripe.APIVersion, userID))
}

func TestWebhookReceive(t *testing.T) {
	store := &recordingCreditStore{}
	h := NewWebhookHandler(payment.NewReconciler(store, webhookTestSecret, testLogger()), testLogger())

	payload := completedSessionPayload("u1")
	rec := httptest.NewRecorder()
	h.Receive(rec, webhookRequest(payload, stripeSignature(payload, webhookTestSecret)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var ack struct {
		Received bool `json:"received"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if !ack.Received {
		t.Error("expected received=true")
	}
	if len(store.tokens) != 1 || store.tokens[0].UserID != "u1" {
		t.Fatalf("expected one credit for u1, got %+v", store.tokens)
	}
}

func TestWebhookReceive_InvalidSignature(t *testing.T) {
	store := &recordingCreditStore{}
	h := NewWebhookHandler(payment.NewReconciler(store, webhookTestSecret, testLogger()), testLogger())

	payload := completedSessionPayload("u1")
	rec := httptest.NewRecorder()
	h.Receive(rec, webhookRequest(payload, stripeSignature(payload, "whsec_wrong")))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if resp := decodeError(t, rec.Body.Bytes()); resp.Code != "invalid_signature" {
		t.Errorf("expected code invalid_signature, got %q", resp.Code)
	}
	if len(store.tokens) != 0 {
		t.Error("store must not be touched on signature failure")
	}
}

func TestWebhookReceive_MissingSignatureHeader(t *testing.T) {
	store := &recordingCreditStore{}
	h := NewWebhookHandler(payment.NewReconciler(store, webhookTestSecret, testLogger()), testLogger())

	rec := httptest.NewRecorder()
	h.Receive(rec, webhookRequest(completedSessionPayload("u1"), ""))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(store.tokens) != 0 {
		t.Error("store must not be touched without a signature")
	}
}

func TestWebhookReceive_NotConfigured(t *testing.T) {
	h := NewWebhookHandler(payment.NewReconciler(&recordingCreditStore{}, "", testLogger()), testLogger())

	rec := httptest.NewRecorder()
	h.Receive(rec, webhookRequest([]byte(`{}`), "t=0,v1=00"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if resp := decodeError(t, rec.Body.Bytes()); resp.Code != "server_config" {
		t.Errorf("expected code server_config, got %q", resp.Code)
	}
}

func TestWebhookReceive_MissingUserIsRetriable(t *testing.T) {
	store := &recordingCreditStore{}
	h := NewWebhookHandler(payment.NewReconciler(store, webhookTestSecret, testLogger()), testLogger())

	payload := []byte(fmt.Sprintf(`{
		"id": "evt_handler_2",
		"object": "event",
		"api_version": %q,
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_handler_2", "object": "checkout.session", "amount_total": 500}}
	}`, stripe.APIVersion))

	rec := httptest.NewRecorder()
	h.Receive(rec, webhookRequest(payload, stripeSignature(payload, webhookTestSecret)))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 so the provider retries, got %d", rec.Code)
	}
	if len(store.tokens) != 0 {
		t.Error("uncorrelated payment must not issue a credit")
	}
}
