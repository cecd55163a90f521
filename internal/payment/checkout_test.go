package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/mastrohq/mastro/internal/model"
)

func TestCheckoutBuilder_NotConfigured(t *testing.T) {
	b := NewCheckoutBuilder(false, "https://mastro.example.com")

	if b.Configured() {
		t.Error("expected Configured() to be false")
	}

	_, err := b.CreateSession(context.Background(), model.Identity{ID: "u1"}, 500, 1)
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestCheckoutBuilder_RejectsAmountBelowMinimum(t *testing.T) {
	b := NewCheckoutBuilder(true, "https://mastro.example.com")

	for _, amount := range []int64{0, -500, 99} {
		_, err := b.CreateSession(context.Background(), model.Identity{ID: "u1"}, amount, 1)
		if !errors.Is(err, ErrBadAmount) {
			t.Errorf("amount %d: expected ErrBadAmount, got %v", amount, err)
		}
	}
}
