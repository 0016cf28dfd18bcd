package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"gaunroots/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, err := store.NewJSONStore(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	return New(st, Config{TokenPrice: 10}, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Asha", "farmer")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Tokens != MonthlyFreeTokens {
		t.Fatalf("expected %d starting tokens, got %d", MonthlyFreeTokens, user.Tokens)
	}

	if _, err := svc.Register(ctx, "ASHA", "farmer"); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestLoginMatchesNameCaseInsensitively(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "Asha", "farmer"); err != nil {
		t.Fatalf("register: %v", err)
	}

	user, err := svc.Login(ctx, "asha", "farmer")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.Name != "Asha" {
		t.Fatalf("expected stored name returned, got %q", user.Name)
	}

	if _, err := svc.Login(ctx, "asha", "buyer"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for wrong type, got %v", err)
	}
}

func TestAddCreditsAllowsNegativeAmounts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Asha", "farmer")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.AddCredits(ctx, user.ID, 50); err != nil {
		t.Fatalf("add credits: %v", err)
	}
	got, err := svc.AddCredits(ctx, user.ID, -20)
	if err != nil {
		t.Fatalf("subtract credits: %v", err)
	}
	if got.Credits != 30 {
		t.Fatalf("expected 30 credits, got %d", got.Credits)
	}
}

func TestUseTokenExhaustsBalance(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Asha", "farmer")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	for want := MonthlyFreeTokens - 1; want >= 0; want-- {
		remaining, err := svc.UseToken(ctx, user.ID)
		if err != nil {
			t.Fatalf("use token: %v", err)
		}
		if remaining != want {
			t.Fatalf("expected %d remaining, got %d", want, remaining)
		}
	}

	if _, err := svc.UseToken(ctx, user.ID); !errors.Is(err, ErrInsufficientTokens) {
		t.Fatalf("expected ErrInsufficientTokens, got %v", err)
	}
}

func TestMonthlyResetOverwritesSurplus(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	august := time.Date(2026, time.August, 15, 0, 0, 0, 0, time.UTC)
	september := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return august }

	user, err := svc.Register(ctx, "Asha", "farmer")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Purchase(ctx, user.ID, 7); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	svc.now = func() time.Time { return september }
	balance, err := svc.Tokens(ctx, user.ID)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	if balance.Tokens != MonthlyFreeTokens {
		t.Fatalf("expected surplus discarded to %d, got %d", MonthlyFreeTokens, balance.Tokens)
	}
	if balance.LastReset != "2026-09" {
		t.Fatalf("expected reset stamp 2026-09, got %s", balance.LastReset)
	}

	// A second read in the same month must not reset again.
	if _, err := svc.UseToken(ctx, user.ID); err != nil {
		t.Fatalf("use token: %v", err)
	}
	balance, err = svc.Tokens(ctx, user.ID)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	if balance.Tokens != MonthlyFreeTokens-1 {
		t.Fatalf("expected %d tokens, got %d", MonthlyFreeTokens-1, balance.Tokens)
	}
}

func TestPurchaseValidatesQuantityAndPricesTotal(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Asha", "farmer")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Purchase(ctx, user.ID, 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}

	result, err := svc.Purchase(ctx, user.ID, 3)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if result.Tokens != MonthlyFreeTokens+3 {
		t.Fatalf("expected %d tokens, got %d", MonthlyFreeTokens+3, result.Tokens)
	}
	if result.TotalCost != 30 {
		t.Fatalf("expected total cost 30, got %d", result.TotalCost)
	}
}
