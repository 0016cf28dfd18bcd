package market

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"gaunroots/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.NewJSONStore(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	return New(st, logger)
}

func TestCreateAndListBySeller(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, ListingInput{SellerID: 1, SellerName: "Asha", Name: "Tomato seeds", Price: 150}); err != nil {
		t.Fatalf("create listing: %v", err)
	}
	if _, err := svc.Create(ctx, ListingInput{SellerID: 2, SellerName: "Bikram", Name: "Compost", Price: 300}); err != nil {
		t.Fatalf("create listing: %v", err)
	}

	all, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(all))
	}

	mine, err := svc.ListBySeller(ctx, 1)
	if err != nil {
		t.Fatalf("list by seller: %v", err)
	}
	if len(mine) != 1 || mine[0].Name != "Tomato seeds" {
		t.Fatalf("unexpected seller listings: %+v", mine)
	}
}

func TestIncrementViewsCountsEveryCall(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	product, err := svc.Create(ctx, ListingInput{SellerID: 1, Name: "Tomato seeds", Price: 150})
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}

	for i := 1; i <= 2; i++ {
		got, err := svc.IncrementViews(ctx, product.ID)
		if err != nil {
			t.Fatalf("increment views: %v", err)
		}
		if got.Views != i {
			t.Fatalf("expected %d views, got %d", i, got.Views)
		}
	}

	if _, err := svc.IncrementViews(ctx, 999); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteReportsRemoval(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	product, err := svc.Create(ctx, ListingInput{SellerID: 1, Name: "Compost", Price: 300})
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}

	removed, err := svc.Delete(ctx, product.ID)
	if err != nil || !removed {
		t.Fatalf("expected removal, got removed=%v err=%v", removed, err)
	}
	removed, err = svc.Delete(ctx, product.ID)
	if err != nil || removed {
		t.Fatalf("expected no-op delete, got removed=%v err=%v", removed, err)
	}
}
