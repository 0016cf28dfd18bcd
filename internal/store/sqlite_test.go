package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"gaunroots/migrations"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	ctx := context.Background()
	s, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "test.db"), testLogger())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(s.Close)
	if err := s.RunMigrations(ctx, migrations.Files); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return s
}

func TestSQLiteUserLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "Asha", "farmer", "2026-08")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.Tokens != 5 || user.Credits != 0 {
		t.Fatalf("unexpected defaults: %+v", user)
	}
	if _, err := s.CreateUser(ctx, "ASHA", "farmer", "2026-08"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	found, err := s.GetUserByNameType(ctx, "asha", "farmer")
	if err != nil {
		t.Fatalf("get by name: %v", err)
	}
	if found.ID != user.ID {
		t.Fatalf("expected id %d, got %d", user.ID, found.ID)
	}

	credits, tokens := 40, 2
	updated, err := s.UpdateUser(ctx, user.ID, UserUpdate{Credits: &credits, Tokens: &tokens})
	if err != nil {
		t.Fatalf("update user: %v", err)
	}
	if updated.Credits != 40 || updated.Tokens != 2 {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	if _, err := s.AddUserFriend(ctx, user.ID, "Bikram"); err != nil {
		t.Fatalf("add friend: %v", err)
	}
	withFriend, err := s.AddUserFriend(ctx, user.ID, "Bikram")
	if err != nil {
		t.Fatalf("add friend again: %v", err)
	}
	if len(withFriend.Friends) != 1 || withFriend.Friends[0] != "Bikram" {
		t.Fatalf("unexpected friends: %v", withFriend.Friends)
	}

	friends := []string{"Chandra"}
	replaced, err := s.UpdateUser(ctx, user.ID, UserUpdate{Friends: &friends})
	if err != nil {
		t.Fatalf("replace friends: %v", err)
	}
	if len(replaced.Friends) != 1 || replaced.Friends[0] != "Chandra" {
		t.Fatalf("expected friends replaced, got %v", replaced.Friends)
	}

	if _, err := s.GetUserByID(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteProductLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	seller, err := s.CreateUser(ctx, "Asha", "farmer", "2026-08")
	if err != nil {
		t.Fatalf("create seller: %v", err)
	}

	product, err := s.CreateProduct(ctx, Product{
		SellerID:   seller.ID,
		SellerName: seller.Name,
		Name:       "Tomato seeds",
		Price:      150,
		Type:       "seeds",
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if product.Views != 0 {
		t.Fatalf("expected 0 views, got %d", product.Views)
	}

	viewed, err := s.IncrementProductViews(ctx, product.ID)
	if err != nil {
		t.Fatalf("increment views: %v", err)
	}
	if viewed.Views != 1 {
		t.Fatalf("expected 1 view, got %d", viewed.Views)
	}
	if _, err := s.IncrementProductViews(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	mine, err := s.ListProductsBySeller(ctx, seller.ID)
	if err != nil {
		t.Fatalf("list by seller: %v", err)
	}
	if len(mine) != 1 {
		t.Fatalf("expected 1 product, got %d", len(mine))
	}

	removed, err := s.DeleteProduct(ctx, product.ID)
	if err != nil || !removed {
		t.Fatalf("expected removal, got removed=%v err=%v", removed, err)
	}
}

func TestSQLiteReportsAndAlerts(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	seed := []DiseaseReport{
		{DiseaseName: "Late Blight", CropType: "Tomato", Severity: "high", Location: "Kathmandu Valley", ReportedAt: "2026-08-01T10:00:00Z", Status: "pending_verification"},
		{DiseaseName: "Rust", CropType: "Wheat", Severity: "low", Location: "Pokhara", ReportedAt: "2026-08-02T10:00:00Z", Status: "pending_verification"},
	}
	for _, r := range seed {
		if _, err := s.CreateDiseaseReport(ctx, r); err != nil {
			t.Fatalf("create report: %v", err)
		}
	}

	all, err := s.ListRecentDiseaseReports(ctx, "", 10)
	if err != nil {
		t.Fatalf("list reports: %v", err)
	}
	if len(all) != 2 || all[0].DiseaseName != "Rust" {
		t.Fatalf("expected newest first, got %+v", all)
	}
	filtered, err := s.ListRecentDiseaseReports(ctx, "kathmandu", 10)
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(filtered) != 1 || filtered[0].DiseaseName != "Late Blight" {
		t.Fatalf("unexpected filter result: %+v", filtered)
	}

	first, err := s.UpsertAlertRegistration(ctx, AlertRegistration{
		FarmerName:   "Asha",
		PhoneNumber:  "9800000001",
		CropTypes:    "tomato",
		AlertRadius:  10,
		Location:     "Kathmandu Valley",
		RegisteredAt: "2026-08-01T10:00:00Z",
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !first.IsActive {
		t.Fatal("expected active registration")
	}
	second, err := s.UpsertAlertRegistration(ctx, AlertRegistration{
		FarmerName:  "Asha Thapa",
		PhoneNumber: "9800000001",
		CropTypes:   "tomato,potato",
		AlertRadius: 25,
		Location:    "Kathmandu Valley",
		UpdatedAt:   "2026-08-15T10:00:00Z",
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID || second.FarmerName != "Asha Thapa" {
		t.Fatalf("expected in-place update, got %+v", second)
	}
	if second.RegisteredAt != first.RegisteredAt {
		t.Fatalf("expected registration time kept, got %q", second.RegisteredAt)
	}
}

func TestSQLiteDetectionHistory(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "Asha", "farmer", "2026-08")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	for _, ts := range []string{"2026-08-01T10:00:00Z", "2026-08-02T10:00:00Z"} {
		if _, err := s.CreateDetectionRecord(ctx, DetectionRecord{
			UserID:     user.ID,
			Image:      "img",
			Prediction: "healthy",
			Confidence: 0.9,
			Timestamp:  ts,
		}); err != nil {
			t.Fatalf("create record: %v", err)
		}
	}

	records, err := s.ListUserDetections(ctx, user.ID)
	if err != nil {
		t.Fatalf("list detections: %v", err)
	}
	if len(records) != 2 || records[0].Timestamp != "2026-08-02T10:00:00Z" {
		t.Fatalf("expected newest first, got %+v", records)
	}

	removed, err := s.DeleteDetectionRecord(ctx, records[0].ID)
	if err != nil || !removed {
		t.Fatalf("expected removal, got removed=%v err=%v", removed, err)
	}
}

func TestImportJSONPreservesIDsAndReruns(t *testing.T) {
	ctx := context.Background()
	js, dir := newTestStore(t)

	for _, name := range []string{"Asha", "Bikram"} {
		if _, err := js.CreateUser(ctx, name, "farmer", "2026-08"); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	if _, err := js.AddUserFriend(ctx, 1, "Bikram"); err != nil {
		t.Fatalf("seed friend: %v", err)
	}
	if _, err := js.CreateProduct(ctx, Product{SellerID: 2, SellerName: "Bikram", Name: "Compost", Price: 300}); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if _, err := js.CreateDiseaseReport(ctx, DiseaseReport{
		DiseaseName: "Late Blight", CropType: "Tomato", Severity: "high",
		Location: "Kathmandu Valley", ReportedAt: "2026-08-01T10:00:00Z", Status: "pending_verification",
	}); err != nil {
		t.Fatalf("seed report: %v", err)
	}

	s := newTestSQLite(t)
	sum, err := s.ImportJSON(ctx, dir)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if sum.Users != 2 || sum.FriendLinks != 1 || sum.Products != 1 || sum.Reports != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	user, err := s.GetUserByID(ctx, 2)
	if err != nil {
		t.Fatalf("get imported user: %v", err)
	}
	if user.Name != "Bikram" {
		t.Fatalf("expected Bikram at id 2, got %q", user.Name)
	}

	again, err := s.ImportJSON(ctx, dir)
	if err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if again.Users != 0 || again.Products != 0 || again.Reports != 0 || again.FriendLinks != 0 {
		t.Fatalf("expected idempotent re-import, got %+v", again)
	}
}
