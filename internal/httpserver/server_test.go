package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"gaunroots/internal/alerts"
	"gaunroots/internal/classifier"
	"gaunroots/internal/ledger"
	"gaunroots/internal/market"
	"gaunroots/internal/store"
)

type stubSender struct {
	sent int
}

func (s *stubSender) Send(ctx context.Context, recipient, disease, crop, location string) bool {
	s.sent++
	return true
}

func (s *stubSender) Enabled() bool { return true }

func newTestServer(t *testing.T) (*Server, *stubSender) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.NewJSONStore(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	sender := &stubSender{}

	deps := Dependencies{
		Store:  st,
		Ledger: ledger.New(st, ledger.Config{TokenPrice: 10}, logger, nil),
		Market: market.New(st, logger),
		Alerts: alerts.New(st, sender, nil, alerts.Config{
			DefaultLocation: "Kathmandu Valley",
			CommunityEmail:  "community@example.com",
		}, logger, nil),
		Classifier: classifier.New(classifier.Config{
			ModelPath: filepath.Join(t.TempDir(), "missing.onnx"),
		}, logger, nil),
	}
	return New(":0", logger, nil, deps, ""), sender
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestRegisterAndDuplicateConflict(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/users/register", map[string]string{"name": "Asha", "type": "farmer"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	user := decode[store.User](t, rec)
	if user.ID != 1 || user.Tokens != 5 {
		t.Fatalf("unexpected user: %+v", user)
	}

	rec = doJSON(t, h, http.MethodPost, "/users/register", map[string]string{"name": "asha", "type": "farmer"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	detail := decode[map[string]string](t, rec)
	if detail["detail"] == "" {
		t.Fatalf("expected detail message, got %s", rec.Body.String())
	}
}

func TestGetUnknownUserReturnsNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/users/42", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestTokenLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/users/register", map[string]string{"name": "Asha", "type": "farmer"})
	user := decode[store.User](t, rec)

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/users/%d/tokens", user.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	balance := decode[map[string]any](t, rec)
	if balance["tokens"].(float64) != 5 || balance["pricePerToken"].(float64) != 10 {
		t.Fatalf("unexpected balance: %v", balance)
	}

	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/users/%d/purchase-tokens", user.ID), map[string]int{"quantity": 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	purchase := decode[map[string]any](t, rec)
	if purchase["tokens"].(float64) != 7 || purchase["totalCost"].(float64) != 20 {
		t.Fatalf("unexpected purchase result: %v", purchase)
	}

	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/users/%d/purchase-tokens", user.ID), map[string]int{"quantity": 0})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero quantity, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/users/%d/use-token", user.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	used := decode[map[string]int](t, rec)
	if used["remainingTokens"] != 6 {
		t.Fatalf("expected 6 remaining, got %v", used)
	}
}

func TestUseTokenPaymentRequiredWhenExhausted(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/users/register", map[string]string{"name": "Asha", "type": "farmer"})
	user := decode[store.User](t, rec)

	for i := 0; i < 5; i++ {
		if rec := doJSON(t, h, http.MethodPost, fmt.Sprintf("/users/%d/use-token", user.ID), nil); rec.Code != http.StatusOK {
			t.Fatalf("use %d: expected 200, got %d", i, rec.Code)
		}
	}
	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/users/%d/use-token", user.ID), nil)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}
}

func TestProductLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/products?seller_id=1&seller_name=Asha", map[string]any{
		"name":        "Tomato seeds",
		"price":       150.0,
		"description": "Heirloom",
		"type":        "seeds",
		"phone":       "9800000001",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	product := decode[store.Product](t, rec)
	if product.SellerName != "Asha" || product.Views != 0 {
		t.Fatalf("unexpected product: %+v", product)
	}

	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/products/%d/view", product.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	viewed := decode[store.Product](t, rec)
	if viewed.Views != 1 {
		t.Fatalf("expected 1 view, got %d", viewed.Views)
	}

	rec = doJSON(t, h, http.MethodGet, "/products/seller/1", nil)
	sellers := decode[[]store.Product](t, rec)
	if len(sellers) != 1 {
		t.Fatalf("expected 1 seller listing, got %d", len(sellers))
	}

	rec = doJSON(t, h, http.MethodDelete, fmt.Sprintf("/products/%d", product.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	msg := decode[map[string]string](t, rec)
	if msg["message"] != "Product removed successfully" {
		t.Fatalf("unexpected message: %v", msg)
	}

	rec = doJSON(t, h, http.MethodDelete, fmt.Sprintf("/products/%d", product.ID), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestReportDiseaseNotifiesAndLists(t *testing.T) {
	srv, sender := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/report-disease", map[string]string{
		"diseaseName": "Late Blight",
		"cropType":    "Tomato",
		"severity":    "high",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[map[string]any](t, rec)
	if body["success"] != true || body["notified_farmers"].(float64) != 1 {
		t.Fatalf("unexpected response: %v", body)
	}
	if sender.sent != 1 {
		t.Fatalf("expected 1 email, got %d", sender.sent)
	}

	rec = doJSON(t, h, http.MethodGet, "/recent-alerts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	listed := decode[map[string]any](t, rec)
	if listed["success"] != true {
		t.Fatalf("unexpected response: %v", listed)
	}
	if alertsList := listed["alerts"].([]any); len(alertsList) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alertsList))
	}
}

func TestRegisterAlertsValidatesInput(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/register-alerts", map[string]any{
		"farmerName":  "Asha",
		"phoneNumber": "9800000001",
		"cropTypes":   "tomato",
		"alertRadius": 10,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[map[string]any](t, rec)
	if body["message"] != "Alert registration successful for Kathmandu Valley" {
		t.Fatalf("unexpected message: %v", body["message"])
	}

	rec = doJSON(t, h, http.MethodPost, "/register-alerts", map[string]string{"farmerName": "Asha"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without phone, got %d", rec.Code)
	}
}

func TestPredictWithoutModelIsUnavailable(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/predict", map[string]string{"image": "aGVsbG8="})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestBasePathMounting(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.NewJSONStore(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	srv := New(":0", logger, nil, Dependencies{
		Store:  st,
		Ledger: ledger.New(st, ledger.Config{TokenPrice: 10}, logger, nil),
		Market: market.New(st, logger),
		Alerts: alerts.New(st, &stubSender{}, nil, alerts.Config{DefaultLocation: "Kathmandu Valley"}, logger, nil),
	}, "/api")
	h := srv.Handler()

	if rec := doJSON(t, h, http.MethodGet, "/api/healthz", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 under base path, got %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodGet, "/healthz", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 outside base path, got %d", rec.Code)
	}
}
