package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// File names within the data directory, one JSON array per entity type.
const (
	usersFile      = "users.json"
	productsFile   = "products.json"
	reportsFile    = "disease_reports.json"
	alertsFile     = "alert_registrations.json"
	detectionsFile = "detection_history.json"
)

// JSONStore persists each collection as a whole-file JSON array. Every write
// rewrites the collection; a mutex per file serializes writers so concurrent
// requests cannot lose updates.
type JSONStore struct {
	dir    string
	logger *slog.Logger

	usersMu      sync.Mutex
	productsMu   sync.Mutex
	reportsMu    sync.Mutex
	alertsMu     sync.Mutex
	detectionsMu sync.Mutex
}

// NewJSONStore opens (creating if needed) the data directory.
func NewJSONStore(dir string, logger *slog.Logger) (*JSONStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("json store directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &JSONStore{
		dir:    dir,
		logger: logger.With("component", "store_json"),
	}, nil
}

// Close is a no-op; files are closed after every operation.
func (s *JSONStore) Close() {}

// Ping ensures the data directory is still accessible.
func (s *JSONStore) Ping(ctx context.Context) error {
	if _, err := os.Stat(s.dir); err != nil {
		return fmt.Errorf("stat data dir: %w", err)
	}
	return nil
}

func (s *JSONStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return items, nil
}

func saveJSON[T any](path string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// -- Users --

func (s *JSONStore) CreateUser(ctx context.Context, name, userType, resetMonth string) (*User, error) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	users, err := loadJSON[User](s.path(usersFile))
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Name, name) && u.Type == userType {
			return nil, fmt.Errorf("user %q (%s): %w", name, userType, ErrConflict)
		}
	}

	user := User{
		ID:             int64(len(users) + 1),
		Name:           name,
		Type:           userType,
		Credits:        0,
		Tokens:         5,
		LastTokenReset: resetMonth,
		Friends:        []string{},
		CreatedAt:      nowStamp(),
	}
	users = append(users, user)
	if err := saveJSON(s.path(usersFile), users); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *JSONStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	users, err := loadJSON[User](s.path(usersFile))
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID == id {
			u := users[i]
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
}

func (s *JSONStore) GetUserByNameType(ctx context.Context, name, userType string) (*User, error) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	users, err := loadJSON[User](s.path(usersFile))
	if err != nil {
		return nil, err
	}
	for i := range users {
		if strings.EqualFold(users[i].Name, name) && users[i].Type == userType {
			u := users[i]
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %q (%s): %w", name, userType, ErrNotFound)
}

func (s *JSONStore) UpdateUser(ctx context.Context, id int64, upd UserUpdate) (*User, error) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	users, err := loadJSON[User](s.path(usersFile))
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID != id {
			continue
		}
		if upd.Credits != nil {
			users[i].Credits = *upd.Credits
		}
		if upd.Tokens != nil {
			users[i].Tokens = *upd.Tokens
		}
		if upd.LastTokenReset != nil {
			users[i].LastTokenReset = *upd.LastTokenReset
		}
		if upd.Friends != nil {
			users[i].Friends = append([]string{}, (*upd.Friends)...)
		}
		if err := saveJSON(s.path(usersFile), users); err != nil {
			return nil, err
		}
		u := users[i]
		return &u, nil
	}
	return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
}

func (s *JSONStore) AddUserFriend(ctx context.Context, id int64, friendName string) (*User, error) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	users, err := loadJSON[User](s.path(usersFile))
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID != id {
			continue
		}
		present := false
		for _, f := range users[i].Friends {
			if f == friendName {
				present = true
				break
			}
		}
		if !present {
			users[i].Friends = append(users[i].Friends, friendName)
			if err := saveJSON(s.path(usersFile), users); err != nil {
				return nil, err
			}
		}
		u := users[i]
		return &u, nil
	}
	return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
}

// -- Products --

func (s *JSONStore) ListProducts(ctx context.Context) ([]Product, error) {
	s.productsMu.Lock()
	defer s.productsMu.Unlock()
	return loadJSON[Product](s.path(productsFile))
}

func (s *JSONStore) ListProductsBySeller(ctx context.Context, sellerID int64) ([]Product, error) {
	s.productsMu.Lock()
	defer s.productsMu.Unlock()

	products, err := loadJSON[Product](s.path(productsFile))
	if err != nil {
		return nil, err
	}
	var res []Product
	for _, p := range products {
		if p.SellerID == sellerID {
			res = append(res, p)
		}
	}
	return res, nil
}

func (s *JSONStore) CreateProduct(ctx context.Context, p Product) (*Product, error) {
	s.productsMu.Lock()
	defer s.productsMu.Unlock()

	products, err := loadJSON[Product](s.path(productsFile))
	if err != nil {
		return nil, err
	}
	p.ID = int64(len(products) + 1)
	p.Views = 0
	p.CreatedAt = nowStamp()
	products = append(products, p)
	if err := saveJSON(s.path(productsFile), products); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *JSONStore) DeleteProduct(ctx context.Context, id int64) (bool, error) {
	s.productsMu.Lock()
	defer s.productsMu.Unlock()

	products, err := loadJSON[Product](s.path(productsFile))
	if err != nil {
		return false, err
	}
	kept := products[:0]
	removed := false
	for _, p := range products {
		if p.ID == id {
			removed = true
			continue
		}
		kept = append(kept, p)
	}
	if !removed {
		return false, nil
	}
	if err := saveJSON(s.path(productsFile), kept); err != nil {
		return false, err
	}
	return true, nil
}

func (s *JSONStore) IncrementProductViews(ctx context.Context, id int64) (*Product, error) {
	s.productsMu.Lock()
	defer s.productsMu.Unlock()

	products, err := loadJSON[Product](s.path(productsFile))
	if err != nil {
		return nil, err
	}
	for i := range products {
		if products[i].ID == id {
			products[i].Views++
			if err := saveJSON(s.path(productsFile), products); err != nil {
				return nil, err
			}
			p := products[i]
			return &p, nil
		}
	}
	return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
}

// -- Disease reports --

func (s *JSONStore) CreateDiseaseReport(ctx context.Context, report DiseaseReport) (*DiseaseReport, error) {
	s.reportsMu.Lock()
	defer s.reportsMu.Unlock()

	reports, err := loadJSON[DiseaseReport](s.path(reportsFile))
	if err != nil {
		return nil, err
	}
	report.ID = int64(len(reports) + 1)
	reports = append(reports, report)
	if err := saveJSON(s.path(reportsFile), reports); err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *JSONStore) ListRecentDiseaseReports(ctx context.Context, location string, limit int) ([]DiseaseReport, error) {
	s.reportsMu.Lock()
	defer s.reportsMu.Unlock()

	reports, err := loadJSON[DiseaseReport](s.path(reportsFile))
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	if location != "" {
		needle := strings.ToLower(location)
		filtered := reports[:0]
		for _, r := range reports {
			if strings.Contains(strings.ToLower(r.Location), needle) {
				filtered = append(filtered, r)
			}
		}
		reports = filtered
	}

	sort.SliceStable(reports, func(i, j int) bool {
		if reports[i].ReportedAt == reports[j].ReportedAt {
			return reports[i].ID > reports[j].ID
		}
		return reports[i].ReportedAt > reports[j].ReportedAt
	})
	if len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}

// -- Alert registrations --

func (s *JSONStore) GetAlertRegistrationByPhone(ctx context.Context, phone string) (*AlertRegistration, error) {
	s.alertsMu.Lock()
	defer s.alertsMu.Unlock()

	alerts, err := loadJSON[AlertRegistration](s.path(alertsFile))
	if err != nil {
		return nil, err
	}
	for i := range alerts {
		if alerts[i].PhoneNumber == phone {
			a := alerts[i]
			return &a, nil
		}
	}
	return nil, fmt.Errorf("alert registration %s: %w", phone, ErrNotFound)
}

func (s *JSONStore) UpsertAlertRegistration(ctx context.Context, reg AlertRegistration) (*AlertRegistration, error) {
	s.alertsMu.Lock()
	defer s.alertsMu.Unlock()

	alerts, err := loadJSON[AlertRegistration](s.path(alertsFile))
	if err != nil {
		return nil, err
	}
	for i := range alerts {
		if alerts[i].PhoneNumber != reg.PhoneNumber {
			continue
		}
		alerts[i].FarmerName = reg.FarmerName
		alerts[i].CropTypes = reg.CropTypes
		alerts[i].AlertRadius = reg.AlertRadius
		alerts[i].Location = reg.Location
		alerts[i].UpdatedAt = reg.UpdatedAt
		if err := saveJSON(s.path(alertsFile), alerts); err != nil {
			return nil, err
		}
		a := alerts[i]
		return &a, nil
	}

	reg.ID = int64(len(alerts) + 1)
	reg.IsActive = true
	alerts = append(alerts, reg)
	if err := saveJSON(s.path(alertsFile), alerts); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (s *JSONStore) ListAlertRegistrations(ctx context.Context) ([]AlertRegistration, error) {
	s.alertsMu.Lock()
	defer s.alertsMu.Unlock()
	return loadJSON[AlertRegistration](s.path(alertsFile))
}

// -- Detection history --

func (s *JSONStore) CreateDetectionRecord(ctx context.Context, rec DetectionRecord) (*DetectionRecord, error) {
	s.detectionsMu.Lock()
	defer s.detectionsMu.Unlock()

	records, err := loadJSON[DetectionRecord](s.path(detectionsFile))
	if err != nil {
		return nil, err
	}
	rec.ID = int64(len(records) + 1)
	if rec.Timestamp == "" {
		rec.Timestamp = nowStamp()
	}
	records = append(records, rec)
	if err := saveJSON(s.path(detectionsFile), records); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *JSONStore) ListUserDetections(ctx context.Context, userID int64) ([]DetectionRecord, error) {
	s.detectionsMu.Lock()
	defer s.detectionsMu.Unlock()

	records, err := loadJSON[DetectionRecord](s.path(detectionsFile))
	if err != nil {
		return nil, err
	}
	var res []DetectionRecord
	for _, rec := range records {
		if rec.UserID == userID {
			res = append(res, rec)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].Timestamp == res[j].Timestamp {
			return res[i].ID > res[j].ID
		}
		return res[i].Timestamp > res[j].Timestamp
	})
	return res, nil
}

func (s *JSONStore) DeleteDetectionRecord(ctx context.Context, id int64) (bool, error) {
	s.detectionsMu.Lock()
	defer s.detectionsMu.Unlock()

	records, err := loadJSON[DetectionRecord](s.path(detectionsFile))
	if err != nil {
		return false, err
	}
	kept := records[:0]
	removed := false
	for _, rec := range records {
		if rec.ID == id {
			removed = true
			continue
		}
		kept = append(kept, rec)
	}
	if !removed {
		return false, nil
	}
	if err := saveJSON(s.path(detectionsFile), kept); err != nil {
		return false, err
	}
	return true, nil
}
