package store

import (
	"context"
	"fmt"
	"path/filepath"
)

// ImportSummary counts records taken over from a JSON data directory.
type ImportSummary struct {
	Users       int
	Products    int
	Reports     int
	Alerts      int
	Detections  int
	FriendLinks int
}

// ImportJSON copies a JSON data directory into the SQLite database,
// preserving record ids. Rows whose id (or another unique key) already
// exists are skipped, so the import is safe to re-run.
func (s *SQLiteStore) ImportJSON(ctx context.Context, dataDir string) (ImportSummary, error) {
	var sum ImportSummary

	path := func(name string) string { return filepath.Join(dataDir, name) }

	users, err := loadJSON[User](path(usersFile))
	if err != nil {
		return sum, err
	}
	for _, u := range users {
		res, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO users (id, name, type, credits, tokens, last_token_reset)
			VALUES (?, ?, ?, ?, ?, ?)`,
			u.ID, u.Name, u.Type, u.Credits, u.Tokens, u.LastTokenReset)
		if err != nil {
			return sum, fmt.Errorf("import user %d: %w", u.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			sum.Users++
		}
		for _, friend := range u.Friends {
			res, err := s.db.ExecContext(ctx, `
				INSERT OR IGNORE INTO user_friends (user_id, friend_name)
				VALUES (?, ?)`, u.ID, friend)
			if err != nil {
				return sum, fmt.Errorf("import friend of user %d: %w", u.ID, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				sum.FriendLinks++
			}
		}
	}

	products, err := loadJSON[Product](path(productsFile))
	if err != nil {
		return sum, err
	}
	for _, p := range products {
		res, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO products (id, seller_id, seller_name, name, price, description, type, phone, views)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.SellerID, p.SellerName, p.Name, p.Price, p.Description, p.Type, p.Phone, p.Views)
		if err != nil {
			return sum, fmt.Errorf("import product %d: %w", p.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			sum.Products++
		}
	}

	reports, err := loadJSON[DiseaseReport](path(reportsFile))
	if err != nil {
		return sum, err
	}
	for _, r := range reports {
		res, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO disease_reports (id, disease_name, location, crop_type, severity, description, reporter_phone, reported_at, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.DiseaseName, r.Location, r.CropType, r.Severity, r.Description, r.ReporterPhone, r.ReportedAt, r.Status)
		if err != nil {
			return sum, fmt.Errorf("import disease report %d: %w", r.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			sum.Reports++
		}
	}

	registrations, err := loadJSON[AlertRegistration](path(alertsFile))
	if err != nil {
		return sum, err
	}
	for _, a := range registrations {
		res, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO alert_registrations (id, farmer_name, phone_number, location, crop_types, alert_radius, registered_at, updated_at, is_active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.FarmerName, a.PhoneNumber, a.Location, a.CropTypes, a.AlertRadius, a.RegisteredAt, a.UpdatedAt, boolToInt(a.IsActive))
		if err != nil {
			return sum, fmt.Errorf("import alert registration %d: %w", a.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			sum.Alerts++
		}
	}

	detections, err := loadJSON[DetectionRecord](path(detectionsFile))
	if err != nil {
		return sum, err
	}
	for _, d := range detections {
		res, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO detection_history (id, user_id, image, prediction, confidence, timestamp)
			VALUES (?, ?, ?, ?, ?, ?)`,
			d.ID, d.UserID, d.Image, d.Prediction, d.Confidence, d.Timestamp)
		if err != nil {
			return sum, fmt.Errorf("import detection record %d: %w", d.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			sum.Detections++
		}
	}

	return sum, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
