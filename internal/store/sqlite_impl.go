package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// -- Users --

func (s *SQLiteStore) CreateUser(ctx context.Context, name, userType, resetMonth string) (*User, error) {
	const existsQ = `
SELECT id FROM users
WHERE LOWER(name) = LOWER(?) AND type = ?
LIMIT 1;
`
	var existing int64
	err := s.db.QueryRowContext(ctx, existsQ, name, userType).Scan(&existing)
	switch {
	case err == nil:
		return nil, fmt.Errorf("user %q (%s): %w", name, userType, ErrConflict)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	const q = `INSERT INTO users (name, type, last_token_reset) VALUES (?, ?, ?);`
	res, err := s.db.ExecContext(ctx, q, name, userType, resetMonth)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, fmt.Errorf("user %q (%s): %w", name, userType, ErrConflict)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert user id: %w", err)
	}
	return s.GetUserByID(ctx, id)
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	const q = `
SELECT id, name, type, credits, tokens, last_token_reset, created_at
FROM users
WHERE id = ?
LIMIT 1;
`
	user, err := s.scanUser(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	if err := s.loadFriends(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *SQLiteStore) GetUserByNameType(ctx context.Context, name, userType string) (*User, error) {
	const q = `
SELECT id, name, type, credits, tokens, last_token_reset, created_at
FROM users
WHERE LOWER(name) = LOWER(?) AND type = ?
LIMIT 1;
`
	user, err := s.scanUser(s.db.QueryRowContext(ctx, q, name, userType))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q (%s): %w", name, userType, ErrNotFound)
		}
		return nil, fmt.Errorf("get user by name and type: %w", err)
	}
	if err := s.loadFriends(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *SQLiteStore) UpdateUser(ctx context.Context, id int64, upd UserUpdate) (*User, error) {
	if _, err := s.GetUserByID(ctx, id); err != nil {
		return nil, err
	}

	var sets []string
	var args []any
	if upd.Credits != nil {
		sets = append(sets, "credits = ?")
		args = append(args, *upd.Credits)
	}
	if upd.Tokens != nil {
		sets = append(sets, "tokens = ?")
		args = append(args, *upd.Tokens)
	}
	if upd.LastTokenReset != nil {
		sets = append(sets, "last_token_reset = ?")
		args = append(args, *upd.LastTokenReset)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update user: %w", err)
	}
	defer tx.Rollback()

	if len(sets) > 0 {
		args = append(args, id)
		q := fmt.Sprintf("UPDATE users SET %s WHERE id = ?;", strings.Join(sets, ", "))
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
	}
	if upd.Friends != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM user_friends WHERE user_id = ?;`, id); err != nil {
			return nil, fmt.Errorf("replace friends: %w", err)
		}
		for _, friend := range *upd.Friends {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO user_friends (user_id, friend_name) VALUES (?, ?);`, id, friend); err != nil {
				return nil, fmt.Errorf("insert friend: %w", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update user: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

func (s *SQLiteStore) AddUserFriend(ctx context.Context, id int64, friendName string) (*User, error) {
	if _, err := s.GetUserByID(ctx, id); err != nil {
		return nil, err
	}
	const q = `INSERT OR IGNORE INTO user_friends (user_id, friend_name) VALUES (?, ?);`
	if _, err := s.db.ExecContext(ctx, q, id, friendName); err != nil {
		return nil, fmt.Errorf("add friend: %w", err)
	}
	return s.GetUserByID(ctx, id)
}

func (s *SQLiteStore) scanUser(row rowScanner) (*User, error) {
	var u User
	var lastReset, createdAt sql.NullString
	if err := row.Scan(&u.ID, &u.Name, &u.Type, &u.Credits, &u.Tokens, &lastReset, &createdAt); err != nil {
		return nil, err
	}
	u.LastTokenReset = lastReset.String
	u.CreatedAt = createdAt.String
	return &u, nil
}

func (s *SQLiteStore) loadFriends(ctx context.Context, u *User) error {
	const q = `SELECT friend_name FROM user_friends WHERE user_id = ? ORDER BY id;`
	rows, err := s.db.QueryContext(ctx, q, u.ID)
	if err != nil {
		return fmt.Errorf("list friends: %w", err)
	}
	defer rows.Close()

	u.Friends = []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scan friend: %w", err)
		}
		u.Friends = append(u.Friends, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate friends: %w", err)
	}
	return nil
}

// -- Products --

const productColumns = `id, seller_id, seller_name, name, price, description, type, phone, views, created_at`

func (s *SQLiteStore) ListProducts(ctx context.Context) ([]Product, error) {
	return s.queryProducts(ctx, fmt.Sprintf(`SELECT %s FROM products;`, productColumns))
}

func (s *SQLiteStore) ListProductsBySeller(ctx context.Context, sellerID int64) ([]Product, error) {
	return s.queryProducts(ctx,
		fmt.Sprintf(`SELECT %s FROM products WHERE seller_id = ?;`, productColumns), sellerID)
}

func (s *SQLiteStore) CreateProduct(ctx context.Context, p Product) (*Product, error) {
	const q = `
INSERT INTO products (seller_id, seller_name, name, price, description, type, phone, views)
VALUES (?, ?, ?, ?, ?, ?, ?, 0);
`
	res, err := s.db.ExecContext(ctx, q, p.SellerID, p.SellerName, p.Name, p.Price, p.Description, p.Type, p.Phone)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert product id: %w", err)
	}
	return s.getProductByID(ctx, id)
}

func (s *SQLiteStore) DeleteProduct(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?;`, id)
	if err != nil {
		return false, fmt.Errorf("delete product: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete product rows: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) IncrementProductViews(ctx context.Context, id int64) (*Product, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE products SET views = views + 1 WHERE id = ?;`, id)
	if err != nil {
		return nil, fmt.Errorf("increment views: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return s.getProductByID(ctx, id)
}

func (s *SQLiteStore) getProductByID(ctx context.Context, id int64) (*Product, error) {
	q := fmt.Sprintf(`SELECT %s FROM products WHERE id = ? LIMIT 1;`, productColumns)
	p, err := scanProduct(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) queryProducts(ctx context.Context, q string, args ...any) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

func scanProduct(row rowScanner) (*Product, error) {
	var p Product
	var description, ptype, phone, createdAt sql.NullString
	if err := row.Scan(&p.ID, &p.SellerID, &p.SellerName, &p.Name, &p.Price, &description, &ptype, &phone, &p.Views, &createdAt); err != nil {
		return nil, err
	}
	p.Description = description.String
	p.Type = ptype.String
	p.Phone = phone.String
	p.CreatedAt = createdAt.String
	return &p, nil
}

// -- Disease reports --

const reportColumns = `id, disease_name, crop_type, severity, description, reporter_phone, location, reported_at, status`

func (s *SQLiteStore) CreateDiseaseReport(ctx context.Context, report DiseaseReport) (*DiseaseReport, error) {
	const q = `
INSERT INTO disease_reports (disease_name, crop_type, severity, description, reporter_phone, location, reported_at, status)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`
	res, err := s.db.ExecContext(ctx, q,
		report.DiseaseName,
		report.CropType,
		report.Severity,
		report.Description,
		report.ReporterPhone,
		report.Location,
		report.ReportedAt,
		report.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("insert disease report: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert disease report id: %w", err)
	}

	q2 := fmt.Sprintf(`SELECT %s FROM disease_reports WHERE id = ? LIMIT 1;`, reportColumns)
	inserted, err := scanReport(s.db.QueryRowContext(ctx, q2, id))
	if err != nil {
		return nil, fmt.Errorf("get disease report: %w", err)
	}
	return inserted, nil
}

func (s *SQLiteStore) ListRecentDiseaseReports(ctx context.Context, location string, limit int) ([]DiseaseReport, error) {
	if limit <= 0 {
		limit = 10
	}

	var rows *sql.Rows
	var err error
	if location != "" {
		q := fmt.Sprintf(`
SELECT %s FROM disease_reports
WHERE LOWER(location) LIKE '%%' || LOWER(?) || '%%'
ORDER BY reported_at DESC, id DESC
LIMIT ?;`, reportColumns)
		rows, err = s.db.QueryContext(ctx, q, location, limit)
	} else {
		q := fmt.Sprintf(`
SELECT %s FROM disease_reports
ORDER BY reported_at DESC, id DESC
LIMIT ?;`, reportColumns)
		rows, err = s.db.QueryContext(ctx, q, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list disease reports: %w", err)
	}
	defer rows.Close()

	var reports []DiseaseReport
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan disease report: %w", err)
		}
		reports = append(reports, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate disease reports: %w", err)
	}
	return reports, nil
}

func scanReport(row rowScanner) (*DiseaseReport, error) {
	var r DiseaseReport
	var description, reporterPhone, reportedAt sql.NullString
	if err := row.Scan(&r.ID, &r.DiseaseName, &r.CropType, &r.Severity, &description, &reporterPhone, &r.Location, &reportedAt, &r.Status); err != nil {
		return nil, err
	}
	r.Description = description.String
	r.ReporterPhone = reporterPhone.String
	r.ReportedAt = reportedAt.String
	return &r, nil
}

// -- Alert registrations --

const alertColumns = `id, farmer_name, phone_number, crop_types, alert_radius, location, registered_at, updated_at, is_active`

func (s *SQLiteStore) GetAlertRegistrationByPhone(ctx context.Context, phone string) (*AlertRegistration, error) {
	q := fmt.Sprintf(`SELECT %s FROM alert_registrations WHERE phone_number = ? LIMIT 1;`, alertColumns)
	reg, err := scanAlert(s.db.QueryRowContext(ctx, q, phone))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("alert registration %s: %w", phone, ErrNotFound)
		}
		return nil, fmt.Errorf("get alert registration: %w", err)
	}
	return reg, nil
}

func (s *SQLiteStore) UpsertAlertRegistration(ctx context.Context, reg AlertRegistration) (*AlertRegistration, error) {
	existing, err := s.GetAlertRegistrationByPhone(ctx, reg.PhoneNumber)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if existing != nil {
		const q = `
UPDATE alert_registrations
SET farmer_name = ?, crop_types = ?, alert_radius = ?, location = ?, updated_at = ?
WHERE phone_number = ?;
`
		if _, err := s.db.ExecContext(ctx, q,
			reg.FarmerName, reg.CropTypes, reg.AlertRadius, reg.Location, reg.UpdatedAt, reg.PhoneNumber); err != nil {
			return nil, fmt.Errorf("update alert registration: %w", err)
		}
		return s.GetAlertRegistrationByPhone(ctx, reg.PhoneNumber)
	}

	const q = `
INSERT INTO alert_registrations (farmer_name, phone_number, crop_types, alert_radius, location, registered_at, is_active)
VALUES (?, ?, ?, ?, ?, ?, 1);
`
	if _, err := s.db.ExecContext(ctx, q,
		reg.FarmerName, reg.PhoneNumber, reg.CropTypes, reg.AlertRadius, reg.Location, reg.RegisteredAt); err != nil {
		return nil, fmt.Errorf("insert alert registration: %w", err)
	}
	return s.GetAlertRegistrationByPhone(ctx, reg.PhoneNumber)
}

func (s *SQLiteStore) ListAlertRegistrations(ctx context.Context) ([]AlertRegistration, error) {
	q := fmt.Sprintf(`SELECT %s FROM alert_registrations ORDER BY id;`, alertColumns)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list alert registrations: %w", err)
	}
	defer rows.Close()

	var regs []AlertRegistration
	for rows.Next() {
		reg, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert registrations: %w", err)
	}
	return regs, nil
}

func scanAlert(row rowScanner) (*AlertRegistration, error) {
	var reg AlertRegistration
	var cropTypes, registeredAt, updatedAt sql.NullString
	var active int
	if err := row.Scan(&reg.ID, &reg.FarmerName, &reg.PhoneNumber, &cropTypes, &reg.AlertRadius, &reg.Location, &registeredAt, &updatedAt, &active); err != nil {
		return nil, err
	}
	reg.CropTypes = cropTypes.String
	reg.RegisteredAt = registeredAt.String
	reg.UpdatedAt = updatedAt.String
	reg.IsActive = active != 0
	return &reg, nil
}

// -- Detection history --

const detectionColumns = `id, user_id, image, prediction, confidence, timestamp`

func (s *SQLiteStore) CreateDetectionRecord(ctx context.Context, rec DetectionRecord) (*DetectionRecord, error) {
	if rec.Timestamp == "" {
		rec.Timestamp = nowStamp()
	}
	const q = `
INSERT INTO detection_history (user_id, image, prediction, confidence, timestamp)
VALUES (?, ?, ?, ?, ?);
`
	res, err := s.db.ExecContext(ctx, q, rec.UserID, rec.Image, rec.Prediction, rec.Confidence, rec.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("insert detection record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert detection record id: %w", err)
	}
	rec.ID = id
	return &rec, nil
}

func (s *SQLiteStore) ListUserDetections(ctx context.Context, userID int64) ([]DetectionRecord, error) {
	q := fmt.Sprintf(`
SELECT %s FROM detection_history
WHERE user_id = ?
ORDER BY timestamp DESC, id DESC;`, detectionColumns)
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list detections: %w", err)
	}
	defer rows.Close()

	var records []DetectionRecord
	for rows.Next() {
		var rec DetectionRecord
		var ts sql.NullString
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Image, &rec.Prediction, &rec.Confidence, &ts); err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}
		rec.Timestamp = ts.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate detections: %w", err)
	}
	return records, nil
}

func (s *SQLiteStore) DeleteDetectionRecord(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM detection_history WHERE id = ?;`, id)
	if err != nil {
		return false, fmt.Errorf("delete detection: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete detection rows: %w", err)
	}
	return n > 0, nil
}
