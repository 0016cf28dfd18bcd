package store

import (
	"context"
	"errors"
)

// Sentinel errors mapped to HTTP statuses at the handler boundary.
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// Store defines the interface for data persistence. Two implementations
// exist: a JSON-file directory (JSONStore) and a single SQLite database
// (SQLiteStore).
type Store interface {
	// Lifecycle
	Close()
	Ping(ctx context.Context) error

	// Users
	CreateUser(ctx context.Context, name, userType, resetMonth string) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByNameType(ctx context.Context, name, userType string) (*User, error)
	UpdateUser(ctx context.Context, id int64, upd UserUpdate) (*User, error)
	AddUserFriend(ctx context.Context, id int64, friendName string) (*User, error)

	// Products
	ListProducts(ctx context.Context) ([]Product, error)
	ListProductsBySeller(ctx context.Context, sellerID int64) ([]Product, error)
	CreateProduct(ctx context.Context, p Product) (*Product, error)
	DeleteProduct(ctx context.Context, id int64) (bool, error)
	IncrementProductViews(ctx context.Context, id int64) (*Product, error)

	// Disease reports
	CreateDiseaseReport(ctx context.Context, report DiseaseReport) (*DiseaseReport, error)
	ListRecentDiseaseReports(ctx context.Context, location string, limit int) ([]DiseaseReport, error)

	// Alert registrations
	GetAlertRegistrationByPhone(ctx context.Context, phone string) (*AlertRegistration, error)
	UpsertAlertRegistration(ctx context.Context, reg AlertRegistration) (*AlertRegistration, error)
	ListAlertRegistrations(ctx context.Context) ([]AlertRegistration, error)

	// Detection history
	CreateDetectionRecord(ctx context.Context, rec DetectionRecord) (*DetectionRecord, error)
	ListUserDetections(ctx context.Context, userID int64) ([]DetectionRecord, error)
	DeleteDetectionRecord(ctx context.Context, id int64) (bool, error)
}
