// Package alerts handles disease reports, farmer alert registrations and
// the community notification fan-out.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gaunroots/internal/cache"
	"gaunroots/internal/metrics"
	"gaunroots/internal/store"
)

const recentCachePrefix = "recent_alerts:"

// ErrDeliveryFailed is returned by the direct single-recipient alert when
// the mail relay rejects the send.
var ErrDeliveryFailed = errors.New("email delivery failed")

// Sender delivers a single alert email, reporting success.
type Sender interface {
	Send(ctx context.Context, recipient, disease, crop, location string) bool
	Enabled() bool
}

// Config carries alert service settings.
type Config struct {
	// DefaultLocation replaces any caller-supplied location; no geocoding
	// is performed.
	DefaultLocation string
	CommunityEmail  string
	DefaultDisease  string
	DefaultCrop     string
	CacheTTL        time.Duration
}

// Service implements disease reporting and alert registration.
type Service struct {
	store   store.Store
	sender  Sender
	cache   *cache.Redis
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates an alert service. The cache may be nil.
func New(st store.Store, sender Sender, redis *cache.Redis, cfg Config, logger *slog.Logger, metricRegistry *metrics.Metrics) *Service {
	if cfg.DefaultDisease == "" {
		cfg.DefaultDisease = "Late Blight"
	}
	if cfg.DefaultCrop == "" {
		cfg.DefaultCrop = "Tomato"
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	return &Service{
		store:   st,
		sender:  sender,
		cache:   redis,
		cfg:     cfg,
		logger:  logger.With("component", "alerts"),
		metrics: metricRegistry,
		now:     time.Now,
	}
}

// ReportInput is a disease report submission.
type ReportInput struct {
	DiseaseName   string
	CropType      string
	Severity      string
	Description   string
	ReporterPhone string
}

// RegistrationInput is a farmer alert subscription request.
type RegistrationInput struct {
	FarmerName  string
	PhoneNumber string
	CropTypes   string
	AlertRadius int
}

// SubmitReport persists a report and notifies the community address,
// returning the stored report and the number of notifications dispatched.
// Notification failure is swallowed: the report is already persisted and
// the count simply stays at zero.
func (s *Service) SubmitReport(ctx context.Context, in ReportInput) (*store.DiseaseReport, int, error) {
	report := store.DiseaseReport{
		DiseaseName:   in.DiseaseName,
		CropType:      in.CropType,
		Severity:      in.Severity,
		Description:   in.Description,
		ReporterPhone: in.ReporterPhone,
		Location:      s.cfg.DefaultLocation,
		ReportedAt:    s.now().UTC().Format(time.RFC3339),
		Status:        "pending_verification",
	}

	saved, err := s.store.CreateDiseaseReport(ctx, report)
	if err != nil {
		return nil, 0, fmt.Errorf("persist disease report: %w", err)
	}

	if err := s.cache.DeleteByPrefix(ctx, recentCachePrefix); err != nil {
		s.logger.Warn("failed invalidating recent alerts cache", "error", err)
	}

	notified := s.notifyCommunity(ctx, saved.DiseaseName, saved.CropType, saved.Location)
	s.logger.Info("disease report submitted",
		"id", saved.ID, "disease", saved.DiseaseName, "notified", notified)
	return saved, notified, nil
}

// RegisterAlert upserts an alert subscription keyed by phone number. A
// repeated registration overwrites the mutable fields instead of creating
// a second record.
func (s *Service) RegisterAlert(ctx context.Context, in RegistrationInput) (*store.AlertRegistration, error) {
	stamp := s.now().UTC().Format(time.RFC3339)
	reg := store.AlertRegistration{
		FarmerName:   in.FarmerName,
		PhoneNumber:  in.PhoneNumber,
		CropTypes:    in.CropTypes,
		AlertRadius:  in.AlertRadius,
		Location:     s.cfg.DefaultLocation,
		RegisteredAt: stamp,
		UpdatedAt:    stamp,
	}
	saved, err := s.store.UpsertAlertRegistration(ctx, reg)
	if err != nil {
		return nil, fmt.Errorf("upsert alert registration: %w", err)
	}
	s.logger.Info("alert registration stored", "id", saved.ID, "location", saved.Location)
	return saved, nil
}

// RecentReports lists the newest reports, optionally filtered by a
// case-insensitive location substring, newest first, truncated to limit
// (default 10). Results are served from the cache when fresh.
func (s *Service) RecentReports(ctx context.Context, location string, limit int) ([]store.DiseaseReport, error) {
	if limit <= 0 {
		limit = 10
	}
	key := fmt.Sprintf("%s%s:%d", recentCachePrefix, location, limit)

	var cached []store.DiseaseReport
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err != nil {
		s.logger.Warn("recent alerts cache read failed", "error", err)
	} else if hit {
		return cached, nil
	}

	reports, err := s.store.ListRecentDiseaseReports(ctx, location, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent reports: %w", err)
	}

	if err := s.cache.SetJSON(ctx, key, reports, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("recent alerts cache write failed", "error", err)
	}
	return reports, nil
}

// DirectAlert describes a delivered alert with defaults applied.
type DirectAlert struct {
	Email    string `json:"email"`
	Disease  string `json:"disease"`
	Crop     string `json:"crop"`
	Location string `json:"location"`
}

// SendDirectAlert delivers one alert to a specific address. Unlike the
// community fan-out, delivery failure is an error here: the caller asked
// for this exact send.
func (s *Service) SendDirectAlert(ctx context.Context, email, disease, crop, location string) (*DirectAlert, error) {
	if disease == "" {
		disease = s.cfg.DefaultDisease
	}
	if crop == "" {
		crop = s.cfg.DefaultCrop
	}
	if location == "" {
		location = s.cfg.DefaultLocation
	}
	if !s.sender.Send(ctx, email, disease, crop, location) {
		return nil, ErrDeliveryFailed
	}
	return &DirectAlert{Email: email, Disease: disease, Crop: crop, Location: location}, nil
}

// SendCommunityAlert broadcasts a demo alert to the community address and
// returns the number of notifications sent.
func (s *Service) SendCommunityAlert(ctx context.Context) int {
	return s.notifyCommunity(ctx, s.cfg.DefaultDisease, s.cfg.DefaultCrop, s.cfg.DefaultLocation)
}

// notifyCommunity sends to the single configured community address; the
// count is 0 or 1 since nearby farmers are represented by one mailbox.
func (s *Service) notifyCommunity(ctx context.Context, disease, crop, location string) int {
	if s.cfg.CommunityEmail == "" {
		return 0
	}
	if s.sender.Send(ctx, s.cfg.CommunityEmail, disease, crop, location) {
		s.logger.Info("community notification sent", "recipient", s.cfg.CommunityEmail)
		return 1
	}
	if s.metrics != nil {
		s.metrics.Errors.WithLabelValues("alerts").Inc()
	}
	return 0
}
