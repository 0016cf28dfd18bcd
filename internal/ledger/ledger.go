// Package ledger owns user accounts: the credits balance, the
// monthly-resetting detection token balance, and the friends list.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gaunroots/internal/metrics"
	"gaunroots/internal/store"
)

// MonthlyFreeTokens is the balance every user starts each calendar month
// with. The reset overwrites whatever balance the previous month left,
// including purchased surplus.
const MonthlyFreeTokens = 5

// Service errors surfaced to the HTTP layer.
var (
	ErrInvalidQuantity    = errors.New("token quantity must be at least 1")
	ErrInsufficientTokens = errors.New("insufficient tokens")
)

// Config carries ledger settings.
type Config struct {
	TokenPrice int
}

// Service implements the user ledger on top of a record store.
type Service struct {
	store   store.Store
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates a ledger service.
func New(st store.Store, cfg Config, logger *slog.Logger, metricRegistry *metrics.Metrics) *Service {
	return &Service{
		store:   st,
		cfg:     cfg,
		logger:  logger.With("component", "ledger"),
		metrics: metricRegistry,
		now:     time.Now,
	}
}

// TokenBalance reports a user's token state alongside the unit price.
type TokenBalance struct {
	Tokens        int    `json:"tokens"`
	LastReset     string `json:"lastReset"`
	PricePerToken int    `json:"pricePerToken"`
}

// PurchaseResult reports the outcome of a token purchase.
type PurchaseResult struct {
	Tokens    int `json:"tokens"`
	TotalCost int `json:"totalCost"`
}

func (s *Service) currentMonth() string {
	return s.now().Format("2006-01")
}

// Register creates a user. The (name, type) pair must be unique,
// case-insensitively on name.
func (s *Service) Register(ctx context.Context, name, userType string) (*store.User, error) {
	user, err := s.store.CreateUser(ctx, name, userType, s.currentMonth())
	if err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "id", user.ID, "type", user.Type)
	return user, nil
}

// Login matches name case-insensitively and type exactly, applying the
// monthly token reset as a side effect before returning.
func (s *Service) Login(ctx context.Context, name, userType string) (*store.User, error) {
	user, err := s.store.GetUserByNameType(ctx, name, userType)
	if err != nil {
		return nil, err
	}
	return s.applyMonthlyReset(ctx, user)
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id int64) (*store.User, error) {
	return s.store.GetUserByID(ctx, id)
}

// Update applies a partial update; nil fields are left unchanged.
func (s *Service) Update(ctx context.Context, id int64, upd store.UserUpdate) (*store.User, error) {
	return s.store.UpdateUser(ctx, id, upd)
}

// AddCredits adds amount to the running balance. Amounts may be negative;
// no floor is enforced.
func (s *Service) AddCredits(ctx context.Context, id int64, amount int) (*store.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	total := user.Credits + amount
	return s.store.UpdateUser(ctx, id, store.UserUpdate{Credits: &total})
}

// AddFriend adds a name to the user's friend list; adding an existing
// friend is a no-op.
func (s *Service) AddFriend(ctx context.Context, id int64, friendName string) (*store.User, error) {
	return s.store.AddUserFriend(ctx, id, friendName)
}

// Tokens returns the current balance and unit price, applying the monthly
// reset first.
func (s *Service) Tokens(ctx context.Context, id int64) (*TokenBalance, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user, err = s.applyMonthlyReset(ctx, user)
	if err != nil {
		return nil, err
	}
	return &TokenBalance{
		Tokens:        user.Tokens,
		LastReset:     user.LastTokenReset,
		PricePerToken: s.cfg.TokenPrice,
	}, nil
}

// Purchase credits quantity tokens at the fixed unit price. The monthly
// reset is applied first so a stale balance is never topped up.
func (s *Service) Purchase(ctx context.Context, id int64, quantity int) (*PurchaseResult, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user, err = s.applyMonthlyReset(ctx, user)
	if err != nil {
		return nil, err
	}

	total := user.Tokens + quantity
	user, err = s.store.UpdateUser(ctx, id, store.UserUpdate{Tokens: &total})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.TokensPurchased.Add(float64(quantity))
	}
	s.logger.Info("tokens purchased", "user_id", id, "quantity", quantity)
	return &PurchaseResult{
		Tokens:    user.Tokens,
		TotalCost: quantity * s.cfg.TokenPrice,
	}, nil
}

// UseToken debits exactly one token after applying the monthly reset,
// failing with ErrInsufficientTokens when the balance is empty.
func (s *Service) UseToken(ctx context.Context, id int64) (remaining int, err error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return 0, err
	}
	user, err = s.applyMonthlyReset(ctx, user)
	if err != nil {
		return 0, err
	}
	if user.Tokens < 1 {
		return 0, ErrInsufficientTokens
	}

	total := user.Tokens - 1
	user, err = s.store.UpdateUser(ctx, id, store.UserUpdate{Tokens: &total})
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.TokensConsumed.Inc()
	}
	return user.Tokens, nil
}

// applyMonthlyReset grants the free monthly balance when the stored reset
// month differs from the current one, persisting before returning. Any
// unused balance from the prior month is discarded.
func (s *Service) applyMonthlyReset(ctx context.Context, user *store.User) (*store.User, error) {
	month := s.currentMonth()
	if user.LastTokenReset == month {
		return user, nil
	}

	tokens := MonthlyFreeTokens
	updated, err := s.store.UpdateUser(ctx, user.ID, store.UserUpdate{
		Tokens:         &tokens,
		LastTokenReset: &month,
	})
	if err != nil {
		return nil, fmt.Errorf("apply monthly token reset: %w", err)
	}
	s.logger.Info("monthly tokens reset", "user_id", user.ID, "month", month)
	return updated, nil
}
