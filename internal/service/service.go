// Package service connects the dosing formulas with nutrition lookups,
// persistence, notifications and metrics.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mrcode/directdose/internal/dosing"
	"github.com/mrcode/directdose/internal/metrics"
	"github.com/mrcode/directdose/internal/models"
	"github.com/mrcode/directdose/internal/notifications"
	"github.com/mrcode/directdose/internal/nutrition"
	"github.com/mrcode/directdose/internal/store"
)

// Service runs dosing requests on behalf of a user. userID may be empty for
// anonymous calculations; those are never persisted.
type Service struct {
	store      store.Store
	aggregator *nutrition.Aggregator
	notifier   notifications.Notifier
	metrics    *metrics.Metrics
	settings   *models.Settings
	now        func() time.Time

	locks sync.Map // userID -> *sync.Mutex
}

// Option configures a Service
type Option func(*Service)

// WithNotifier sets the advisory notifier (default: log only)
func WithNotifier(n notifications.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithMetrics enables counters for calculations and advisories
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New creates a Service. aggregator may be nil when no nutrition lookup
// service is configured.
func New(st store.Store, aggregator *nutrition.Aggregator, settings *models.Settings, opts ...Option) *Service {
	if settings == nil {
		settings = models.DefaultSettings()
	}
	s := &Service{
		store:      st,
		aggregator: aggregator,
		notifier:   notifications.LogNotifier{},
		settings:   settings,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks the data store
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Nutrition resolves a comma-separated food list
func (s *Service) Nutrition(ctx context.Context, query string) (*models.NutritionSummary, error) {
	if s.aggregator == nil {
		return nil, nutrition.ErrNotConfigured
	}
	return s.aggregator.Aggregate(ctx, query)
}

// lockUser serializes read-modify-write cycles of one user's records
func (s *Service) lockUser(userID string) func() {
	v, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *Service) countCalculation(kind string) {
	if s.metrics != nil {
		s.metrics.Calculation(kind)
	}
}

// notify hands advisories to the notifier. Delivery failures are logged and
// never fail the request.
func (s *Service) notify(userID string, advisories []dosing.Advisory) {
	if userID == "" {
		userID = "anonymous"
	}
	for _, a := range advisories {
		if s.metrics != nil {
			s.metrics.Advisory(a)
		}
		if err := s.notifier.Notify(userID, a); err != nil {
			log.Warn().Err(err).Str("user", userID).Str("kind", string(a.Kind)).Msg("advisory notification failed")
		}
	}
}

// parseGlucose parses a positive BG reading and converts it to mg/dL. An
// empty unit selects the configured display unit.
func (s *Service) parseGlucose(field string, n dosing.Number, unit string) (float64, error) {
	v, err := n.Positive(field)
	if err != nil {
		return 0, err
	}
	if unit == "" {
		unit = s.settings.Unit
	}
	if !models.IsMmol(unit) {
		return v, nil
	}
	return dosing.Round1(models.ToMgdl(v)), nil
}

func requireUser(userID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	return nil
}

// ErrUnauthenticated is returned by operations that need a known user
var ErrUnauthenticated = errors.New("a signed-in user is required")
