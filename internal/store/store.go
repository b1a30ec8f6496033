// Package store persists profiles, meals and test results. Each entity is
// kept as a JSON document keyed by its owner, so the SQLite and PostgreSQL
// backends share one schema shape.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mrcode/directdose/internal/models"
)

// ErrNotFound is returned when no row matches
var ErrNotFound = errors.New("not found")

// DefaultListLimit caps list queries when the caller passes no limit
const DefaultListLimit = 100

// Store is the relational data store used by the service layer
type Store interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	UpsertProfile(ctx context.Context, p *models.Profile) error

	SaveMeal(ctx context.Context, m *models.Meal) error
	ListMeals(ctx context.Context, userID string, limit int) ([]models.Meal, error)
	DeleteMeal(ctx context.Context, userID, id string) error

	GetICRProfile(ctx context.Context, userID string) (*models.ICRProfile, error)
	UpsertICRProfile(ctx context.Context, p *models.ICRProfile) error

	GetBasalProfile(ctx context.Context, userID, testDate string) (*models.BasalProfile, error)
	UpsertBasalProfile(ctx context.Context, p *models.BasalProfile) error
	ListBasalProfiles(ctx context.Context, userID string, limit int) ([]models.BasalProfile, error)

	Ping(ctx context.Context) error
	Close() error
}

// Open opens the store selected by settings.DatabaseDriver
func Open(ctx context.Context, settings *models.Settings) (Store, error) {
	switch settings.DatabaseDriver {
	case "postgres":
		return OpenPostgres(ctx, settings.DatabaseURL)
	case "sqlite", "":
		path := settings.DatabaseURL
		if path == "" {
			var err error
			path, err = models.DefaultDatabasePath()
			if err != nil {
				return nil, fmt.Errorf("database path: %w", err)
			}
		}
		return OpenSQLite(ctx, path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", settings.DatabaseDriver)
	}
}

func listLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}

func requireUser(userID string) error {
	if userID == "" {
		return errors.New("user id is required")
	}
	return nil
}

func encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return data, nil
}

func decode[T any](data []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &v, nil
}
