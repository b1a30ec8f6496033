package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mrcode/directdose/internal/models"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		payload JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS meals (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_meals_user ON meals(user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS icr_profiles (
		user_id TEXT PRIMARY KEY,
		payload JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS basal_profiles (
		user_id TEXT NOT NULL,
		test_date TEXT NOT NULL,
		payload JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, test_date)
	)`,
}

// PostgresStore keeps documents in PostgreSQL jsonb columns
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects to databaseURL and creates the schema
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return &PostgresStore{pool: pool}, nil
}

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) getPayload(ctx context.Context, query string, args ...any) ([]byte, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, query, args...).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return payload, nil
}

func (s *PostgresStore) listPayloads(ctx context.Context, query string, args ...any) ([][]byte, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[[]byte])
}

// GetProfile returns the profile of userID
func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	payload, err := s.getPayload(ctx, `SELECT payload FROM profiles WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return decode[models.Profile](payload)
}

// UpsertProfile inserts or replaces a profile
func (s *PostgresStore) UpsertProfile(ctx context.Context, p *models.Profile) error {
	if err := requireUser(p.UserID); err != nil {
		return err
	}
	payload, err := encode(p)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO profiles (user_id, payload, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.pool.Exec(ctx, query, p.UserID, string(payload), p.UpdatedAt.UTC()); err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// SaveMeal stores a meal, assigning an ID and timestamp when missing
func (s *PostgresStore) SaveMeal(ctx context.Context, m *models.Meal) error {
	if err := requireUser(m.UserID); err != nil {
		return err
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	payload, err := encode(m)
	if err != nil {
		return err
	}
	query := `INSERT INTO meals (id, user_id, payload, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := s.pool.Exec(ctx, query, m.ID, m.UserID, string(payload), m.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("failed to save meal: %w", err)
	}
	return nil
}

// ListMeals returns the newest meals of userID first
func (s *PostgresStore) ListMeals(ctx context.Context, userID string, limit int) ([]models.Meal, error) {
	payloads, err := s.listPayloads(ctx,
		`SELECT payload FROM meals WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list meals: %w", err)
	}

	meals := make([]models.Meal, 0, len(payloads))
	for _, payload := range payloads {
		m, err := decode[models.Meal](payload)
		if err != nil {
			return nil, err
		}
		meals = append(meals, *m)
	}
	return meals, nil
}

// DeleteMeal removes a meal owned by userID
func (s *PostgresStore) DeleteMeal(ctx context.Context, userID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM meals WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete meal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetICRProfile returns the ICR estimation state of userID
func (s *PostgresStore) GetICRProfile(ctx context.Context, userID string) (*models.ICRProfile, error) {
	payload, err := s.getPayload(ctx, `SELECT payload FROM icr_profiles WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get icr profile: %w", err)
	}
	return decode[models.ICRProfile](payload)
}

// UpsertICRProfile inserts or replaces the ICR state keyed by user
func (s *PostgresStore) UpsertICRProfile(ctx context.Context, p *models.ICRProfile) error {
	if err := requireUser(p.UserID); err != nil {
		return err
	}
	payload, err := encode(p)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO icr_profiles (user_id, payload, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.pool.Exec(ctx, query, p.UserID, string(payload), p.UpdatedAt.UTC()); err != nil {
		return fmt.Errorf("failed to upsert icr profile: %w", err)
	}
	return nil
}

// GetBasalProfile returns the basal test of userID on testDate
func (s *PostgresStore) GetBasalProfile(ctx context.Context, userID, testDate string) (*models.BasalProfile, error) {
	payload, err := s.getPayload(ctx,
		`SELECT payload FROM basal_profiles WHERE user_id = $1 AND test_date = $2`, userID, testDate)
	if err != nil {
		return nil, fmt.Errorf("failed to get basal profile: %w", err)
	}
	return decode[models.BasalProfile](payload)
}

// UpsertBasalProfile inserts or replaces the basal test keyed by (user, date)
func (s *PostgresStore) UpsertBasalProfile(ctx context.Context, p *models.BasalProfile) error {
	if err := requireUser(p.UserID); err != nil {
		return err
	}
	payload, err := encode(p)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO basal_profiles (user_id, test_date, payload, updated_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, test_date) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.pool.Exec(ctx, query, p.UserID, p.TestDate, string(payload), p.UpdatedAt.UTC()); err != nil {
		return fmt.Errorf("failed to upsert basal profile: %w", err)
	}
	return nil
}

// ListBasalProfiles returns the basal tests of userID, newest date first
func (s *PostgresStore) ListBasalProfiles(ctx context.Context, userID string, limit int) ([]models.BasalProfile, error) {
	payloads, err := s.listPayloads(ctx,
		`SELECT payload FROM basal_profiles WHERE user_id = $1 ORDER BY test_date DESC LIMIT $2`,
		userID, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list basal profiles: %w", err)
	}

	profiles := make([]models.BasalProfile, 0, len(payloads))
	for _, payload := range payloads {
		p, err := decode[models.BasalProfile](payload)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, nil
}
