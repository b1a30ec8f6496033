package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/mrcode/directdose/internal/models"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS meals (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		payload BLOB NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_meals_user ON meals(user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS icr_profiles (
		user_id TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS basal_profiles (
		user_id TEXT NOT NULL,
		test_date TEXT NOT NULL,
		payload BLOB NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, test_date)
	)`,
}

// SQLiteStore keeps documents in a local SQLite file
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (and creates if needed) the database at path
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers
	db.SetMaxOpenConns(1)

	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file path
func (s *SQLiteStore) Path() string {
	return s.path
}

// Ping checks the database connection
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) getPayload(ctx context.Context, query string, args ...any) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// GetProfile returns the profile of userID
func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	payload, err := s.getPayload(ctx, `SELECT payload FROM profiles WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return decode[models.Profile](payload)
}

// UpsertProfile inserts or replaces a profile
func (s *SQLiteStore) UpsertProfile(ctx context.Context, p *models.Profile) error {
	if err := requireUser(p.UserID); err != nil {
		return err
	}
	payload, err := encode(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		p.UserID, payload, p.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// SaveMeal stores a meal, assigning an ID and timestamp when missing
func (s *SQLiteStore) SaveMeal(ctx context.Context, m *models.Meal) error {
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
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO meals (id, user_id, payload, created_at) VALUES (?, ?, ?, ?)`,
		m.ID, m.UserID, payload, m.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save meal: %w", err)
	}
	return nil
}

// ListMeals returns the newest meals of userID first
func (s *SQLiteStore) ListMeals(ctx context.Context, userID string, limit int) ([]models.Meal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM meals WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list meals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	meals := []models.Meal{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan meal: %w", err)
		}
		m, err := decode[models.Meal](payload)
		if err != nil {
			return nil, err
		}
		meals = append(meals, *m)
	}
	return meals, rows.Err()
}

// DeleteMeal removes a meal owned by userID
func (s *SQLiteStore) DeleteMeal(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM meals WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete meal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete meal: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetICRProfile returns the ICR estimation state of userID
func (s *SQLiteStore) GetICRProfile(ctx context.Context, userID string) (*models.ICRProfile, error) {
	payload, err := s.getPayload(ctx, `SELECT payload FROM icr_profiles WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("get icr profile: %w", err)
	}
	return decode[models.ICRProfile](payload)
}

// UpsertICRProfile inserts or replaces the ICR state keyed by user
func (s *SQLiteStore) UpsertICRProfile(ctx context.Context, p *models.ICRProfile) error {
	if err := requireUser(p.UserID); err != nil {
		return err
	}
	payload, err := encode(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO icr_profiles (user_id, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		p.UserID, payload, p.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert icr profile: %w", err)
	}
	return nil
}

// GetBasalProfile returns the basal test of userID on testDate
func (s *SQLiteStore) GetBasalProfile(ctx context.Context, userID, testDate string) (*models.BasalProfile, error) {
	payload, err := s.getPayload(ctx,
		`SELECT payload FROM basal_profiles WHERE user_id = ? AND test_date = ?`, userID, testDate)
	if err != nil {
		return nil, fmt.Errorf("get basal profile: %w", err)
	}
	return decode[models.BasalProfile](payload)
}

// UpsertBasalProfile inserts or replaces the basal test keyed by (user, date)
func (s *SQLiteStore) UpsertBasalProfile(ctx context.Context, p *models.BasalProfile) error {
	if err := requireUser(p.UserID); err != nil {
		return err
	}
	payload, err := encode(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO basal_profiles (user_id, test_date, payload, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, test_date) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		p.UserID, p.TestDate, payload, p.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert basal profile: %w", err)
	}
	return nil
}

// ListBasalProfiles returns the basal tests of userID, newest date first
func (s *SQLiteStore) ListBasalProfiles(ctx context.Context, userID string, limit int) ([]models.BasalProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM basal_profiles WHERE user_id = ? ORDER BY test_date DESC LIMIT ?`,
		userID, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list basal profiles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	profiles := []models.BasalProfile{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan basal profile: %w", err)
		}
		p, err := decode[models.BasalProfile](payload)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}
