package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mrcode/directdose/internal/models"
)

// openStores returns the stores under test: always SQLite, plus PostgreSQL
// when DIRECTDOSE_TEST_DATABASE_URL is set.
func openStores(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	stores := map[string]Store{}

	sqlite, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })
	stores["sqlite"] = sqlite

	if url := os.Getenv("DIRECTDOSE_TEST_DATABASE_URL"); url != "" {
		pg, err := OpenPostgres(ctx, url)
		if err != nil {
			t.Fatalf("OpenPostgres() error = %v", err)
		}
		t.Cleanup(func() {
			for _, table := range []string{"profiles", "meals", "icr_profiles", "basal_profiles"} {
				_, _ = pg.pool.Exec(context.Background(), "DELETE FROM "+table)
			}
			_ = pg.Close()
		})
		stores["postgres"] = pg
	}

	return stores
}

func TestStore_Profile(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := s.GetProfile(ctx, "user-1"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("GetProfile() on empty store error = %v, want ErrNotFound", err)
			}

			p := models.NewProfile("user-1")
			p.Username = "sam"
			if err := s.UpsertProfile(ctx, p); err != nil {
				t.Fatalf("UpsertProfile() error = %v", err)
			}

			p.InsulinCarbRatio = 12
			basal := 18.0
			p.BasalInsulin = &basal
			if err := s.UpsertProfile(ctx, p); err != nil {
				t.Fatalf("second UpsertProfile() error = %v", err)
			}

			got, err := s.GetProfile(ctx, "user-1")
			if err != nil {
				t.Fatalf("GetProfile() error = %v", err)
			}
			if got.InsulinCarbRatio != 12 || got.Username != "sam" {
				t.Errorf("profile = %+v", got)
			}
			if got.BasalInsulin == nil || *got.BasalInsulin != 18 {
				t.Errorf("BasalInsulin = %v, want 18", got.BasalInsulin)
			}
		})
	}
}

func TestStore_RequiresUser(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.UpsertProfile(context.Background(), &models.Profile{}); err == nil {
				t.Error("UpsertProfile() without user id should fail")
			}
			if err := s.SaveMeal(context.Background(), &models.Meal{}); err == nil {
				t.Error("SaveMeal() without user id should fail")
			}
		})
	}
}

func TestStore_Meals(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

			first := &models.Meal{UserID: "user-1", Description: "oatmeal", MealPeriod: models.Breakfast, Carbs: 40, Insulin: 2.7, CreatedAt: base}
			second := &models.Meal{UserID: "user-1", Description: "rice", MealPeriod: models.Lunch, Carbs: 44.5, Insulin: 3.0, CreatedAt: base.Add(4 * time.Hour)}
			other := &models.Meal{UserID: "user-2", Description: "apple", Carbs: 20.7, CreatedAt: base}

			for _, m := range []*models.Meal{first, second, other} {
				if err := s.SaveMeal(ctx, m); err != nil {
					t.Fatalf("SaveMeal() error = %v", err)
				}
				if m.ID == "" {
					t.Fatal("SaveMeal() should assign an ID")
				}
			}

			meals, err := s.ListMeals(ctx, "user-1", 0)
			if err != nil {
				t.Fatalf("ListMeals() error = %v", err)
			}
			if len(meals) != 2 {
				t.Fatalf("ListMeals() returned %d meals, want 2", len(meals))
			}
			if meals[0].Description != "rice" || meals[1].Description != "oatmeal" {
				t.Errorf("ListMeals() order = %s, %s, want newest first", meals[0].Description, meals[1].Description)
			}

			if err := s.DeleteMeal(ctx, "user-2", first.ID); !errors.Is(err, ErrNotFound) {
				t.Errorf("DeleteMeal() of another user's meal error = %v, want ErrNotFound", err)
			}
			if err := s.DeleteMeal(ctx, "user-1", first.ID); err != nil {
				t.Fatalf("DeleteMeal() error = %v", err)
			}
			meals, _ = s.ListMeals(ctx, "user-1", 10)
			if len(meals) != 1 {
				t.Errorf("ListMeals() after delete returned %d meals, want 1", len(meals))
			}
		})
	}
}

func TestStore_ICRProfile(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

			p := &models.ICRProfile{UserID: "user-1", TotalDailyInsulin: 40, InitialICR: 12.5, ISF: 45, TargetBG: 140, UpdatedAt: now}
			p.Days[0] = &models.DayResult{Day: 1, PremealBG: 110, CarbsGrams: 50, PostmealBG: 180, InsulinDoseUnits: 4, BasisICR: 12.5, AdjustedICR: 16.1, TestedAt: now}
			if err := s.UpsertICRProfile(ctx, p); err != nil {
				t.Fatalf("UpsertICRProfile() error = %v", err)
			}

			final := 16.1
			p.FinalICR = &final
			if err := s.UpsertICRProfile(ctx, p); err != nil {
				t.Fatalf("second UpsertICRProfile() error = %v", err)
			}

			got, err := s.GetICRProfile(ctx, "user-1")
			if err != nil {
				t.Fatalf("GetICRProfile() error = %v", err)
			}
			if got.CompletedDays() != 1 || got.Days[0].AdjustedICR != 16.1 {
				t.Errorf("days = %+v", got.Days)
			}
			if got.FinalICR == nil || *got.FinalICR != 16.1 {
				t.Errorf("FinalICR = %v, want 16.1", got.FinalICR)
			}
			if _, err := s.GetICRProfile(ctx, "user-2"); !errors.Is(err, ErrNotFound) {
				t.Errorf("GetICRProfile() for unknown user error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStore_BasalProfiles(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			day1 := &models.BasalProfile{UserID: "user-1", TestDate: "2024-03-01", TestType: models.TestOvernight, CurrentBasalDose: 20, BGChange: 30, RecommendedAdjustmentUnits: 3}
			day1.AppendHistory(models.AdjustmentHistoryEntry{AdjustmentUnits: 3, Reason: "rose"})
			day2 := &models.BasalProfile{UserID: "user-1", TestDate: "2024-03-04", TestType: models.TestOvernight, CurrentBasalDose: 23}

			for _, p := range []*models.BasalProfile{day1, day2} {
				if err := s.UpsertBasalProfile(ctx, p); err != nil {
					t.Fatalf("UpsertBasalProfile() error = %v", err)
				}
			}

			day1.AppendHistory(models.AdjustmentHistoryEntry{AdjustmentUnits: 1, Reason: "thirsty"})
			if err := s.UpsertBasalProfile(ctx, day1); err != nil {
				t.Fatalf("UpsertBasalProfile() same date error = %v", err)
			}

			got, err := s.GetBasalProfile(ctx, "user-1", "2024-03-01")
			if err != nil {
				t.Fatalf("GetBasalProfile() error = %v", err)
			}
			if len(got.History) != 2 || got.History[0].Reason != "rose" {
				t.Errorf("History = %+v, want both entries in order", got.History)
			}

			list, err := s.ListBasalProfiles(ctx, "user-1", 0)
			if err != nil {
				t.Fatalf("ListBasalProfiles() error = %v", err)
			}
			if len(list) != 2 || list[0].TestDate != "2024-03-04" {
				t.Errorf("ListBasalProfiles() = %+v, want two tests newest first", list)
			}
		})
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	settings := models.DefaultSettings()
	settings.DatabaseDriver = "mysql"

	if _, err := Open(context.Background(), settings); err == nil {
		t.Error("Open() with unsupported driver should fail")
	}
}

func TestOpen_SQLite(t *testing.T) {
	settings := models.DefaultSettings()
	settings.DatabaseURL = filepath.Join(t.TempDir(), "nested", "directdose.db")

	s, err := Open(context.Background(), settings)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = s.Close() }()

	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestListLimit(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, DefaultListLimit},
		{-1, DefaultListLimit},
		{10, 10},
		{1000, DefaultListLimit},
	}
	for _, tt := range tests {
		if got := listLimit(tt.in); got != tt.want {
			t.Errorf("listLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
