// Package models contains data structures used throughout the application
package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Basal fraction bounds (share of total daily insulin given as basal)
const (
	MinBasalFraction     = 0.4
	MaxBasalFraction     = 0.5
	DefaultBasalFraction = 0.45
)

// Settings contains all application settings
type Settings struct {
	mu sync.RWMutex `json:"-" yaml:"-"`

	// Server settings
	Port        int    `json:"port" yaml:"port"`
	Environment string `json:"environment" yaml:"environment"`
	LogLevel    string `json:"logLevel" yaml:"log_level"`
	LogPretty   bool   `json:"logPretty" yaml:"log_pretty"`

	// Identity provider (HS256 shared secret of the auth service)
	JWTSecret string `json:"jwtSecret" yaml:"jwt_secret"`

	// Nutrition lookup service
	EdamamBaseURL        string        `json:"edamamBaseUrl" yaml:"edamam_base_url"`
	EdamamAppID          string        `json:"edamamAppId" yaml:"edamam_app_id"`
	EdamamAppKey         string        `json:"edamamAppKey" yaml:"edamam_app_key"`
	LookupTimeout        time.Duration `json:"lookupTimeout" yaml:"lookup_timeout"`
	LookupConcurrency    int           `json:"lookupConcurrency" yaml:"lookup_concurrency"`
	NutritionCacheTTL    time.Duration `json:"nutritionCacheTtl" yaml:"nutrition_cache_ttl"`
	RedisURL             string        `json:"redisUrl" yaml:"redis_url"`
	EnableNutritionCache bool          `json:"enableNutritionCache" yaml:"enable_nutrition_cache"`

	// Data store
	DatabaseDriver string `json:"databaseDriver" yaml:"database_driver"` // "sqlite" or "postgres"
	DatabaseURL    string `json:"databaseUrl" yaml:"database_url"`       // file path for sqlite

	// Dosing settings
	BasalFraction float64 `json:"basalFraction" yaml:"basal_fraction"`
	TargetBG      float64 `json:"targetBG" yaml:"target_bg"` // mg/dL
	Unit          string  `json:"unit" yaml:"unit"`          // "mg/dL" or "mmol/L"

	// Alert settings
	EnableDesktopAlerts bool `json:"enableDesktopAlerts" yaml:"enable_desktop_alerts"`
	RepeatAlertMinutes  int  `json:"repeatAlertMinutes" yaml:"repeat_alert_minutes"` // 0 = no repeat
}

// DefaultSettings returns settings with default values
func DefaultSettings() *Settings {
	return &Settings{
		Port:        8080,
		Environment: "development",
		LogLevel:    "info",
		LogPretty:   false,

		EdamamBaseURL:        "https://api.edamam.com",
		LookupTimeout:        10 * time.Second,
		LookupConcurrency:    1, // sequential, one fetch per item
		NutritionCacheTTL:    24 * time.Hour,
		EnableNutritionCache: false,

		DatabaseDriver: "sqlite",
		DatabaseURL:    "",

		BasalFraction: DefaultBasalFraction,
		TargetBG:      DefaultTargetBG,
		Unit:          UnitMgDL,

		EnableDesktopAlerts: false,
		RepeatAlertMinutes:  15,
	}
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	appDir := filepath.Join(configDir, "directdose")
	if err := os.MkdirAll(appDir, 0750); err != nil {
		return "", err
	}

	return appDir, nil
}

// GetConfigPath returns the full path to the config file.
// DIRECTDOSE_CONFIG overrides the default location.
func GetConfigPath() (string, error) {
	if path := os.Getenv("DIRECTDOSE_CONFIG"); path != "" {
		return path, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.yaml"), nil
}

// DefaultDatabasePath returns the SQLite file used when no database URL is set
func DefaultDatabasePath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "directdose.db"), nil
}

// Load loads settings from the config file, then applies .env and environment overrides
func (s *Settings) Load() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	if err := s.LoadFile(path); err != nil {
		return err
	}

	// A missing .env is the normal case outside development
	_ = godotenv.Load()
	s.ApplyEnv()

	return s.Validate()
}

// LoadFile loads settings from a YAML or JSON file. A missing file keeps the
// current values.
func (s *Settings) LoadFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path) //nolint:gosec // Config path is controlled by the operator
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, s); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		return nil
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), s); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	return nil
}

// Save saves settings to the config file
func (s *Settings) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	var data []byte
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(s, "", "  ")
	} else {
		data, err = yaml.Marshal(s)
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// ApplyEnv overrides settings from environment variables
func (s *Settings) ApplyEnv() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Port = getEnvInt("PORT", s.Port)
	s.Environment = getEnv("ENVIRONMENT", s.Environment)
	s.LogLevel = getEnv("LOG_LEVEL", s.LogLevel)
	s.LogPretty = getEnvBool("LOG_PRETTY", s.LogPretty)
	s.JWTSecret = getEnv("JWT_SECRET", s.JWTSecret)

	s.EdamamBaseURL = getEnv("EDAMAM_BASE_URL", s.EdamamBaseURL)
	s.EdamamAppID = getEnv("EDAMAM_APP_ID", s.EdamamAppID)
	s.EdamamAppKey = getEnv("EDAMAM_APP_KEY", s.EdamamAppKey)
	s.LookupTimeout = getEnvDuration("LOOKUP_TIMEOUT", s.LookupTimeout)
	s.LookupConcurrency = getEnvInt("LOOKUP_CONCURRENCY", s.LookupConcurrency)
	s.NutritionCacheTTL = getEnvDuration("NUTRITION_CACHE_TTL", s.NutritionCacheTTL)
	s.RedisURL = getEnv("REDIS_URL", s.RedisURL)
	s.EnableNutritionCache = getEnvBool("NUTRITION_CACHE", s.EnableNutritionCache)

	s.DatabaseDriver = getEnv("DATABASE_DRIVER", s.DatabaseDriver)
	s.DatabaseURL = getEnv("DATABASE_URL", s.DatabaseURL)

	s.BasalFraction = getEnvFloat("DIRECTDOSE_BASAL_FRACTION", s.BasalFraction)
	s.TargetBG = getEnvFloat("DIRECTDOSE_TARGET_BG", s.TargetBG)
	s.EnableDesktopAlerts = getEnvBool("DESKTOP_ALERTS", s.EnableDesktopAlerts)
}

// Validate checks settings that the dosing formulas depend on
func (s *Settings) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.BasalFraction < MinBasalFraction || s.BasalFraction > MaxBasalFraction {
		return fmt.Errorf("basal fraction %.2f outside [%.1f, %.1f]", s.BasalFraction, MinBasalFraction, MaxBasalFraction)
	}
	if s.TargetBG <= 0 {
		return fmt.Errorf("target BG must be positive, got %.1f", s.TargetBG)
	}
	switch s.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", s.DatabaseDriver)
	}
	if s.LookupConcurrency < 1 {
		return fmt.Errorf("lookup concurrency must be at least 1")
	}
	return nil
}

// Clone creates a copy of the settings
func (s *Settings) Clone() *Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Create a new Settings struct with copied values (not the mutex)
	clone := &Settings{}
	clone.copySettingsFields(s)
	return clone
}

// copySettingsFields copies all fields from other to s, excluding the mutex
// The caller must hold the necessary locks on s and other (if other is shared)
func (s *Settings) copySettingsFields(other *Settings) {
	s.Port = other.Port
	s.Environment = other.Environment
	s.LogLevel = other.LogLevel
	s.LogPretty = other.LogPretty
	s.JWTSecret = other.JWTSecret
	s.EdamamBaseURL = other.EdamamBaseURL
	s.EdamamAppID = other.EdamamAppID
	s.EdamamAppKey = other.EdamamAppKey
	s.LookupTimeout = other.LookupTimeout
	s.LookupConcurrency = other.LookupConcurrency
	s.NutritionCacheTTL = other.NutritionCacheTTL
	s.RedisURL = other.RedisURL
	s.EnableNutritionCache = other.EnableNutritionCache
	s.DatabaseDriver = other.DatabaseDriver
	s.DatabaseURL = other.DatabaseURL
	s.BasalFraction = other.BasalFraction
	s.TargetBG = other.TargetBG
	s.Unit = other.Unit
	s.EnableDesktopAlerts = other.EnableDesktopAlerts
	s.RepeatAlertMinutes = other.RepeatAlertMinutes
}

// IsNutritionConfigured returns true if nutrition API credentials are set
func (s *Settings) IsNutritionConfigured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.EdamamAppID != "" && s.EdamamAppKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
