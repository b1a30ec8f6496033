// Package main is the entry point for the DirectDose server
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mrcode/directdose/internal/api"
	"github.com/mrcode/directdose/internal/auth"
	"github.com/mrcode/directdose/internal/edamam"
	"github.com/mrcode/directdose/internal/metrics"
	"github.com/mrcode/directdose/internal/models"
	"github.com/mrcode/directdose/internal/notifications"
	"github.com/mrcode/directdose/internal/nutrition"
	"github.com/mrcode/directdose/internal/service"
	"github.com/mrcode/directdose/internal/store"
)

func main() {
	configPath := flag.String("config", "", "settings file (YAML or JSON)")
	issueFor := flag.String("issue-token", "", "print a bearer token for this user ID and exit")
	tokenTTL := flag.Duration("token-ttl", 30*24*time.Hour, "lifetime of tokens printed by -issue-token")
	saveConfig := flag.Bool("save-config", false, "write the effective settings to the config directory and exit")
	testAlert := flag.Bool("test-notification", false, "send a desktop test notification and exit")
	flag.Parse()

	if *configPath != "" {
		_ = os.Setenv("DIRECTDOSE_CONFIG", *configPath)
	}

	settings := models.DefaultSettings()
	if err := settings.Load(); err != nil {
		// Logging is not configured yet
		fmt.Fprintf(os.Stderr, "Error loading settings: %v\n", err)
		os.Exit(1)
	}
	setupLogging(settings)

	if *issueFor != "" {
		if settings.JWTSecret == "" {
			log.Fatal().Msg("JWT_SECRET must be set to issue tokens")
		}
		token, err := auth.IssueToken(settings.JWTSecret, *issueFor, *tokenTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("issue token")
		}
		fmt.Println(token)
		return
	}

	if *saveConfig {
		if err := settings.Save(); err != nil {
			log.Fatal().Err(err).Msg("save settings")
		}
		path, _ := models.GetConfigPath()
		log.Info().Str("path", path).Msg("Settings saved")
		return
	}

	if *testAlert {
		if err := notifications.NewManager(settings).SendTestNotification(); err != nil {
			log.Fatal().Err(err).Msg("send test notification")
		}
		return
	}

	if err := run(settings); err != nil {
		log.Fatal().Err(err).Msg("DirectDose stopped with an error")
	}
}

func setupLogging(settings *models.Settings) {
	level, err := zerolog.ParseLevel(settings.LogLevel)
	if err != nil || settings.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if settings.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func run(settings *models.Settings) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info().Str("environment", settings.Environment).Str("driver", settings.DatabaseDriver).Msg("Starting DirectDose")

	st, err := store.Open(ctx, settings)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	m := metrics.New()

	aggregator, closeCache, err := newAggregator(ctx, settings, m)
	if err != nil {
		return err
	}
	defer closeCache()

	notifier := notifications.Notifier(notifications.LogNotifier{})
	if settings.EnableDesktopAlerts {
		notifier = notifications.Multi{notifier, notifications.NewManager(settings)}
	}

	if settings.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is not set; endpoints that need a signed-in user will reject every request")
	}

	svc := service.New(st, aggregator, settings,
		service.WithNotifier(notifier),
		service.WithMetrics(m),
	)
	server := api.NewServer(settings, svc, m)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", settings.Port),
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", settings.Port).Msg("DirectDose API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down DirectDose")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	log.Info().Msg("DirectDose stopped")
	return nil
}

// newAggregator wires the Edamam client and the lookup cache. It returns a
// nil aggregator when no credentials are configured.
func newAggregator(ctx context.Context, settings *models.Settings, m *metrics.Metrics) (*nutrition.Aggregator, func(), error) {
	noop := func() {}
	if !settings.IsNutritionConfigured() {
		log.Warn().Msg("EDAMAM_APP_ID/EDAMAM_APP_KEY not set; nutrition lookups are disabled")
		return nil, noop, nil
	}

	client := edamam.NewClient(settings.EdamamBaseURL, settings.EdamamAppID, settings.EdamamAppKey, settings.LookupTimeout)

	checkCtx, cancel := context.WithTimeout(ctx, settings.LookupTimeout)
	defer cancel()
	if err := client.TestConnection(checkCtx); err != nil {
		log.Warn().Err(err).Msg("Nutrition service check failed; lookups will be retried per request")
	}

	opts := []nutrition.Option{
		nutrition.WithItemTimeout(settings.LookupTimeout),
		nutrition.WithConcurrency(settings.LookupConcurrency),
		nutrition.WithObserver(m.ObserveLookup),
	}

	closeCache := noop
	if settings.EnableNutritionCache {
		var cache nutrition.Cache
		if settings.RedisURL != "" {
			rc, err := nutrition.NewRedisCache(&nutrition.RedisConfig{
				URL:       settings.RedisURL,
				KeyPrefix: "directdose",
				Enabled:   true,
			})
			if err != nil {
				return nil, nil, fmt.Errorf("connect redis: %w", err)
			}
			cache = rc
			closeCache = func() { _ = rc.Close() }
			log.Info().Msg("Nutrition cache: redis")
		} else {
			cache = nutrition.NewMemoryCache()
			log.Info().Msg("Nutrition cache: in-memory")
		}
		opts = append(opts, nutrition.WithCache(cache, settings.NutritionCacheTTL))
	}

	return nutrition.NewAggregator(client, opts...), closeCache, nil
}
