// Package notifications delivers dosing advisories to the user
package notifications

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog/log"

	"github.com/mrcode/directdose/internal/dosing"
	"github.com/mrcode/directdose/internal/models"
)

// Notifier receives advisories produced while serving a request
type Notifier interface {
	Notify(userID string, advisory dosing.Advisory) error
}

// LogNotifier writes advisories to the structured log
type LogNotifier struct{}

// Notify logs the advisory at warn level
func (LogNotifier) Notify(userID string, advisory dosing.Advisory) error {
	log.Warn().
		Str("user", userID).
		Str("kind", string(advisory.Kind)).
		Float64("value", advisory.Value).
		Msg(advisory.Message)
	return nil
}

// Multi fans an advisory out to several notifiers
type Multi []Notifier

// Notify calls every notifier and joins their errors
func (m Multi) Notify(userID string, advisory dosing.Advisory) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(userID, advisory); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// maxAlertKeys bounds the remembered alerts
const maxAlertKeys = 1000

// Manager shows advisories as desktop notifications, suppressing repeats of
// the same advisory within the configured repeat interval.
type Manager struct {
	settings      *models.Settings
	lastAlertTime map[string]time.Time
	send          func(title, message string) error
	now           func() time.Time
	mu            sync.Mutex
}

// NewManager creates a new notification manager
func NewManager(settings *models.Settings) *Manager {
	return &Manager{
		settings:      settings,
		lastAlertTime: make(map[string]time.Time),
		send:          sendNotification,
		now:           time.Now,
	}
}

// UpdateSettings updates the settings reference
func (m *Manager) UpdateSettings(settings *models.Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = settings
}

// Notify sends a desktop notification unless alerts are disabled or the same
// advisory was shown recently
func (m *Manager) Notify(userID string, advisory dosing.Advisory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.settings.EnableDesktopAlerts {
		return nil
	}

	m.prune()

	key := alertKey(userID, advisory)
	if lastTime, ok := m.lastAlertTime[key]; ok {
		if m.settings.RepeatAlertMinutes > 0 {
			repeatDuration := time.Duration(m.settings.RepeatAlertMinutes) * time.Minute
			if m.now().Sub(lastTime) < repeatDuration {
				return nil
			}
		} else {
			// No repeat, only alert once per advisory
			return nil
		}
	}

	title, message := formatNotification(advisory)
	if err := m.send(title, message); err != nil {
		return fmt.Errorf("desktop notification: %w", err)
	}

	m.lastAlertTime[key] = m.now()
	return nil
}

// prune forgets alerts whose repeat interval has passed. Without a repeat
// interval alerts are remembered, up to maxAlertKeys with the oldest dropped
// first. Callers hold mu.
func (m *Manager) prune() {
	now := m.now()
	if m.settings.RepeatAlertMinutes > 0 {
		repeatDuration := time.Duration(m.settings.RepeatAlertMinutes) * time.Minute
		for key, last := range m.lastAlertTime {
			if now.Sub(last) >= repeatDuration {
				delete(m.lastAlertTime, key)
			}
		}
	}

	for len(m.lastAlertTime) >= maxAlertKeys {
		var oldestKey string
		var oldest time.Time
		for key, last := range m.lastAlertTime {
			if oldestKey == "" || last.Before(oldest) {
				oldestKey, oldest = key, last
			}
		}
		delete(m.lastAlertTime, oldestKey)
	}
}

func alertKey(userID string, advisory dosing.Advisory) string {
	return fmt.Sprintf("%s|%s|%.1f", userID, advisory.Kind, advisory.Value)
}

// formatNotification creates the notification title and message
func formatNotification(advisory dosing.Advisory) (string, string) {
	direction := "below"
	if advisory.Value > advisory.High {
		direction = "above"
	}

	var title string
	switch advisory.Kind {
	case dosing.AdvisoryInitialICR:
		title = fmt.Sprintf("Initial ICR %s typical range", direction)
	case dosing.AdvisoryFinalICR:
		title = fmt.Sprintf("Final ICR %s typical range", direction)
	default:
		title = "Dosing advisory"
	}

	return title, advisory.Message
}

// sendNotification sends a system notification
func sendNotification(title, message string) error {
	// Use beeep for cross-platform notifications
	return beeep.Notify(title, message, "")
}

// ClearAlertState forgets shown advisories of one user, or of everyone when
// userID is empty
func (m *Manager) ClearAlertState(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if userID == "" {
		m.lastAlertTime = make(map[string]time.Time)
		return
	}
	prefix := userID + "|"
	for key := range m.lastAlertTime {
		if strings.HasPrefix(key, prefix) {
			delete(m.lastAlertTime, key)
		}
	}
}

// SendTestNotification sends a test notification
func (m *Manager) SendTestNotification() error {
	return m.send("DirectDose", "Test notification - alerts are working!")
}
