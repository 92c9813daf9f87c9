package profile

import (
	"context"
	"sync"
	"time"

	"biogate/internal/model"
)

// Defaults for a freshly created baseline. A new profile starts from these
// fixed values with low confidence; observed behavior never rewrites them
// in-process (see Updater).
const (
	defaultKeystrokeInterval = 150
	defaultDwellTime         = 100
	defaultVariance          = 50
	defaultPointerSpeed      = 200
	defaultAcceleration      = 50
	defaultClickPressure     = 0.5
	defaultMovementStyle     = "smooth"
	defaultSessionDuration   = 300000
	defaultConfidence        = 0.1
)

// DefaultProfile builds the fixed initial baseline for a user. The device
// fingerprint is captured once, at profile creation.
func DefaultProfile(userID string, fp model.DeviceFingerprint, now time.Time) model.Profile {
	return model.Profile{
		UserID: userID,
		Typing: model.TypingBaseline{
			AvgKeystrokeInterval: defaultKeystrokeInterval,
			AvgDwellTime:         defaultDwellTime,
			KeystrokeVariance:    defaultVariance,
			CommonDigraphs:       []model.DigraphTiming{},
		},
		Pointer: model.PointerBaseline{
			AvgSpeed:        defaultPointerSpeed,
			AvgAcceleration: defaultAcceleration,
			ClickPressure:   defaultClickPressure,
			MovementStyle:   defaultMovementStyle,
		},
		Navigation: model.NavigationBaseline{
			CommonPaths:        []string{},
			AvgSessionDuration: defaultSessionDuration,
			PreferredFeatures:  []string{},
		},
		Device:     fp,
		Confidence: defaultConfidence,
		UpdatedAt:  now,
	}
}

// Store keeps one profile per user.
type Store struct {
	mu     sync.RWMutex
	byUser map[string]model.Profile
}

func NewStore() *Store {
	return &Store{byUser: make(map[string]model.Profile)}
}

// Ensure creates the default profile for userID if none exists yet and
// reports whether it did. Repeated calls are no-ops, so concurrent or
// repeated session starts cannot reset an established baseline.
func (s *Store) Ensure(userID string, fp model.DeviceFingerprint, now time.Time) (model.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.byUser[userID]; ok {
		return p, false
	}
	p := DefaultProfile(userID, fp, now)
	s.byUser[userID] = p
	return p, true
}

func (s *Store) Get(userID string) (model.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byUser[userID]
	return p, ok
}

// Put replaces a profile wholesale. Used by seeding and baseline updaters.
func (s *Store) Put(p model.Profile) {
	if p.UserID == "" {
		return
	}
	s.mu.Lock()
	s.byUser[p.UserID] = p
	s.mu.Unlock()
}

func (s *Store) Clear() {
	s.mu.Lock()
	s.byUser = make(map[string]model.Profile)
	s.mu.Unlock()
}

// DiffFingerprint returns the names of fingerprint attributes that differ
// between the stored and the observed device.
func DiffFingerprint(stored, observed model.DeviceFingerprint) []string {
	var changed []string
	if stored.ScreenResolution != observed.ScreenResolution {
		changed = append(changed, "screen_resolution")
	}
	if stored.Timezone != observed.Timezone {
		changed = append(changed, "timezone")
	}
	if stored.Language != observed.Language {
		changed = append(changed, "language")
	}
	if stored.UserAgent != observed.UserAgent {
		changed = append(changed, "user_agent")
	}
	return changed
}

// Updater is invoked after every completed risk analysis with the session
// snapshot that produced it. How a baseline should learn from observed
// sessions is an open product question, so the default does nothing; the
// hook exists so a learning implementation can be plugged in without
// touching the engine.
type Updater interface {
	UpdateBaseline(ctx context.Context, p model.Profile, s model.Session) error
}

type NoopUpdater struct{}

func (NoopUpdater) UpdateBaseline(context.Context, model.Profile, model.Session) error {
	return nil
}
